package relay

import (
	"errors"
	"sync"
)

var (
	ErrInvalidUsername = errors.New("relay: username must be a non-empty string")
	ErrUsernameTaken   = errors.New("relay: username already in use")
)

// Registry binds names to connections, at most one each way.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Conn
	byConn map[string]string
}

// NewRegistry initializes an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Conn),
		byConn: make(map[string]string),
	}
}

// Login binds name to conn. Logging in again under the same name is a no-op;
// logging in under a new name releases the old one. A name held by another
// connection yields ErrUsernameTaken and leaves the registry untouched.
func (r *Registry) Login(conn Conn, name string) error {
	if name == "" {
		return ErrInvalidUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if owner, ok := r.byName[name]; ok {
		if owner.ID() == id {
			return nil
		}
		return ErrUsernameTaken
	}

	if prev, ok := r.byConn[id]; ok {
		if owner, held := r.byName[prev]; held && owner.ID() == id {
			delete(r.byName, prev)
		}
	}
	r.byName[name] = conn
	r.byConn[id] = name
	return nil
}

// Resolve returns the name bound to conn.
func (r *Registry) Resolve(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byConn[conn.ID()]
	return name, ok
}

// Lookup returns the connection holding name.
func (r *Registry) Lookup(name string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byName[name]
	return conn, ok
}

// Release drops conn's identity. The name mapping is only removed while it
// still points at conn.
func (r *Registry) Release(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	name, ok := r.byConn[id]
	if !ok {
		return "", false
	}
	delete(r.byConn, id)
	if owner, held := r.byName[name]; held && owner.ID() == id {
		delete(r.byName, name)
	}
	return name, true
}

// Len reports the number of bound identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
