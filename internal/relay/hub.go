package relay

import (
	"errors"
	"sort"
	"sync"
)

var ErrInvalidRoom = errors.New("relay: room must be a non-empty string")

// RoomHub tracks subscriptions in both directions: room to connections and
// connection to rooms. Both indexes change together under one lock.
type RoomHub struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Conn
	memberships map[string]map[string]struct{}
}

// NewRoomHub initializes an empty hub.
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms:       make(map[string]map[string]Conn),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds conn to room. Subscribing twice is a no-op.
func (h *RoomHub) Subscribe(conn Conn, room string) error {
	if room == "" {
		return ErrInvalidRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := conn.ID()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]Conn)
	}
	h.rooms[room][id] = conn

	if _, ok := h.memberships[id]; !ok {
		h.memberships[id] = make(map[string]struct{})
	}
	h.memberships[id][room] = struct{}{}
	return nil
}

// Unsubscribe removes conn from room and reports whether it was subscribed.
func (h *RoomHub) Unsubscribe(conn Conn, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := conn.ID()
	rooms, ok := h.memberships[id]
	if !ok {
		return false
	}
	if _, ok := rooms[room]; !ok {
		return false
	}
	delete(rooms, room)
	if len(rooms) == 0 {
		delete(h.memberships, id)
	}
	h.removeLocked(room, id)
	return true
}

// UnsubscribeAll removes conn from every room and returns those rooms,
// sorted. Calling it for an unknown connection returns nil.
func (h *RoomHub) UnsubscribeAll(conn Conn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := conn.ID()
	rooms, ok := h.memberships[id]
	if !ok {
		return nil
	}
	delete(h.memberships, id)

	left := make([]string, 0, len(rooms))
	for room := range rooms {
		h.removeLocked(room, id)
		left = append(left, room)
	}
	sort.Strings(left)
	return left
}

func (h *RoomHub) removeLocked(room, id string) {
	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, id)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Subscribers returns a point-in-time copy of room's subscribers.
func (h *RoomHub) Subscribers(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers := h.rooms[room]
	if len(subscribers) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(subscribers))
	for _, conn := range subscribers {
		out = append(out, conn)
	}
	return out
}

// Rooms returns the rooms conn is subscribed to, sorted.
func (h *RoomHub) Rooms(conn Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := h.memberships[conn.ID()]
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether conn is in room.
func (h *RoomHub) IsSubscribed(conn Conn, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][conn.ID()]
	return ok
}

// ActiveRooms counts rooms with at least one subscriber.
func (h *RoomHub) ActiveRooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
