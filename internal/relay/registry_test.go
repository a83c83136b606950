package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoginAndResolve(t *testing.T) {
	reg := NewRegistry()
	alice := newMockConn("c1")

	require.NoError(t, reg.Login(alice, "alice"))
	name, ok := reg.Resolve(alice)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	owner, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", owner.ID())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Login(newMockConn("c1"), ""), ErrInvalidUsername)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryNameTakenKeepsFirstBinding(t *testing.T) {
	reg := NewRegistry()
	first := newMockConn("c1")
	second := newMockConn("c2")

	require.NoError(t, reg.Login(first, "alice"))
	assert.ErrorIs(t, reg.Login(second, "alice"), ErrUsernameTaken)

	owner, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", owner.ID())
	_, ok = reg.Resolve(second)
	assert.False(t, ok)
}

func TestRegistryRelogin(t *testing.T) {
	reg := NewRegistry()
	conn := newMockConn("c1")

	require.NoError(t, reg.Login(conn, "alice"))
	require.NoError(t, reg.Login(conn, "alice"))
	require.NoError(t, reg.Login(conn, "alicia"))

	_, ok := reg.Lookup("alice")
	assert.False(t, ok, "old name should be released")
	name, _ := reg.Resolve(conn)
	assert.Equal(t, "alicia", name)
	assert.Equal(t, 1, reg.Len())

	require.NoError(t, reg.Login(newMockConn("c2"), "alice"))
}

func TestRegistryReleaseIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := newMockConn("c1")
	require.NoError(t, reg.Login(conn, "alice"))

	name, ok := reg.Release(conn)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	_, ok = reg.Release(conn)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())

	require.NoError(t, reg.Login(newMockConn("c2"), "alice"))
}
