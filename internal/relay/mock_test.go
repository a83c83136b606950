package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

type mockConn struct {
	id string

	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeCode   int
	closeReason string
	broken      bool
}

func newMockConn(id string) *mockConn {
	return &mockConn{id: id}
}

func (c *mockConn) ID() string { return c.id }

func (c *mockConn) Send(_ context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.broken {
		return ErrConnClosed
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *mockConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	return nil
}

func (c *mockConn) envelopes(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.frames))
	for _, frame := range c.frames {
		var env map[string]interface{}
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func (c *mockConn) last(t *testing.T) map[string]interface{} {
	t.Helper()
	envs := c.envelopes(t)
	require.NotEmpty(t, envs)
	return envs[len(envs)-1]
}

func (c *mockConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// stalledConn never drains: Send blocks until its context ends.
type stalledConn struct {
	id string
}

func (c *stalledConn) ID() string { return c.id }

func (c *stalledConn) Send(ctx context.Context, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *stalledConn) Close(int, string) error { return nil }

var errDiskFull = errors.New("disk full")

type memLog struct {
	mu         sync.Mutex
	records    map[string][]storage.Record
	failAppend bool
	failTail   bool
	tails      int
}

func newMemLog() *memLog {
	return &memLog{records: make(map[string][]storage.Record)}
}

func (l *memLog) Close() error { return nil }

func (l *memLog) Append(_ context.Context, rec storage.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAppend {
		return errDiskFull
	}
	l.records[rec.Room] = append(l.records[rec.Room], rec)
	return nil
}

func (l *memLog) Tail(_ context.Context, room string, n int) ([]storage.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tails++
	if l.failTail {
		return nil, errDiskFull
	}
	records := l.records[room]
	if n < len(records) {
		records = records[len(records)-n:]
	}
	return append([]storage.Record(nil), records...), nil
}

func (l *memLog) count(room string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records[room])
}
