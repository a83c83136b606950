package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

// History is the bounded in-memory record cache per room, backed by a
// storage.Log. A room's cache is seeded from the log on first touch and is
// afterwards always the last capacity records of that log.
type History struct {
	log      storage.Log
	capacity int

	mu    sync.Mutex
	rooms map[string]*roomHistory
}

type roomHistory struct {
	mu     sync.Mutex
	seeded bool
	buf    ring
}

// NewHistory creates a cache holding up to capacity records per room.
func NewHistory(log storage.Log, capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		log:      log,
		capacity: capacity,
		rooms:    make(map[string]*roomHistory),
	}
}

// Capacity returns the per-room record limit.
func (h *History) Capacity() int {
	return h.capacity
}

func (h *History) room(name string) *roomHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	rh, ok := h.rooms[name]
	if !ok {
		rh = &roomHistory{buf: newRing(h.capacity)}
		h.rooms[name] = rh
	}
	return rh
}

// Append writes rec to the log and, once that succeeded, to the cache. A log
// failure leaves the cache untouched and is returned.
func (h *History) Append(ctx context.Context, rec storage.Record) error {
	rh := h.room(rec.Room)
	rh.mu.Lock()
	defer rh.mu.Unlock()

	// An unseeded cache stays empty until the next successful seed, which
	// will pick rec up from the log.
	seedErr := h.seedLocked(ctx, rec.Room, rh)

	if err := h.log.Append(ctx, rec); err != nil {
		return fmt.Errorf("append room log: %w", err)
	}
	if seedErr == nil {
		rh.buf.push(rec)
	}
	return nil
}

// Recent returns up to n of the latest records of room, oldest first. If the
// seed from the log fails the error is returned along with whatever the cache
// holds.
func (h *History) Recent(ctx context.Context, room string, n int) ([]storage.Record, error) {
	rh := h.room(room)
	rh.mu.Lock()
	defer rh.mu.Unlock()

	err := h.seedLocked(ctx, room, rh)
	return rh.buf.last(n), err
}

func (h *History) seedLocked(ctx context.Context, room string, rh *roomHistory) error {
	if rh.seeded {
		return nil
	}
	records, err := h.log.Tail(ctx, room, h.capacity)
	if err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	rh.buf.reset()
	for _, rec := range records {
		rh.buf.push(rec)
	}
	rh.seeded = true
	return nil
}

// ring is a fixed-capacity FIFO that drops the oldest record when full.
type ring struct {
	items []storage.Record
	start int
	size  int
}

func newRing(capacity int) ring {
	return ring{items: make([]storage.Record, capacity)}
}

func (r *ring) push(rec storage.Record) {
	if len(r.items) == 0 {
		return
	}
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = rec
		r.size++
		return
	}
	r.items[r.start] = rec
	r.start = (r.start + 1) % len(r.items)
}

func (r *ring) last(n int) []storage.Record {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]storage.Record, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.start+offset+i)%len(r.items)]
	}
	return out
}

func (r *ring) reset() {
	r.start = 0
	r.size = 0
}
