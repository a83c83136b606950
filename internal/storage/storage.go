package storage

import (
	"context"
	"errors"
	"time"
)

// TimestampLayout is the wire and on-disk format of Record.Timestamp.
const TimestampLayout = time.RFC3339Nano

// ErrClosed is returned by a Log after Close.
var ErrClosed = errors.New("storage: log closed")

// Record is one published message. It is never mutated after creation.
type Record struct {
	Room      string
	Username  string
	Text      string
	Timestamp string
}

// NewRecord stamps a record with the UTC wall clock reading t.
func NewRecord(room, username, text string, t time.Time) Record {
	return Record{
		Room:      room,
		Username:  username,
		Text:      text,
		Timestamp: t.UTC().Format(TimestampLayout),
	}
}

// Log is the durable, append-only per-room record sequence.
type Log interface {
	Close() error

	// Append durably adds rec to the end of rec.Room's sequence.
	Append(ctx context.Context, rec Record) error
	// Tail returns up to n of the most recent records of room, oldest first.
	Tail(ctx context.Context, room string, n int) ([]Record, error)
}
