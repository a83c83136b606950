// Package relay is the message relay engine: identities, room subscriptions,
// per-room history and fan-out. It knows nothing about the transport beyond
// the Conn interface.
package relay

import (
	"context"
	"errors"
)

// ErrConnClosed is returned by Conn.Send once the connection can no longer
// deliver frames.
var ErrConnClosed = errors.New("relay: connection closed")

// Conn is one client connection as seen by the relay.
type Conn interface {
	// ID is stable and unique for the lifetime of the process.
	ID() string
	// Send queues a text frame for delivery.
	Send(ctx context.Context, frame []byte) error
	// Close sends a close frame with code and reason after anything already
	// queued, then tears the connection down.
	Close(code int, reason string) error
}
