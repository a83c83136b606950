package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultDeliveryTimeout bounds a single subscriber send when no timeout is
// configured.
const DefaultDeliveryTimeout = 2 * time.Second

// Broadcaster fans one frame out to every subscriber of a room. Each send
// runs on its own goroutine and is bounded by the delivery timeout, so a
// stalled subscriber holds up neither the rest nor the publisher for longer.
type Broadcaster struct {
	hub      *RoomHub
	onFailed func(Conn)
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewBroadcaster returns a broadcaster over hub. onFailed is called for every
// subscriber whose connection turned out to be closed. A timeout <= 0 means
// DefaultDeliveryTimeout.
func NewBroadcaster(hub *RoomHub, onFailed func(Conn), timeout time.Duration, logger zerolog.Logger) *Broadcaster {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Broadcaster{hub: hub, onFailed: onFailed, timeout: timeout, logger: logger}
}

// Broadcast sends frame to a snapshot of room's subscribers and returns how
// many accepted it. Failures never propagate to the caller.
func (b *Broadcaster) Broadcast(ctx context.Context, room string, frame []byte) int {
	subscribers := b.hub.Subscribers(room)
	if len(subscribers) == 0 {
		return 0
	}

	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	for _, conn := range subscribers {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			if err := conn.Send(sendCtx, frame); err != nil {
				switch {
				case errors.Is(err, ErrConnClosed):
					b.logger.Debug().Err(err).Str("conn", conn.ID()).Str("room", room).Msg("delivery failed")
					if b.onFailed != nil {
						b.onFailed(conn)
					}
				case errors.Is(err, context.DeadlineExceeded):
					b.logger.Warn().Str("conn", conn.ID()).Str("room", room).Dur("timeout", b.timeout).Msg("slow subscriber skipped")
				default:
					b.logger.Debug().Err(err).Str("conn", conn.ID()).Str("room", room).Msg("delivery failed")
				}
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}
