package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fenggwsx/SlashRelay/internal/protocol"
	"github.com/fenggwsx/SlashRelay/internal/storage"
)

// Options configures a Relay.
type Options struct {
	// HistorySize is the per-room cache capacity.
	HistorySize int
	// ReplayCount is how many records a new subscriber receives.
	ReplayCount int
	// DeliveryTimeout bounds each subscriber send during a broadcast.
	// Defaults to DefaultDeliveryTimeout.
	DeliveryTimeout time.Duration
	// Now stamps published records. Defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Relay owns all connection, room and history state of the process.
type Relay struct {
	identities  *Registry
	rooms       *RoomHub
	history     *History
	broadcaster *Broadcaster
	replayCount int
	now         func() time.Time
	logger      zerolog.Logger

	locksMu   sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// Stats is a point-in-time summary for health reporting.
type Stats struct {
	Identities  int
	ActiveRooms int
}

// New builds a relay persisting records to log.
func New(log storage.Log, opts Options) *Relay {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReplayCount < 0 {
		opts.ReplayCount = 0
	}

	r := &Relay{
		identities:  NewRegistry(),
		rooms:       NewRoomHub(),
		history:     NewHistory(log, opts.HistorySize),
		replayCount: opts.ReplayCount,
		now:         opts.Now,
		logger:      opts.Logger.With().Str("component", "relay").Logger(),
		roomLocks:   make(map[string]*sync.Mutex),
	}
	r.broadcaster = NewBroadcaster(r.rooms, r.Disconnect, opts.DeliveryTimeout, r.logger)
	return r
}

// Identities exposes the identity registry.
func (r *Relay) Identities() *Registry {
	return r.identities
}

// Rooms exposes the room directory.
func (r *Relay) Rooms() *RoomHub {
	return r.rooms
}

// History exposes the record cache.
func (r *Relay) History() *History {
	return r.history
}

// Stats summarizes current state.
func (r *Relay) Stats() Stats {
	return Stats{
		Identities:  r.identities.Len(),
		ActiveRooms: r.rooms.ActiveRooms(),
	}
}

// Disconnect forgets everything about conn except what it published. It is
// safe to call any number of times.
func (r *Relay) Disconnect(conn Conn) {
	name, hadName := r.identities.Release(conn)
	rooms := r.rooms.UnsubscribeAll(conn)
	if !hadName && len(rooms) == 0 {
		return
	}
	r.logger.Debug().
		Str("conn", conn.ID()).
		Str("user", name).
		Strs("rooms", rooms).
		Msg("connection cleaned up")
}

// Handle processes one inbound frame from conn. Errors are reported to conn;
// nothing is returned to the transport.
func (r *Relay) Handle(ctx context.Context, conn Conn, frame []byte) {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		r.sendError(ctx, conn, protocol.CodeInvalidJSON, "")
		return
	}

	switch req.Action() {
	case protocol.ActionLogin:
		r.handleLogin(ctx, conn, req)
	case protocol.ActionSubscribe:
		r.handleSubscribe(ctx, conn, req)
	case protocol.ActionUnsubscribe:
		r.handleUnsubscribe(ctx, conn, req)
	case protocol.ActionPublish:
		r.handlePublish(ctx, conn, req)
	case protocol.ActionLogout:
		r.handleLogout(ctx, conn)
	default:
		r.sendError(ctx, conn, protocol.CodeUnknownAction, "Unknown action: "+req.RawAction())
	}
}

func (r *Relay) roomLock(room string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	lock, ok := r.roomLocks[room]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[room] = lock
	}
	return lock
}
