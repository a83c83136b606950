package relay

import (
	"context"
	"errors"

	"github.com/fenggwsx/SlashRelay/internal/protocol"
	"github.com/fenggwsx/SlashRelay/internal/storage"
)

func (r *Relay) handleLogin(ctx context.Context, conn Conn, req protocol.Request) {
	username, ok := req.String("username")
	if !ok {
		r.sendError(ctx, conn, protocol.CodeInvalidUsername, "")
		return
	}

	err := r.identities.Login(conn, username)
	switch {
	case errors.Is(err, ErrInvalidUsername):
		r.sendError(ctx, conn, protocol.CodeInvalidUsername, "")
		return
	case errors.Is(err, ErrUsernameTaken):
		r.logger.Info().Str("conn", conn.ID()).Str("user", username).Msg("login rejected: username taken")
		r.sendError(ctx, conn, protocol.CodeUsernameTaken, "")
		if err := conn.Close(protocol.CloseUsernameTaken, string(protocol.CodeUsernameTaken)); err != nil {
			r.logger.Debug().Err(err).Str("conn", conn.ID()).Msg("close after username_taken")
		}
		return
	case err != nil:
		r.logger.Error().Err(err).Str("conn", conn.ID()).Msg("login failed")
		return
	}

	r.logger.Info().Str("conn", conn.ID()).Str("user", username).Msg("login")
	r.sendOK(ctx, conn, protocol.EventLoginOK, map[string]interface{}{"username": username})
}

func (r *Relay) handleSubscribe(ctx context.Context, conn Conn, req protocol.Request) {
	room, ok := req.String("room")
	if !ok || room == "" {
		r.sendError(ctx, conn, protocol.CodeInvalidRoom, "")
		return
	}

	// Holding the room lock across subscribe and replay puts every record in
	// exactly one of the replay or the live stream for this subscriber.
	lock := r.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	if err := r.rooms.Subscribe(conn, room); err != nil {
		r.sendError(ctx, conn, protocol.CodeInvalidRoom, "")
		return
	}
	r.sendOK(ctx, conn, protocol.EventSubscribed, map[string]interface{}{"room": room})

	recent, err := r.history.Recent(ctx, room, r.replayCount)
	if err != nil {
		r.logger.Warn().Err(err).Str("room", room).Msg("history unavailable")
	}
	if len(recent) == 0 {
		return
	}
	frame, err := protocol.EncodeHistory(room, recent)
	if err != nil {
		r.logger.Error().Err(err).Str("room", room).Msg("encode history")
		return
	}
	r.send(ctx, conn, frame)
}

func (r *Relay) handleUnsubscribe(ctx context.Context, conn Conn, req protocol.Request) {
	room, ok := req.String("room")
	if !ok || room == "" {
		r.sendError(ctx, conn, protocol.CodeInvalidRoom, "")
		return
	}

	lock := r.roomLock(room)
	lock.Lock()
	r.rooms.Unsubscribe(conn, room)
	lock.Unlock()

	r.sendOK(ctx, conn, protocol.EventUnsubscribed, map[string]interface{}{"room": room})
}

func (r *Relay) handlePublish(ctx context.Context, conn Conn, req protocol.Request) {
	room, ok := req.String("room")
	if !ok || room == "" {
		r.sendError(ctx, conn, protocol.CodeInvalidRoom, "")
		return
	}
	text, ok := req.String("message")
	if !ok || text == "" {
		r.sendError(ctx, conn, protocol.CodeInvalidMessage, "")
		return
	}
	username, ok := r.identities.Resolve(conn)
	if !ok {
		r.sendError(ctx, conn, protocol.CodeNotLoggedIn, "")
		return
	}

	lock := r.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	// Stamped under the lock so log order and timestamp order agree.
	rec := storage.NewRecord(room, username, text, r.now())
	frame, err := protocol.EncodeMessage(rec)
	if err != nil {
		r.logger.Error().Err(err).Str("room", room).Msg("encode message")
		return
	}

	if err := r.history.Append(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("room", room).Str("user", username).Msg("record not persisted")
	}
	delivered := r.broadcaster.Broadcast(ctx, room, frame)
	r.logger.Debug().
		Str("room", room).
		Str("user", username).
		Int("len", len(text)).
		Int("delivered", delivered).
		Msg("published")
}

func (r *Relay) handleLogout(ctx context.Context, conn Conn) {
	r.sendOK(ctx, conn, protocol.EventLogoutOK, nil)
	r.Disconnect(conn)
	if err := conn.Close(protocol.CloseNormal, "logout"); err != nil {
		r.logger.Debug().Err(err).Str("conn", conn.ID()).Msg("close after logout")
	}
}

func (r *Relay) sendOK(ctx context.Context, conn Conn, event string, extra map[string]interface{}) {
	frame, err := protocol.EncodeOK(event, extra)
	if err != nil {
		r.logger.Error().Err(err).Str("event", event).Msg("encode ok")
		return
	}
	r.send(ctx, conn, frame)
}

func (r *Relay) sendError(ctx context.Context, conn Conn, code protocol.ErrorCode, message string) {
	frame, err := protocol.EncodeError(code, message)
	if err != nil {
		r.logger.Error().Err(err).Str("code", string(code)).Msg("encode error")
		return
	}
	r.send(ctx, conn, frame)
}

func (r *Relay) send(ctx context.Context, conn Conn, frame []byte) {
	if err := conn.Send(ctx, frame); err != nil {
		r.logger.Debug().Err(err).Str("conn", conn.ID()).Msg("reply not delivered")
	}
}
