package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fenggwsx/SlashRelay/internal/config"
	"github.com/fenggwsx/SlashRelay/internal/relay"
)

// closeGrace bounds how long a session waits for the peer to answer a close
// frame before the socket is dropped.
const closeGrace = time.Second

type outbound struct {
	data   []byte
	close  bool
	code   int
	reason string
}

// session is one websocket connection. It implements relay.Conn: frames are
// queued on out and written by a single writer goroutine.
type session struct {
	id     string
	conn   *websocket.Conn
	cfg    config.TransportConfig
	logger zerolog.Logger

	out       chan outbound
	done      chan struct{}
	closing   atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, cfg config.TransportConfig, logger zerolog.Logger) *session {
	buffer := cfg.SendBuffer
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("conn", id).Str("remote", conn.RemoteAddr().String()).Logger(),
		out:    make(chan outbound, buffer),
		done:   make(chan struct{}),
	}
}

func (s *session) ID() string {
	return s.id
}

// Send queues frame behind everything already queued. It blocks while the
// queue is full.
func (s *session) Send(ctx context.Context, frame []byte) error {
	if s.closing.Load() {
		return relay.ErrConnClosed
	}
	select {
	case <-s.done:
		return relay.ErrConnClosed
	default:
	}

	select {
	case s.out <- outbound{data: frame}:
		return nil
	case <-s.done:
		return relay.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close queues a close frame. Frames queued before it are still written; any
// Send after it fails.
func (s *session) Close(code int, reason string) error {
	err := relay.ErrConnClosed
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		timer := time.NewTimer(s.writeTimeout())
		defer timer.Stop()

		select {
		case s.out <- outbound{close: true, code: code, reason: reason}:
			err = nil
		case <-s.done:
		case <-timer.C:
			s.logger.Warn().Int("code", code).Msg("send queue stuck, dropping connection")
			s.abort()
		}
	})
	return err
}

func (s *session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// abort tears the socket down without a close handshake.
func (s *session) abort() {
	s.stop()
	_ = s.conn.Close()
}

func (s *session) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout > 0 {
		return s.cfg.WriteTimeout
	}
	return 10 * time.Second
}

func (s *session) writeDeadline() time.Time {
	return time.Now().Add(s.writeTimeout())
}

func (s *session) extendReadDeadline() error {
	if s.cfg.PingInterval <= 0 {
		return s.conn.SetReadDeadline(time.Time{})
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PingInterval + s.cfg.PongWait))
}

// serve runs the session until the peer goes away. Frames reach the relay one
// at a time in arrival order.
func (s *session) serve(ctx context.Context, r *relay.Relay) {
	go s.writeLoop()

	defer func() {
		r.Disconnect(s)
		s.stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Debug().Err(err).Msg("close socket")
		}
	}()

	if s.cfg.MaxFrameBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxFrameBytes)
	}
	if err := s.extendReadDeadline(); err != nil {
		s.logger.Debug().Err(err).Msg("set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		if s.closing.Load() {
			return nil
		}
		return s.extendReadDeadline()
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}
		if s.closing.Load() {
			continue
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		r.Handle(ctx, s, data)
	}
}

func (s *session) writeLoop() {
	var tick <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case item := <-s.out:
			if item.close {
				s.writeClose(item.code, item.reason)
				return
			}
			if err := s.conn.SetWriteDeadline(s.writeDeadline()); err != nil {
				s.abort()
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, item.data); err != nil {
				s.logger.Debug().Err(err).Msg("write failed")
				s.abort()
				return
			}
		case <-tick:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, s.writeDeadline()); err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				s.abort()
				return
			}
		}
	}
}

// writeClose sends the close frame and leaves the reader a short window to
// collect the peer's answer.
func (s *session) writeClose(code int, reason string) {
	s.stop()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, s.writeDeadline()); err != nil {
		s.logger.Debug().Err(err).Int("code", code).Msg("write close frame")
		_ = s.conn.Close()
		return
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(closeGrace)); err != nil {
		_ = s.conn.Close()
	}
}

func (s *session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger.Info().Int64("limit", s.cfg.MaxFrameBytes).Msg("frame too large")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger.Debug().Err(err).Msg("peer closed")
	case s.closing.Load(), errors.Is(err, io.EOF), isExpectedCloseError(err):
		s.logger.Debug().Err(err).Msg("connection ended")
	default:
		s.logger.Info().Err(err).Msg("read failed")
	}
}

func isExpectedCloseError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
