package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/fenggwsx/SlashRelay/internal/protocol"
)

const (
	frameBuffer  = 64
	writeTimeout = 5 * time.Second
)

// Frame is one text frame received from the server.
type Frame struct {
	Raw      []byte
	Envelope protocol.ServerEnvelope
	Err      error
}

// CloseStatus describes how the server ended the session.
type CloseStatus struct {
	Code   int
	Reason string
}

// Session is a websocket connection to a relay server.
type Session struct {
	addr   string
	conn   net.Conn
	reader io.Reader

	writeMu sync.Mutex
	frames  chan Frame

	closeOnce sync.Once
	statusMu  sync.Mutex
	status    CloseStatus
}

// Dial opens a session to addr, which is either host:port or a ws:// URL.
func Dial(ctx context.Context, addr string) (*Session, error) {
	url := ServerURL(addr)
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	s := &Session{
		addr:   addr,
		conn:   conn,
		reader: conn,
		frames: make(chan Frame, frameBuffer),
	}
	if br != nil {
		s.reader = br
	}
	go s.readLoop()
	return s, nil
}

// ServerURL turns a configured address into a websocket URL.
func ServerURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	return addr
}

// Addr returns the address the session was opened with.
func (s *Session) Addr() string {
	return s.addr
}

// Frames delivers inbound frames until the connection ends, then is closed.
func (s *Session) Frames() <-chan Frame {
	return s.frames
}

// Status reports the close code and reason sent by the server, if any.
func (s *Session) Status() CloseStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// Send encodes and writes one action. It returns the bytes written.
func (s *Session) Send(ctx context.Context, env protocol.ActionEnvelope) ([]byte, error) {
	data, err := protocol.EncodeAction(env)
	if err != nil {
		return nil, err
	}
	return data, s.write(ctx, ws.OpText, data)
}

// Close sends a normal close frame and drops the connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = s.write(context.Background(), ws.OpClose, body)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) write(ctx context.Context, op ws.OpCode, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return wsutil.WriteClientMessage(s.conn, op, payload)
}

func (s *Session) readLoop() {
	defer close(s.frames)
	defer s.conn.Close()

	var buf []wsutil.Message
	for {
		var err error
		buf, err = wsutil.ReadServerMessage(s.reader, buf[:0])
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) {
				s.setStatus(int(closed.Code), closed.Reason)
			}
			return
		}

		for _, msg := range buf {
			switch msg.OpCode {
			case ws.OpText, ws.OpBinary:
				env, err := protocol.DecodeServerEnvelope(msg.Payload)
				s.frames <- Frame{Raw: msg.Payload, Envelope: env, Err: err}
			case ws.OpPing:
				if err := s.write(context.Background(), ws.OpPong, msg.Payload); err != nil {
					return
				}
			case ws.OpClose:
				code, reason := ws.ParseCloseFrameData(msg.Payload)
				s.setStatus(int(code), reason)
				_ = s.write(context.Background(), ws.OpClose, ws.NewCloseFrameBody(code, ""))
				return
			}
		}
	}
}

func (s *Session) setStatus(code int, reason string) {
	s.statusMu.Lock()
	s.status = CloseStatus{Code: code, Reason: reason}
	s.statusMu.Unlock()
}
