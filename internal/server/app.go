// Package server exposes the relay over websockets and answers plain HTTP
// health checks on the same listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fenggwsx/SlashRelay/internal/config"
	"github.com/fenggwsx/SlashRelay/internal/protocol"
	"github.com/fenggwsx/SlashRelay/internal/relay"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// App serves websocket sessions for one Relay.
type App struct {
	cfg      config.ServerConfig
	relay    *relay.Relay
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewApp wires an App around r.
func NewApp(cfg config.ServerConfig, r *relay.Relay, logger zerolog.Logger) *App {
	logger = logger.With().Str("component", "server").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	origins := newOriginPolicy(cfg.Transport.AllowedOrigins, logger)

	return &App{
		cfg:    cfg,
		relay:  r,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
}

// Run listens on the configured address and serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is canceled, then closes
// every open session with a going-away frame.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	a.logger.Info().Str("addr", listener.Addr().String()).Msg("listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		a.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	a.closeSessions(shutdownCtx)
	a.cancel()
	<-errCh

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

// Handler upgrades websocket requests on any path. Other requests get the
// health endpoints.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/", a.handleIndex)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			a.handleWebSocket(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Info().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	s := newSession(conn, a.cfg.Transport, a.logger)
	if !a.track(s) {
		_ = s.Close(protocol.CloseGoingAway, "server shutdown")
		s.serve(a.ctx, a.relay)
		return
	}
	defer a.untrack(s)

	s.logger.Info().Str("path", r.URL.Path).Msg("connection opened")
	s.serve(a.ctx, a.relay)
	s.logger.Info().Msg("connection closed")
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "SlashRelay server is running.")
}

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	stats := a.relay.Stats()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok\nconnections %d\nidentities %d\nrooms %d\n",
		a.SessionCount(), stats.Identities, stats.ActiveRooms)
}

// SessionCount reports the number of open websocket sessions.
func (a *App) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *App) track(s *session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx.Err() != nil || a.sessions == nil {
		return false
	}
	a.sessions[s.id] = s
	a.wg.Add(1)
	return true
}

func (a *App) untrack(s *session) {
	a.mu.Lock()
	delete(a.sessions, s.id)
	a.mu.Unlock()
	a.wg.Done()
}

// closeSessions sends a going-away close to every session and waits for them
// to finish, dropping whatever is left when ctx expires.
func (a *App) closeSessions(ctx context.Context) {
	a.mu.Lock()
	open := make([]*session, 0, len(a.sessions))
	for _, s := range a.sessions {
		open = append(open, s)
	}
	a.sessions = nil
	a.mu.Unlock()

	for _, s := range open {
		_ = s.Close(protocol.CloseGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info().Int("sessions", len(open)).Msg("sessions closed")
	case <-ctx.Done():
		for _, s := range open {
			s.abort()
		}
		<-done
		a.logger.Warn().Int("sessions", len(open)).Msg("sessions dropped after shutdown timeout")
	}
}
