// Package httpserver is the outer skin of the relay: the websocket upgrade
// endpoint, the liveness probe and the informational names listing. All chat
// semantics live behind the callbacks it is constructed with.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// healthBody is the fixed liveness response.
const healthBody = "Ephemeral OK"

// Options groups the transport tuning, all sourced from config.
type Options struct {
	Addr             string
	HandshakeTimeout time.Duration
	AllowedOrigins   []string
}

// SessionFunc runs one upgraded connection to completion. It blocks for the
// connection's whole life; the server calls it from the handler goroutine,
// which is exactly how gorilla expects long-lived connections to be driven.
type SessionFunc func(ctx context.Context, conn *websocket.Conn)

// Server serves /ws, /health and /names.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	upgrader   websocket.Upgrader
	runSession SessionFunc
	names      func() []string

	// base is the lifecycle context handed to every session so an engine
	// shutdown reaches connections the HTTP server no longer owns.
	base context.Context
}

func New(log *slog.Logger, opts Options, runSession SessionFunc, names func() []string) *Server {
	s := &Server{
		log:        log,
		runSession: runSession,
		names:      names,
		base:       context.Background(),
	}

	checkOrigin := newOriginChecker(log, opts.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: opts.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/names", s.handleNames)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the mux so tests can mount the server on an ephemeral
// listener. base becomes the lifecycle context of sessions accepted through it.
func (s *Server) Handler(base context.Context) http.Handler {
	s.base = base
	return s.httpServer.Handler
}

// ListenAndServe blocks until Shutdown or a fatal listener error.
// base becomes the lifecycle context of every session accepted from now on.
func (s *Server) ListenAndServe(base context.Context) error {
	s.base = base
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting and drains handlers within the context budget.
// Live websocket sessions are not waited for here; they end when the base
// context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.runSession(s.base, conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthBody))
}

func (s *Server) handleNames(w http.ResponseWriter, _ *http.Request) {
	names := s.names()
	if names == nil {
		names = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		s.log.Debug("writing names listing", "error", err)
	}
}
