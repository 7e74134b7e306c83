package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. Event streams
// extend their own write deadlines, so WriteTimeout only bounds ordinary
// responses.
func New(port int, handler http.Handler, logger *slog.Logger) *Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	// Long-lived streams never go idle on their own; cancelling the base
	// context ends them so Shutdown can complete.
	srv.RegisterOnShutdown(cancel)
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return &Server{inner: srv}
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Serve accepts connections on l until the server shuts down.
func (s *Server) Serve(l net.Listener) error {
	return s.inner.Serve(l)
}
