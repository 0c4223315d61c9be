// Package rest exposes the identity service over HTTP/JSON: invitations,
// registration, login, session verification and the coach listing, plus
// health and metrics endpoints.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/woodraft/draftauth/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server runs the HTTP endpoint until its context is cancelled.
type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

// NewServer returns a Server that will listen on address and serve h.
func NewServer(address string, l logging.Logger, h http.Handler) *Server {
	return &Server{
		address: address,
		handler: h,
		logger:  l.With("module", "http_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, letting in-flight requests finish within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
