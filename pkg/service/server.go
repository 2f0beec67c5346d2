package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/log"
)

const (
	serverShutdownTimeout = 5 * time.Second
	readHeaderTimeout     = 10 * time.Second
)

// Server serves metrics and probe endpoints.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and returns a server that is not yet serving.
func Listen(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Server{
		srv: &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout},
		ln:  ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve serves requests in the background. Serve errors are logged.
func (s *Server) Serve() {
	log.Info("Serving metrics and probes on %s", s.Addr())
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error: %v", err)
		}
	}()
}

// Shutdown stops the server, waiting at most 5 seconds or until ctx expires,
// whichever is sooner.
func (s *Server) Shutdown(ctx context.Context) error {
	serverTimeout := serverShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < serverTimeout {
			serverTimeout = remaining
		}
	}

	serverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverTimeout)
	defer cancel()

	if err := s.srv.Shutdown(serverCtx); err != nil {
		log.Warning("Metrics server shutdown error: %v", err)
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	log.Info("Metrics server shut down successfully")
	return nil
}
