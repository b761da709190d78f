package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HTTPService runs an http.Server as a registry service.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// NewHTTPService creates a service serving handler on address.
func NewHTTPService(address string, handler http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration,
	logger zerolog.Logger) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:         address,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// Addr returns the bound address once started.
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *HTTPService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("http service is already running")
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server listening")
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to the shutdown timeout.
func (s *HTTPService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return errors.New("http service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	<-s.done
	s.listener = nil
	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
