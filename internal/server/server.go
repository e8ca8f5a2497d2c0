// Package server is the optional HTTP status server: health, engine
// status, run history, prometheus metrics and a websocket event stream.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/config"
	"github.com/watzon/clickloop/internal/engine"
	"github.com/watzon/clickloop/internal/events"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/realtime"
)

// StatusSource reports the engine state served on /status.
type StatusSource interface {
	Status() engine.Status
}

type Server struct {
	cfg        *config.StatusConfig
	source     StatusSource
	broker     *realtime.Broker
	history    *history.Store
	limiter    *RateLimiter
	httpServer *http.Server
	router     *Router
}

type Option func(*Server)

// WithEvents streams bus events to websocket clients on /ws.
func WithEvents(bus *events.EventBus) Option {
	return func(s *Server) {
		s.broker = realtime.NewBroker(bus, &realtime.BrokerConfig{
			MaxConnections: s.cfg.MaxConnections,
		})
	}
}

// WithHistory serves recent runs on /history.
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

func New(cfg *config.StatusConfig, source StatusSource, opts ...Option) *Server {
	srv := &Server{
		cfg:    cfg,
		source: source,
	}

	for _, opt := range opts {
		opt(srv)
	}

	if cfg.ConnectLimit.Max > 0 {
		srv.limiter = NewRateLimiter(cfg.ConnectLimit)
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting status server")

	if s.broker != nil {
		s.broker.Start()
		log.Info().Msg("Event stream started")
	}

	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down status server")

	if s.broker != nil {
		s.broker.Stop()
		log.Info().Msg("Event stream stopped")
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Broker() *realtime.Broker {
	return s.broker
}
