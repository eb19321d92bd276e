// Package relay is the HTTP front for the notifier. CI systems that cannot
// run the CLI POST their build snapshots here and the relay runs the same
// build -> send -> verify pipeline synchronously.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"buildalert/internal/config"
	"buildalert/internal/notifications/opsgenie"
	"buildalert/internal/types"
)

// defaultRequestTimeout applies when the config does not set one.
const defaultRequestTimeout = 60 * time.Second

// BuildNotifier runs one notification. *opsgenie.Notifier satisfies it.
type BuildNotifier interface {
	Notify(ctx context.Context, phase types.Phase, build *types.BuildSnapshot, overrides types.Overrides) opsgenie.Outcome
}

// Server holds the relay dependencies and its router.
type Server struct {
	Config    *config.Config
	Notifier  BuildNotifier
	Logger    types.Logger
	Validator *validator.Validate

	router *chi.Mux
}

// NewServer wires the dependencies and mounts all routes.
func NewServer(cfg *config.Config, notifier BuildNotifier, logger types.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Notifier:  notifier,
		Logger:    logger,
		Validator: config.NewValidator(),
		router:    chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes registers the middleware chain and the endpoints.
//
// Recoverer is outermost so panics anywhere below it become a 500 envelope.
// RequestID runs before the logger so every log line carries the ID, which
// the notifier also reuses as the event ID.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/v1/builds", func(r chi.Router) {
		r.Post("/start", s.HandleBuildStart)
		r.Post("/finish", s.HandleBuildFinish)
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}
