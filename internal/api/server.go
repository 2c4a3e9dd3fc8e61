// Package api provides the read-only HTTP status server for illuminate-door.
//
// It reports service health, the configured door automations with their
// current overrides, and recent activity from the local log. Nothing
// exposed here changes automation state.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/petro31/illuminate-door/internal/activity"
	"github.com/petro31/illuminate-door/internal/infrastructure/config"
	"github.com/petro31/illuminate-door/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// AutomationStatus describes one running door automation.
type AutomationStatus struct {
	Name       string   `json:"name"`
	Sensor     string   `json:"sensor"`
	Overridden []string `json:"overridden"`
}

// AutomationSource lists the running automations.
type AutomationSource interface {
	Automations(ctx context.Context) ([]AutomationStatus, error)
}

// CheckFunc reports the health of one dependency.
type CheckFunc func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Timeouts    Timeouts
	Logger      *logging.Logger
	Automations AutomationSource
	Activity    activity.Repository // nil when the activity log is disabled
	Checks      map[string]CheckFunc
	Version     string
}

// Timeouts bounds HTTP request handling.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Server is the HTTP status server.
type Server struct {
	cfg         config.APIConfig
	timeouts    Timeouts
	logger      *logging.Logger
	automations AutomationSource
	activity    activity.Repository
	checks      map[string]CheckFunc
	version     string

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Automations == nil {
		return nil, errors.New("automation source is required")
	}

	return &Server{
		cfg:         deps.Config,
		timeouts:    deps.Timeouts,
		logger:      deps.Logger,
		automations: deps.Automations,
		activity:    deps.Activity,
		checks:      deps.Checks,
		version:     deps.Version,
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("api server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.timeouts.Read,
		ReadHeaderTimeout: s.timeouts.Read,
		WriteTimeout:      s.timeouts.Write,
		IdleTimeout:       s.timeouts.Idle,
	}
	s.addr = ln.Addr()

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.addr.String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
