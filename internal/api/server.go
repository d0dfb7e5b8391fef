package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/action"
	"github.com/nerrad567/gray-logic-things/internal/history"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HistoryReader serves the property history route. *history.Repository
// satisfies it.
type HistoryReader interface {
	List(ctx context.Context, thingID, property string, limit int) ([]history.Entry, error)
}

// HealthChecker is a dependency reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthDetailer is implemented by checkers that report extra state,
// such as pool or subscription counts, under /health details.
type HealthDetailer interface {
	HealthDetails() map[string]any
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *thing.Registry
	Actions  *action.Executor

	// History is optional; without it the history route answers 503.
	History HistoryReader

	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.Metrics

	// Checks are named dependencies reported by /health.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP and WebSocket transport for the thing registry.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	registry *thing.Registry
	actions  *action.Executor
	history  HistoryReader
	metrics  *metrics.Metrics
	checks   map[string]HealthChecker
	version  string

	hub      *Hub
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a server. The WebSocket hub exists immediately so it can be
// registered as a notification sink before Start.
//
// Returns an error if the logger or registry is missing.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("thing registry is required")
	}
	if deps.Actions == nil {
		deps.Actions = action.NewExecutor(nil, 0, 0)
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		registry: deps.Registry,
		actions:  deps.Actions,
		history:  deps.History,
		metrics:  deps.Metrics,
		checks:   deps.Checks,
		version:  deps.Version,
		hub:      NewHub(deps.WS, deps.Logger, deps.Registry, deps.Metrics),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
//
// Returns an error if the address cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening",
		"address", ln.Addr().String(),
		"mode", s.registry.Mode().String(),
		"things", s.registry.Len(),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is serving.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
