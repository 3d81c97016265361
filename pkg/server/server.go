package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/cadence/pkg/config"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/ledger"
	"mercator-hq/cadence/pkg/pipeline"
	"mercator-hq/cadence/pkg/telemetry/health"
	"mercator-hq/cadence/pkg/telemetry/tracing"
)

// Deps are the components behind the API. Pipeline, Ledger and Experiments
// are required; Health and Metrics are mounted when set.
type Deps struct {
	Pipeline    *pipeline.Orchestrator
	Ledger      *ledger.Ledger
	Experiments *experiment.Engine

	// Scorer ranks generated variants for experiments created from a
	// baseline creative. Defaults to a scorer with seed 0.
	Scorer *experiment.Scorer

	Health      *health.Checker
	Metrics     http.Handler
	Version     health.VersionInfo

	// MetricsPath is where Metrics is mounted. Default: "/metrics".
	MetricsPath string
}

// Server is the cadence HTTP server.
type Server struct {
	config     *config.ServerConfig
	deps       Deps
	schemas    *schemas
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server. The handler is built immediately so it can be
// exercised without listening.
func New(cfg *config.ServerConfig, deps Deps) (*Server, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("server: config is required")
	case deps.Pipeline == nil:
		return nil, errors.New("server: pipeline is required")
	case deps.Ledger == nil:
		return nil, errors.New("server: ledger is required")
	case deps.Experiments == nil:
		return nil, errors.New("server: experiment engine is required")
	}

	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultPrometheusPath
	}
	if deps.Scorer == nil {
		deps.Scorer = experiment.NewScorer(0)
	}

	sc, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		config:       cfg,
		deps:         deps,
		schemas:      sc,
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound listener address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Start listens on the configured address and blocks until ctx is
// cancelled, Shutdown is called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown gracefully stops the server, waiting up to ShutdownTimeout for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer close(s.shutdownChan)

		if !s.isRunning || s.httpServer == nil {
			return
		}

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("graceful shutdown: %w", err)
			return
		}
		s.isRunning = false
		s.logger.Info("server stopped", "duration", time.Since(start))
	})
	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/triggers", s.handleTrigger)

	mux.HandleFunc("GET /v1/ledger", s.handleLedgerQuery)
	mux.HandleFunc("POST /v1/ledger/overrides", s.handleOverride)

	mux.HandleFunc("POST /v1/experiments", s.handleCreateExperiment)
	mux.HandleFunc("GET /v1/experiments", s.handleListExperiments)
	mux.HandleFunc("GET /v1/experiments/{id}", s.handleGetExperiment)
	mux.HandleFunc("POST /v1/experiments/{id}/events", s.handleRecordEvent)
	mux.HandleFunc("GET /v1/experiments/{id}/winner", s.handleWinner)
	mux.HandleFunc("POST /v1/experiments/{id}/close", s.handleTransition(s.deps.Experiments.Close))
	mux.HandleFunc("POST /v1/experiments/{id}/archive", s.handleTransition(s.deps.Experiments.Archive))
	mux.HandleFunc("POST /v1/experiments/{id}/reset", s.handleTransition(s.deps.Experiments.Reset))

	if s.deps.Health != nil {
		health.Mount(mux, s.deps.Health, s.deps.Version)
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics)
	}

	var handler http.Handler = mux
	handler = timeoutMiddleware(s.config.WriteTimeout)(handler)
	handler = bodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	handler = tracing.HTTPMiddleware(handler)
	if s.config.Auth.Enabled {
		handler = authMiddleware(newKeyring(s.config.Auth))(handler)
	}
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}
