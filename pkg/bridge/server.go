package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"flowcap/pkg/config"
	"flowcap/pkg/recording"
	"flowcap/pkg/session"
)

// Server is the bridge daemon's HTTP front. It owns the middleware
// stack and the fasthttp server; the coordinator, relay and stores are
// shared with the rest of the process.
type Server struct {
	config           *config.Config
	router           *Router
	server           *fasthttp.Server
	logger           *zap.Logger
	coordinator      session.Coordinator
	relay            *Relay
	recordings       recording.Store
	rateLimiter      *RateLimiter
	metricsCollector *DefaultMetricsCollector

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// NewServer assembles the bridge server. The caller owns the
// coordinator and store lifecycles; Close only releases what the
// server itself created.
func NewServer(cfg *config.Config, coordinator session.Coordinator, relay *Relay, recordings recording.Store, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if relay == nil {
		return nil, fmt.Errorf("relay cannot be nil")
	}
	if recordings == nil {
		return nil, fmt.Errorf("recordings store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &Server{
		config:      cfg,
		logger:      logger,
		coordinator: coordinator,
		relay:       relay,
		recordings:  recordings,
	}
	s.rebuild(cfg)

	return s, nil
}

// rebuild constructs the router, middleware stack and fasthttp server
// for the given configuration
func (s *Server) rebuild(cfg *config.Config) {
	router := NewRouter(s.logger)

	handlers := NewHandlers(s.coordinator, s.relay, s.recordings, cfg.Server.PollWindow, s.logger)
	handlers.RegisterRoutes(router)
	router.Register("GET", "/api/v1/stats", s.statsHandler)

	var metricsCollector *DefaultMetricsCollector
	if cfg.Metrics.Enabled {
		metricsCollector = NewDefaultMetricsCollector()
	}

	var rateLimiter *RateLimiter
	if cfg.Middleware.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(&cfg.Middleware.RateLimit, s.logger)
	}

	stack := NewStack()

	if cfg.Middleware.RequestID {
		stack.Use(RequestID(true))
	}

	// Logger middleware is always added
	stack.Use(Logger(s.logger))

	if cfg.Middleware.Recovery.Enabled {
		stack.Use(Recovery(s.logger, &cfg.Middleware.Recovery))
	}

	if cfg.Middleware.CORS.Enabled {
		stack.Use(CORS(&cfg.Middleware.CORS))
	}

	// Auth comes after CORS so preflights pass without a token
	if cfg.Middleware.Auth.Enabled {
		stack.Use(Auth(&cfg.Middleware.Auth, s.logger))
	}

	if rateLimiter != nil {
		stack.Use(RateLimit(rateLimiter, "/api/v1/sync"))
	}

	if cfg.Middleware.Timeout.Enabled {
		stack.Use(Timeout(&cfg.Middleware.Timeout))
	}

	if metricsCollector != nil {
		stack.Use(Metrics(metricsCollector))
	}

	finalHandler := stack.Apply(router.Handler)

	server := &fasthttp.Server{
		Handler:       finalHandler,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		MaxConnsPerIP: cfg.Server.MaxConnsPerIP,
		Concurrency:   cfg.Server.Concurrency,
		ErrorHandler: func(ctx *fasthttp.RequestCtx, err error) {
			s.logger.Error("FastHTTP error",
				zap.Error(err),
				zap.String("path", string(ctx.Path())),
				zap.String("method", string(ctx.Method())),
			)
		},
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	s.config = cfg
	s.router = router
	s.server = server
	s.rateLimiter = rateLimiter
	s.metricsCollector = metricsCollector
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	addr := s.addrLocked()

	s.logger.Info("Starting bridge server",
		zap.String("address", addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
		zap.Duration("poll_window", s.config.Server.PollWindow),
	)

	s.running = true
	s.startTime = time.Now()

	srv := s.server
	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		if err := srv.ListenAndServe(addr); err != nil {
			s.logger.Error("Server stopped with error", zap.Error(err))
		}
	}()

	// Give server a moment to start
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Debug("Server is not running")
		return nil
	}

	s.logger.Info("Stopping bridge server...")

	if err := s.server.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	s.running = false
	s.logger.Info("Bridge server stopped successfully")
	return nil
}

// Restart rebuilds the server with new configuration and starts it
// again. On rebuild failure the old configuration keeps serving.
func (s *Server) Restart(newConfig *config.Config) error {
	s.logger.Info("Restarting bridge server with new configuration")

	if err := config.Validate(newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := s.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Wait a moment for shutdown to complete
	time.Sleep(200 * time.Millisecond)

	s.mu.Lock()
	s.rebuild(newConfig)
	s.mu.Unlock()

	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start server with new configuration: %w", err)
	}

	s.logger.Info("Bridge server restarted successfully")
	return nil
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addrLocked()
}

func (s *Server) addrLocked() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// IsRunning returns true if the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ServerStats represents server statistics
type ServerStats struct {
	Addr      string                 `json:"addr"`
	StartTime time.Time              `json:"start_time"`
	IsRunning bool                   `json:"is_running"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// GetStats returns server statistics
func (s *Server) GetStats() ServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ServerStats{
		Addr:      s.addrLocked(),
		StartTime: s.startTime,
		IsRunning: s.running,
	}

	if s.metricsCollector != nil {
		stats.Metrics = s.metricsCollector.GetMetrics()
	}

	return stats
}

func (s *Server) statsHandler(ctx *fasthttp.RequestCtx) error {
	writeJSON(ctx, fasthttp.StatusOK, s.GetStats())
	return nil
}
