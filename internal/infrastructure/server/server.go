package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/jsworker/internal/api/http"
	"github.com/GriffinCanCode/jsworker/internal/api/middleware"
	"github.com/GriffinCanCode/jsworker/internal/host"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/tracing"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	host     *host.Host
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	tracer   *tracing.Tracer
	http     *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	return New(cfg, logger)
}

// New creates a server logging to logger.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg.Worker.MaxWorkers < 0 {
		return nil, fmt.Errorf("invalid max workers: %d", cfg.Worker.MaxWorkers)
	}

	logger.Info("Initializing worker host",
		zap.String("port", cfg.Server.Port),
		zap.Int("max_workers", cfg.Worker.MaxWorkers),
	)

	// Private registry: runtime collectors plus worker metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	logger.Info("Performance monitoring initialized")

	tracer := tracing.New("jsworker-host", logger.Logger)

	workerHost := host.New(host.Config{
		MaxWorkers:       cfg.Worker.MaxWorkers,
		MaxMessageBytes:  cfg.Worker.MaxMessageBytes,
		MaxCallStackSize: cfg.Worker.MaxCallStackSize,
		BootTimeout:      cfg.Worker.BootTimeout,
	}, logger.Logger, metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	// Register routes
	workerHost.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	router.GET("/metrics/json", apihttp.NewMetricsAggregator(metrics, workerHost).GetAggregatedMetrics)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		host:     workerHost,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
		tracer:   tracer,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Host returns the worker host.
func (s *Server) Host() *host.Host {
	return s.host
}

// Run starts the HTTP server and blocks until it stops. A server stopped
// by Close returns nil.
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	// Workers first so their connections close with a reason
	s.host.Close()
	s.logger.Info("Stopped all workers")

	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err = s.http.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
			err = fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	}

	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return err
}
