package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apihttp "github.com/alanensastegui/subsights-demo/backend/internal/api/http"
	"github.com/alanensastegui/subsights-demo/backend/internal/api/middleware"
	"github.com/alanensastegui/subsights-demo/backend/internal/api/ws"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/delivery"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/config"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/logging"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/monitoring"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/resilience"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/storage"
	"github.com/alanensastegui/subsights-demo/backend/internal/providers/origin"
	"github.com/alanensastegui/subsights-demo/backend/internal/providers/probe"
	"github.com/alanensastegui/subsights-demo/backend/internal/providers/reporting"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	registry target.Registry
	events   *telemetry.Store
	eventLog storage.Log
	nats     *nats.Conn
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.FromConfig(cfg.Logging)
	}
	logger.Info("Initializing demo orchestrator",
		zap.String("port", cfg.Server.Port),
		zap.String("registry", cfg.Registry.Path),
		zap.String("telemetry_backend", cfg.Telemetry.Backend),
	)

	if err := origin.SelfCheck(); err != nil {
		return nil, fmt.Errorf("generated scripts failed self-check: %w", err)
	}

	registry, err := target.LoadFile(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded target registry", zap.Int("targets", len(registry.List())))

	// Initialize metrics first (needed by other components)
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promRegistry)

	eventLog, err := OpenEventLog(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		eventLog: eventLog,
	}
	s.events = telemetry.NewStore(eventLog,
		telemetry.WithKey(cfg.Telemetry.Key),
		telemetry.WithCapacity(cfg.Telemetry.Capacity),
		telemetry.WithLogger(logger.Component("telemetry")),
		telemetry.WithSinks(s.sinks()...),
		telemetry.WithSinkFailureHook(metrics.SinkFailed),
	)

	policy := origin.BreakerPolicy(breakerThreshold, breakerCooldown)
	breakerLog := logger.Component("breaker")
	policy.OnStateChange = func(key string, from, to resilience.State) {
		breakerLog.Warn("origin breaker changed state",
			zap.String("origin", key),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.BreakerChanged(key, from, to)
	}
	breakers := resilience.NewSet(policy)

	fetcher := origin.NewFetcher(origin.FetchOptions{
		Timeout:  cfg.Proxy.Timeout,
		MaxBytes: cfg.Proxy.MaxBytes,
		Breakers: breakers,
	})
	prober := probe.New(probe.Options{
		Timeout:        cfg.Probe.Timeout,
		EmbedderOrigin: strings.TrimRight(cfg.Probe.EmbedderOrigin, "/"),
	})

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Registry: registry,
		Proxy:    origin.NewProxy(registry, fetcher, logger.Component("proxy")),
		Relay:    origin.NewRelay(cfg.Proxy.Timeout, nil),
		Prober:   prober,
		Events:   s.events,
		Metrics:  metrics,
		Breakers: breakers,
		Logger:   logger.Component("http"),
	})
	wsHandler := ws.NewHandler(ws.Options{
		Registry: registry,
		Recorder: s.events,
		Prober: delivery.ProberFunc(func(ctx context.Context, t target.Target) (bool, string) {
			result := prober.Probe(ctx, t)
			metrics.RecordProbe(t.Slug, result.Allowed)
			return result.Allowed, result.Summary()
		}),
		Timeouts: delivery.Timeouts{
			Proxy: cfg.Delivery.ProxyTimeout,
			Embed: cfg.Delivery.EmbedTimeout,
			Probe: cfg.Probe.Timeout,
		},
		Metrics: metrics,
		Logger:  logger.Component("view"),
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.AllowOrigins
	router.Use(middleware.CORS(corsCfg))

	relayChain := []gin.HandlerFunc{}
	if cfg.RateLimit.Enabled {
		logger.Info("Relay rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		relayChain = append(relayChain, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	relayChain = append(relayChain, handlers.Relay)

	// Register routes
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	pages := router.Group("/", middleware.Session())
	pages.GET("/demo/:slug", handlers.Shell)

	api := router.Group("/api")
	api.GET("/targets", handlers.ListTargets)

	demo := api.Group("/demo", middleware.Session())
	demo.POST("/events", handlers.RecordEvent)
	demo.GET("/events", handlers.ListEvents)
	demo.DELETE("/events", handlers.ClearEvents)
	demo.GET("/events/summary", handlers.EventSummary)
	demo.GET("/:slug/proxy", handlers.Proxy)
	demo.GET("/:slug/probe", handlers.Probe)
	demo.GET("/:slug/default", handlers.DefaultPage)
	demo.GET("/:slug/view", wsHandler.HandleView)
	demo.Any("/:slug/relay", relayChain...)

	s.router = router
	logger.Info("Server initialized successfully")
	return s, nil
}

// sinks builds the reporting sinks. Sinks that fail to connect are skipped:
// reporting never blocks startup.
func (s *Server) sinks() []telemetry.Sink {
	sinks := []telemetry.Sink{
		reporting.NewLogSink(s.logger.Component("events")),
		s.metrics,
	}

	rc := s.config.Reporting
	if rc.NATSURL != "" {
		conn, err := reporting.ConnectNATS(reporting.DefaultNATSConfig(rc.NATSURL), s.logger.Component("nats"))
		if err != nil {
			s.logger.Warn("NATS reporting disabled", zap.Error(err))
		} else {
			s.nats = conn
			sinks = append(sinks, reporting.NewNATSSink(conn, rc.NATSSubject))
			s.logger.Info("NATS reporting enabled", zap.String("subject", rc.NATSSubject))
		}
	}
	if rc.WebhookURL != "" {
		sinks = append(sinks, reporting.NewWebhookSink(rc.WebhookURL, reporting.WebhookOptions{}))
		s.logger.Info("Webhook reporting enabled")
	}
	return sinks
}

// OpenEventLog opens the configured telemetry backend.
func OpenEventLog(ctx context.Context, cfg config.TelemetryConfig) (storage.Log, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryLog(), nil
	case "file":
		log, err := storage.NewFileLog(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return log, nil
	case "redis":
		log, err := storage.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return log, nil
	default:
		return nil, fmt.Errorf("unknown telemetry backend %q", cfg.Backend)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Events returns the telemetry store.
func (s *Server) Events() *telemetry.Store {
	return s.events
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains pending reports, and releases
// storage and broker connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	s.events.Close()
	if s.nats != nil {
		if err := s.nats.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats drain: %w", err))
		}
		s.logger.Info("Closed NATS connection")
	}
	if err := s.eventLog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event log: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
