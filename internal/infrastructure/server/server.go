// Package server wires the gateway together: store, session manager,
// classification cache, gating engine, analyzer client, lifecycle
// synchronizer, and the HTTP and WebSocket surfaces.
package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/analyzer"
	apihttp "github.com/focusgate/gateway/internal/api/http"
	"github.com/focusgate/gateway/internal/api/middleware"
	"github.com/focusgate/gateway/internal/api/ws"
	"github.com/focusgate/gateway/internal/domain/cache"
	"github.com/focusgate/gateway/internal/domain/gate"
	"github.com/focusgate/gateway/internal/domain/lifecycle"
	"github.com/focusgate/gateway/internal/domain/policy"
	"github.com/focusgate/gateway/internal/domain/session"
	"github.com/focusgate/gateway/internal/domain/tabs"
	"github.com/focusgate/gateway/internal/infrastructure/config"
	"github.com/focusgate/gateway/internal/infrastructure/logging"
	"github.com/focusgate/gateway/internal/infrastructure/monitoring"
	"github.com/focusgate/gateway/internal/infrastructure/store"
	"github.com/focusgate/gateway/internal/infrastructure/tracing"
	"github.com/focusgate/gateway/internal/shared/types"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	store    store.Store
	sessions *session.Manager
	engine   *gate.Engine
	bridge   *ws.Bridge
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}

	logger.Info("Initializing FocusGate Gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Backend),
		zap.String("analyzer", cfg.Analyzer.URL),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("gateway", logger.Logger)

	kv, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store init: %w", err)
	}

	sessions := session.NewManager(kv, logger.Logger)
	classCache := cache.New(kv, logger.Logger)
	registry := tabs.NewRegistry()

	client := analyzer.New(analyzer.Config{
		URL:        cfg.Analyzer.URL,
		Timeout:    cfg.Analyzer.Timeout,
		MaxRetries: cfg.Analyzer.MaxRetries,
		RPS:        cfg.Analyzer.RPS,
	})

	exemptions := policy.New(exemptOrigins(cfg)...)
	pages := gate.Pages{
		Block:    cfg.Gating.BlockPage,
		Analysis: cfg.Gating.AnalysisPage,
	}

	engine := gate.New(gate.Options{
		Exemptions:  exemptions,
		Sessions:    sessions,
		Verdicts:    classCache,
		Pages:       pages,
		InflightTTL: cfg.Gating.InflightTTL,
		GuardTTL:    cfg.Gating.GuardTTL,
		Logger:      logger.Logger,
	}).WithMetrics(metrics)

	bridge := ws.NewBridge(engine, registry, logger.Logger, metrics)

	synchronizer := lifecycle.New(lifecycle.Options{
		Engine:     engine,
		Tabs:       registry,
		Exemptions: exemptions,
		BlockPage:  cfg.Gating.BlockPage,
		Sink:       bridge,
		Logger:     logger.Logger,
	})
	bridge.BindSynchronizer(synchronizer)

	// Session transitions arrive through the store watch, so a session
	// started by another gateway instance still re-gates local tabs.
	sessions.Watch(func(s *types.Session) {
		synchronizer.SessionChanged(context.Background(), s)
	})

	// Seed the synchronizer with the stored record: after a restart
	// mid-session the end transition must still be observed as one. The
	// tab registry is empty here, so the seed only records state.
	if cur, err := sessions.Current(context.Background()); err == nil {
		synchronizer.SessionChanged(context.Background(), cur)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(sessions, classCache, engine, client, registry, cfg.Session, pages, metrics, logger.Logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Session control
	router.GET("/session", handlers.GetSession)
	router.POST("/session/start", handlers.StartSession)
	router.POST("/session/end", handlers.EndSession)

	// Classification
	router.POST("/analyze", handlers.Analyze)

	// Interstitial pages
	router.GET("/block", handlers.BlockPage)
	router.GET("/analyzing", handlers.AnalyzingPage)

	// Browser bridge
	router.GET("/stream", bridge.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Gateway initialized successfully")

	return &Server{
		router:   router,
		store:    kv,
		sessions: sessions,
		engine:   engine,
		bridge:   bridge,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down gateway...")

	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close store", zap.Error(err))
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.logger.Sync()

	return nil
}

func newStore(cfg *config.Config, logger *logging.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedis(store.RedisConfig{
			Addr:     cfg.Store.Addr,
			Username: cfg.Store.Username,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
			Prefix:   cfg.Store.Prefix,
		}, logger.Logger)
	default:
		return store.NewMemory(), nil
	}
}

// exemptOrigins lists the origins the gate must never touch: the
// gateway's own pages and the analyzer service.
func exemptOrigins(cfg *config.Config) []string {
	origins := []string{cfg.Gating.BlockPage, cfg.Gating.AnalysisPage, cfg.Analyzer.URL}
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Scheme != "" {
			out = append(out, u.Scheme+"://"+u.Host)
		}
	}
	return out
}
