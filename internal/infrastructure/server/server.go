package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	apihttp "github.com/GriffinCanCode/Bloom/backend/internal/api/http"
	"github.com/GriffinCanCode/Bloom/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/analysis"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/extract"
	"github.com/GriffinCanCode/Bloom/backend/internal/domain/session"
	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Bloom/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Bloom/backend/internal/providers/completion"
)

var (
	_ session.Recorder    = (*monitoring.Metrics)(nil)
	_ extract.Recorder    = (*monitoring.Metrics)(nil)
	_ completion.Recorder = (*monitoring.Metrics)(nil)
	_ analysis.Recorder   = (*monitoring.Metrics)(nil)
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	sessions *session.Manager
	tracer   *tracing.Tracer
	logger   *zap.Logger
	config   *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing Bloom backend",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("provider", cfg.Provider.BaseURL),
		zap.String("session_dir", cfg.Sessions.Dir),
	)
	if cfg.Provider.APIKey == "" {
		logger.Warn("GROQ_API_KEY is not set; provider requests are sent unauthenticated")
	}

	// Metrics first, every component records into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("bloom", logger)

	sessions, err := session.NewManager(session.Config{
		BaseDir:     cfg.Sessions.Dir,
		TTL:         cfg.Sessions.TTL,
		MaxFileSize: cfg.Sessions.MaxFileSize,
	}, logger, session.WithMetrics(metrics))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	catalog := completion.DefaultCatalog()
	if cfg.Provider.ModelCatalog != "" {
		catalog, err = completion.LoadCatalog(cfg.Provider.ModelCatalog)
		if err != nil {
			tracer.Close()
			return nil, err
		}
		logger.Info("Loaded model catalog", zap.String("path", cfg.Provider.ModelCatalog))
	}

	client := completion.New(completion.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Timeout:     cfg.Provider.Timeout,
		LongTimeout: cfg.Provider.LongTimeout,
		MaxElapsed:  cfg.Provider.MaxElapsed,
		MaxAttempts: cfg.Provider.MaxAttempts,
		BackoffBase: cfg.Provider.BackoffBase,
		BackoffMax:  cfg.Provider.BackoffMax,
		RPS:         cfg.Provider.RPS,
		Catalog:     catalog,
	}, logger, completion.WithMetrics(metrics))

	extractor := extract.New(logger, extract.WithMetrics(metrics))
	analyzer := analysis.New(client, sessions, extractor, logger, analysis.WithMetrics(metrics))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
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

	handlers := apihttp.NewHandlers(sessions, analyzer, metrics, logger)
	handlers.Register(router, middleware.BodyLimit)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		sessions: sessions,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if n := s.config.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	s.sessions.StartSweeper(sweepCtx, s.config.Sessions.SweepInterval)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.Int("max_connections", s.config.Server.MaxConnections),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close flushes spans and logs.
func (s *Server) Close() error {
	s.tracer.Close()
	_ = s.logger.Sync()
	return nil
}
