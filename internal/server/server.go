package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/api/middleware"
	"github.com/GriffinCanCode/jobscan/internal/backend"
	"github.com/GriffinCanCode/jobscan/internal/domains"
	"github.com/GriffinCanCode/jobscan/internal/history"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
	"github.com/GriffinCanCode/jobscan/internal/tabs"
)

// Config contains server configuration.
type Config struct {
	Addr         string
	CORS         middleware.CORSConfig
	RateLimit    *middleware.RateLimitConfig
	MaxBodyBytes int64
	Development  bool
	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

// Deps are the components the handlers drive. Backend may be nil; the
// apply endpoints then answer 503.
type Deps struct {
	Scanner  *scanner.Scanner
	Sessions *session.Manager
	Policy   *domains.Policy
	Tabs     *tabs.Registry
	History  *history.History
	Backend  *backend.Client
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Server wraps the router and its dependencies.
type Server struct {
	cfg    Config
	deps   Deps
	router *gin.Engine
	logger *logging.Logger
}

// New builds the router.
func New(cfg Config, deps Deps) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.CORS.AllowOrigins) == 0 {
		cfg.CORS = middleware.DefaultCORSConfig()
	}
	if deps.Tabs == nil {
		deps.Tabs = tabs.NewRegistry(deps.Logger)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	logger := logging.OrNop(deps.Logger).Named("server")

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(monitoring.Middleware(deps.Metrics))
	router.Use(middleware.CORS(cfg.CORS))
	if cfg.RateLimit != nil {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
		router.Use(middleware.RateLimit(*cfg.RateLimit))
	}

	s := &Server{cfg: cfg, deps: deps, router: router, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	// Scanning
	r.POST("/scan", s.scanPage)
	r.POST("/scan/frames", s.scanFrames)

	// Sessions
	r.POST("/sessions", s.createSession)
	r.GET("/sessions", s.listSessions)
	r.GET("/sessions/:id", s.getSession)
	r.GET("/sessions/domain/:domain", s.getSessionByDomain)
	r.DELETE("/sessions/:id", s.deleteSession)

	// Dispatch slot
	r.POST("/dispatch", s.saveDispatch)
	r.GET("/dispatch", s.getDispatch)
	r.DELETE("/dispatch", s.clearDispatch)

	// Domain policy
	r.GET("/domains", s.getDomainRules)
	r.PUT("/domains", s.setDomainRules)
	r.GET("/domains/check", s.checkDomain)

	// Tabs
	r.GET("/tabs", s.listTabs)
	r.POST("/tabs/:id/overlay", s.attachOverlay)
	r.DELETE("/tabs/:id/overlay", s.closeTab)
	r.POST("/tabs/:id/navigate", s.navigateTab)

	// Matching backend
	r.POST("/apply", s.apply)
	r.POST("/apply/force", s.forceApply)
	r.GET("/history", s.listHistory)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
