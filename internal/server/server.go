// Package server wires the gate, health checks, and metrics into a gin
// HTTP server with graceful shutdown.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mattnewell-cam/AgentPayments/internal/config"
	"github.com/mattnewell-cam/AgentPayments/internal/gate"
	"github.com/mattnewell-cam/AgentPayments/internal/health"
	"github.com/mattnewell-cam/AgentPayments/internal/logging"
	"github.com/mattnewell-cam/AgentPayments/internal/metrics"
	"github.com/mattnewell-cam/AgentPayments/internal/security"
	"github.com/mattnewell-cam/AgentPayments/internal/validation"
	"github.com/mattnewell-cam/AgentPayments/pkg/ginadapter"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	gate    *gate.Gate
	health  *health.Registry
	router  *gin.Engine
	httpSrv *http.Server
	logger  *slog.Logger

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance, constructing the gate from cfg.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	g, err := gate.New(gate.Config{
		ChallengeSecret:     cfg.ChallengeSecret,
		VerifyURL:           cfg.VerifyURL,
		APIKey:              cfg.APIKey,
		PublicPathAllowlist: cfg.PublicPathAllowlist,
		MinPayment:          cfg.MinPayment,
		HomeWallet:          cfg.HomeWallet,
		InsecureDebug:       cfg.InsecureDebug,
		Secure:              cfg.IsProduction(),
		Logger:              s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct gate: %w", err)
	}
	s.gate = g

	s.health = health.NewRegistry()
	s.health.Register("verify_service", s.checkVerifyService)

	if cfg.VerifyURL != "" && !cfg.InsecureDebug {
		if err := security.ValidateEndpointURL(cfg.VerifyURL); err != nil {
			s.logger.Warn("verify service endpoint failed SSRF safety check", "error", err)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupMetaRoutes()
	// The gate runs after the meta routes are registered (so /health,
	// /metrics and the challenge endpoint never pass through it) and
	// before everything else, protecting both declared routes and
	// gin's NoRoute fallback.
	s.router.Use(ginadapter.Middleware(s.gate))
	s.setupProtectedRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) checkVerifyService(ctx context.Context) health.Status {
	if s.cfg.VerifyURL == "" {
		return health.Status{Name: "verify_service", Healthy: false, Detail: "not configured"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.VerifyBase()+"/merchants/me", nil)
	if err != nil {
		return health.Status{Name: "verify_service", Healthy: false, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return health.Status{Name: "verify_service", Healthy: false, Detail: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return health.Status{Name: "verify_service", Healthy: false, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return health.Status{Name: "verify_service", Healthy: true}
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware([]string{"*"}))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed", "method", c.Request.Method, "path", path, "status", status, "latency_ms", latency.Milliseconds())
		case status >= 400:
			logger.Warn("request completed", "method", c.Request.Method, "path", path, "status", status, "latency_ms", latency.Milliseconds())
		default:
			logger.Info("request completed", "method", c.Request.Method, "path", path, "status", status, "latency_ms", latency.Milliseconds())
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

// setupMetaRoutes registers the endpoints that must never themselves be
// gated: health checks, metrics, and the challenge-verify callback. These
// are added before the gate middleware joins the handler chain.
func (s *Server) setupMetaRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	ginadapter.RegisterChallengeRoute(s.router, s.gate)
}

// setupProtectedRoutes registers everything downstream of the gate. Real
// deployments put their own application routes here; this repo ships a
// small demo route so the gate can be exercised end to end.
func (s *Server) setupProtectedRoutes() {
	s.router.GET("/data", s.demoDataHandler)
	s.router.GET("/", s.demoDataHandler)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "No such resource."})
	})
}

func (s *Server) demoDataHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "You have passed the gate.",
	})
}

type healthResponse struct {
	Status    string          `json:"status"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.health.CheckAll(ctx)
	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, healthResponse{
		Status:    status,
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and blocks until a shutdown signal or ctx
// cancellation, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting agentpayments gate", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
