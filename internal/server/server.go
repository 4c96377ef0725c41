// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mistagar/credinsight/internal/aiclient"
	"github.com/mistagar/credinsight/internal/circuitbreaker"
	"github.com/mistagar/credinsight/internal/config"
	"github.com/mistagar/credinsight/internal/customer"
	"github.com/mistagar/credinsight/internal/health"
	"github.com/mistagar/credinsight/internal/logging"
	"github.com/mistagar/credinsight/internal/metrics"
	"github.com/mistagar/credinsight/internal/realtime"
	"github.com/mistagar/credinsight/internal/risk"
	"github.com/mistagar/credinsight/internal/security"
	"github.com/mistagar/credinsight/internal/throttle"
	"github.com/mistagar/credinsight/internal/validation"
	"github.com/mistagar/credinsight/internal/webhooks"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	customers    customer.Store
	risks        risk.Store
	scorer       *risk.Scorer
	parser       *risk.Parser
	breaker      *circuitbreaker.Breaker
	ai           *aiclient.Client // nil if AI backend not configured
	chat         *aiclient.ChatSession
	sender       aiclient.Sender // injected via WithSender for testing
	throttle     *throttle.Throttle
	webhookStore webhooks.Store
	dispatcher   *webhooks.Dispatcher
	emitter      *webhooks.Emitter
	realtimeHub  *realtime.Hub
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSender sets a custom AI backend sender (for testing)
func WithSender(sender aiclient.Sender) Option {
	return func(s *Server) {
		s.sender = sender
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		scorer: risk.NewScorer(),
		parser: risk.NewParser(),
	}

	// Apply options first (may set sender/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.customers = customer.NewPostgresStore(db)
		s.risks = risk.NewPostgresStore(db)
		s.webhookStore = webhooks.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.customers = customer.NewMemoryStore()
		s.risks = risk.NewMemoryStore()
		s.webhookStore = webhooks.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Webhook dispatch for external integrations
	s.dispatcher = webhooks.NewDispatcher(s.webhookStore)
	s.emitter = webhooks.NewEmitter(s.dispatcher, s.logger)
	s.logger.Info("webhooks enabled")

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Circuit breaker shared by all AI calls
	s.breaker = circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)
	s.breaker.OnOpen(func(retryAfter time.Duration) {
		s.logger.Warn("AI circuit breaker opened", "retry_after", retryAfter)
		s.emitter.EmitCircuitOpened(retryAfter)
		s.realtimeHub.BroadcastAIStatus(false, int(retryAfter.Seconds()))
	})

	// AI backend client (optional; routes return 503 without it)
	if s.sender == nil && cfg.AIEnabled() {
		s.sender = aiclient.NewHTTPSender(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	}
	if s.sender != nil {
		s.ai = aiclient.New(s.sender, s.breaker, s.logger)
		s.chat = aiclient.NewChatSession(s.ai, cfg.AIMaxRetries)
		s.logger.Info("AI backend enabled", "model", cfg.AIModel)
	} else {
		s.logger.Info("AI backend not configured, AI routes disabled")
	}

	// Inbound throttle for the AI routes
	throttleCfg := throttle.DefaultConfig()
	throttleCfg.MinInterval = cfg.ThrottleInterval
	s.throttle = throttle.New(throttleCfg)

	// Health checks
	s.healthReg = health.NewRegistry()
	s.healthReg.Register("database", health.DatabaseChecker(s.db))
	var aiProbe health.AvailabilityReporter
	if s.ai != nil {
		aiProbe = s.ai
	}
	s.healthReg.Register("ai", health.AIChecker(aiProbe))

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
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

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
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

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Unknown routes get the API's JSON error envelope, not gin's
	// plain-text default.
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "no such route",
		})
	})

	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/health/ai-status", s.aiStatusHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info endpoint
	s.router.GET("/api", s.infoHandler)

	api := s.router.Group("/api")
	api.Use(s.customerIDParamMiddleware())

	// Customer records and their owned histories
	api.POST("/customers", s.createCustomer)
	api.GET("/customers", s.listCustomers)
	api.GET("/customers/:customerId", s.getCustomer)
	api.DELETE("/customers/:customerId", s.deleteCustomer)
	api.POST("/customers/:customerId/transactions", s.addTransaction)
	api.GET("/customers/:customerId/transactions", s.listTransactions)
	api.POST("/customers/:customerId/logins", s.addLogin)
	api.GET("/customers/:customerId/logins", s.listLogins)

	// Risk audit trail
	api.GET("/customers/:customerId/assessments", s.listAssessments)
	api.GET("/customers/:customerId/analyses", s.listAnalyses)

	// Deterministic rule-based scoring (always available)
	api.POST("/risk/assess/:customerId", s.assessRisk)

	// AI routes: throttled per client, circuit-broken at the backend
	ai := api.Group("/ai")
	ai.Use(s.throttle.Middleware())
	{
		ai.POST("/send-message", s.sendMessage)
		ai.GET("/chat-history", s.chatHistory)
		ai.POST("/system-message", s.addSystemMessage)
		ai.POST("/assess-risk/:customerId", s.aiAssessRisk)
		ai.POST("/analyze-transactions/:customerId", s.analyzeTransactions)
		ai.POST("/kyc-check/:customerId", s.kycCheck)
		ai.POST("/location-check/:customerId", s.locationCheck)
		ai.POST("/profile-check/:customerId", s.profileCheck)
	}

	// Webhook subscription management
	webhookHandler := webhooks.NewHandler(s.webhookStore, s.cfg.WebhookSecret)
	webhookHandler.RegisterRoutes(api)
}

// customerIDParamMiddleware rejects malformed customer IDs before they
// reach a handler (no-op when the param is absent).
func (s *Server) customerIDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("customerId")
		if id != "" && !validation.IsValidCustomerID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_customer_id",
				"message": "customer ID must look like cus_<hex>",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	allHealthy, statuses := s.healthReg.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
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

// aiStatusHandler reports circuit breaker state for the AI backend
func (s *Server) aiStatusHandler(c *gin.Context) {
	if s.ai == nil {
		c.JSON(http.StatusOK, gin.H{
			"circuitBreakerOpen": false,
			"secondsUntilReset":  0,
			"message":            "AI backend not configured.",
		})
		return
	}

	open := s.breaker.IsOpen()
	seconds := 0
	message := "AI service operating normally."
	if open {
		seconds = int(s.breaker.TimeUntilReset().Seconds())
		message = "AI service temporarily unavailable. Deterministic scoring remains available."
	}

	c.JSON(http.StatusOK, gin.H{
		"circuitBreakerOpen": open,
		"secondsUntilReset":  seconds,
		"message":            message,
	})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "CredInsight",
		"description": "KYC risk assessment backend with AI-assisted analysis",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Export DB pool stats while the server runs
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
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

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, stats collector)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
