package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/application/analyzer"
	"github.com/aescanero/vocalmetrics/internal/application/workers"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

// Server represents the HTTP API server
type Server struct {
	router   *gin.Engine
	server   *http.Server
	analyzer *analyzer.Service
	storage  ports.AnalysisStorage
	pool     *workers.Pool
	metrics  ports.MetricsCollector
	gatherer prometheus.Gatherer
	limiter  *uploadLimiter
	logger   *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port     int
	Analyzer *analyzer.Service
	Storage  ports.AnalysisStorage
	Pool     *workers.Pool
	Metrics  ports.MetricsCollector

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	MaxUploadSize   int64
	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int

	Logger *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.MaxMultipartMemory = 8 << 20

	s := &Server{
		router:   router,
		analyzer: cfg.Analyzer,
		storage:  cfg.Storage,
		pool:     cfg.Pool,
		metrics:  cfg.Metrics,
		gatherer: cfg.Gatherer,
		limiter:  newUploadLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.Logger),
		logger:   cfg.Logger,
	}

	s.setupRoutes(cfg.MaxUploadSize)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(maxUploadSize int64) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	} else {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Synchronous analysis, never rate limited
	s.router.POST("/analyze_vocal", bodyLimit(maxUploadSize), s.handleAnalyzeVocal)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyses", s.submitChain(maxUploadSize)...)
		v1.GET("/analyses/:id", s.handleGetAnalysis)
	}
}

// submitChain puts the body limit and rate limiter in front of async submissions
func (s *Server) submitChain(maxUploadSize int64) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{bodyLimit(maxUploadSize)}
	if s.limiter != nil {
		chain = append(chain, s.limiter.middleware())
	}
	return append(chain, s.handleSubmitAnalysis)
}

// SetupWebSocket adds WebSocket handler to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleAnalysisStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/analyses/:id/ws", wsHandler.HandleAnalysisStream)
	}
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
