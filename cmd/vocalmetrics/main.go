package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/vocalmetrics/internal/application/analyzer"
	"github.com/aescanero/vocalmetrics/internal/application/workers"
	"github.com/aescanero/vocalmetrics/internal/audio"
	"github.com/aescanero/vocalmetrics/internal/config"
	"github.com/aescanero/vocalmetrics/internal/ports"
	"github.com/aescanero/vocalmetrics/pkg/adapters/archive/s3"
	eventsmemory "github.com/aescanero/vocalmetrics/pkg/adapters/events/memory"
	"github.com/aescanero/vocalmetrics/pkg/adapters/events/redis"
	"github.com/aescanero/vocalmetrics/pkg/adapters/llm"
	"github.com/aescanero/vocalmetrics/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/vocalmetrics/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/vocalmetrics/pkg/adapters/storage/redis"
	"github.com/aescanero/vocalmetrics/pkg/api/grpc"
	"github.com/aescanero/vocalmetrics/pkg/api/http"
	"github.com/aescanero/vocalmetrics/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting vocalmetrics",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage", cfg.StorageBackend))

	ctx := context.Background()

	// Initialize storage and events
	var (
		storage     ports.AnalysisStorage
		eventBus    ports.EventBus
		redisClient *goredis.Client
	)
	switch cfg.StorageBackend {
	case "redis":
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		// Test Redis connection
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		consumerName := cfg.Redis.ConsumerName
		if consumerName == "" {
			consumerName = fmt.Sprintf("vocalmetrics-%d", os.Getpid())
		}
		eventBus = redis.NewStreamsEventBus(
			redisClient,
			cfg.Redis.ConsumerGroup,
			consumerName,
			cfg.Redis.StreamMaxLen,
			logger,
		)
		storage = redisstorage.NewAnalysisStorage(redisClient, cfg.ResultTTL, logger)
	default:
		eventBus = eventsmemory.NewInMemoryEventBus()
		storage = storagememory.NewInMemoryAnalysisStorage(cfg.ResultTTL)
	}

	metricsCollector := prometheus.NewCollector(nil)

	// Optional collaborators
	var archiver ports.Archiver
	if cfg.Archive.Bucket != "" {
		s3Archiver, err := s3.NewArchiver(ctx, &s3.Config{
			Bucket:         cfg.Archive.Bucket,
			Prefix:         cfg.Archive.Prefix,
			Region:         cfg.Archive.Region,
			Endpoint:       cfg.Archive.Endpoint,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create archiver", zap.Error(err))
		}
		archiver = s3Archiver
		logger.Info("recording archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	coach, err := llm.NewCoach(&llm.Config{
		Provider:  cfg.Coach.Provider,
		APIKey:    cfg.Coach.APIKey,
		Model:     cfg.Coach.Model,
		MaxTokens: cfg.Coach.MaxTokens,
		Language:  cfg.Coach.Language,
		BaseURL:   cfg.Coach.BaseURL,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to create coach", zap.Error(err))
	}

	// Initialize application components
	service := analyzer.NewService(&analyzer.Config{
		Storage:         storage,
		EventBus:        eventBus,
		Metrics:         metricsCollector,
		Decoder:         audio.NewDecoder(cfg.Analysis.FFmpegPath, logger),
		Validator:       analyzer.NewValidator(cfg.Limits.MaxUploadSize, cfg.Limits.AllowedExtensions),
		Params:          cfg.Analysis.VoiceParams(),
		Coach:           coach,
		Archiver:        archiver,
		TempDir:         cfg.Analysis.TempDir,
		CacheEnabled:    cfg.Analysis.CacheEnabled,
		AnalysisTimeout: cfg.Timeouts.Analysis,
		CoachTimeout:    cfg.Timeouts.Coach,
		Logger:          logger,
	})

	workerPool := workers.NewPool(&workers.Config{
		Size:                cfg.Workers.PoolSize,
		QueueSize:           cfg.Workers.QueueSize,
		Handler:             service.RunJob,
		OnDiscard:           service.DiscardJob,
		Metrics:             metricsCollector,
		Logger:              logger,
		HealthCheckInterval: cfg.Workers.HealthCheckInterval,
	})
	service.SetQueue(workerPool)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:            cfg.HTTPPort,
		Analyzer:        service,
		Storage:         storage,
		Pool:            workerPool,
		Metrics:         metricsCollector,
		MaxUploadSize:   cfg.Limits.MaxUploadSize,
		CORSOrigins:     cfg.Limits.CORSOrigins,
		RateLimitWindow: cfg.Limits.RateLimitWindow,
		RateLimitMax:    cfg.Limits.RateLimitMax,
		Logger:          logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, service, cfg.Limits.CORSOrigins, logger)
	httpServer.SetupWebSocket(wsHandler)

	var grpcServer *grpc.Server
	if cfg.GRPCPort != 0 {
		grpcServer, err = grpc.NewServer(&grpc.Config{
			Port:    cfg.GRPCPort,
			Checker: workerPool.Health(),
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal("failed to create gRPC server", zap.Error(err))
		}
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				logger.Fatal("gRPC server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("vocalmetrics started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.Bool("coach", coach != nil),
		zap.Bool("archive", archiver != nil))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("vocalmetrics shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
