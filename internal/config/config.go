package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
)

// Config holds all configuration for the voice analysis service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"PORT" envDefault:"5001"`
	GRPCPort int    `env:"GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage backend: memory or redis
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`

	// Analyses and the digest index expire after ResultTTL in either backend; 0 keeps them
	ResultTTL time.Duration `env:"RESULT_TTL" envDefault:"24h"`

	// Redis configuration
	Redis RedisConfig

	// Worker configuration
	Workers WorkerConfig

	// Analysis configuration
	Analysis AnalysisConfig

	// Upload limits
	Limits LimitsConfig

	// Recording archive
	Archive ArchiveConfig

	// Coaching feedback
	Coach CoachConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	StreamMaxLen  int64  `env:"REDIS_STREAM_MAX_LEN" envDefault:"10000"`
	ConsumerGroup string `env:"REDIS_CONSUMER_GROUP" envDefault:"vocalmetrics"`
	ConsumerName  string `env:"REDIS_CONSUMER_NAME"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"2"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"32"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// AnalysisConfig holds the acoustic pipeline settings
type AnalysisConfig struct {
	PitchFloor         float64 `env:"ANALYSIS_PITCH_FLOOR" envDefault:"75"`
	PitchCeiling       float64 `env:"ANALYSIS_PITCH_CEILING" envDefault:"600"`
	PulseFloor         float64 `env:"ANALYSIS_PULSE_FLOOR" envDefault:"75"`
	PulseCeiling       float64 `env:"ANALYSIS_PULSE_CEILING" envDefault:"500"`
	ShortestPeriod     float64 `env:"ANALYSIS_SHORTEST_PERIOD" envDefault:"0.0001"`
	LongestPeriod      float64 `env:"ANALYSIS_LONGEST_PERIOD" envDefault:"0.02"`
	MaxPeriodFactor    float64 `env:"ANALYSIS_MAX_PERIOD_FACTOR" envDefault:"1.3"`
	MaxAmplitudeFactor float64 `env:"ANALYSIS_MAX_AMPLITUDE_FACTOR" envDefault:"1.6"`
	HNRTimeStep        float64 `env:"ANALYSIS_HNR_TIME_STEP" envDefault:"0.01"`
	HNRFloor           float64 `env:"ANALYSIS_HNR_FLOOR" envDefault:"75"`
	HNRSilence         float64 `env:"ANALYSIS_HNR_SILENCE_THRESHOLD" envDefault:"0.1"`
	HNRPeriods         float64 `env:"ANALYSIS_HNR_PERIODS_PER_WINDOW" envDefault:"1.0"`

	FFmpegPath   string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TempDir      string `env:"TEMP_DIR"`
	CacheEnabled bool   `env:"CACHE_ENABLED" envDefault:"true"`
}

// LimitsConfig holds request limits
type LimitsConfig struct {
	MaxUploadSize     int64         `env:"MAX_FILE_SIZE" envDefault:"104857600"`
	AllowedExtensions []string      `env:"ALLOWED_EXTENSIONS" envSeparator:","`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitMax      int           `env:"RATE_LIMIT_MAX" envDefault:"5"`
	CORSOrigins       []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3001"`
}

// ArchiveConfig holds S3 archive configuration. Archiving is disabled
// while Bucket is empty.
type ArchiveConfig struct {
	Bucket         string `env:"ARCHIVE_BUCKET"`
	Prefix         string `env:"ARCHIVE_PREFIX" envDefault:"recordings"`
	Region         string `env:"ARCHIVE_REGION"`
	Endpoint       string `env:"ARCHIVE_ENDPOINT"`
	AccessKey      string `env:"ARCHIVE_ACCESS_KEY"`
	SecretKey      string `env:"ARCHIVE_SECRET_KEY"`
	ForcePathStyle bool   `env:"ARCHIVE_FORCE_PATH_STYLE" envDefault:"false"`
}

// CoachConfig holds LLM coach configuration. Coaching is disabled while
// Provider is empty.
type CoachConfig struct {
	Provider  string `env:"COACH_PROVIDER"`
	APIKey    string `env:"COACH_API_KEY"`
	Model     string `env:"COACH_MODEL" envDefault:"claude-3-5-haiku-latest"`
	MaxTokens int64  `env:"COACH_MAX_TOKENS" envDefault:"512"`
	Language  string `env:"COACH_LANGUAGE" envDefault:"English"`
	BaseURL   string `env:"COACH_BASE_URL"`
}

// VoiceParams returns the acoustic pipeline parameters
func (a AnalysisConfig) VoiceParams() acoustics.VoiceParams {
	p := acoustics.DefaultVoiceParams()
	p.Pitch.Floor = a.PitchFloor
	p.Pitch.Ceiling = a.PitchCeiling
	p.PulseFloor = a.PulseFloor
	p.PulseCeiling = a.PulseCeiling
	p.Periods.ShortestPeriod = a.ShortestPeriod
	p.Periods.LongestPeriod = a.LongestPeriod
	p.Periods.MaxPeriodFactor = a.MaxPeriodFactor
	p.MaxAmplitudeFactor = a.MaxAmplitudeFactor
	p.Harmonicity = acoustics.HarmonicityParams{
		TimeStep:         a.HNRTimeStep,
		Floor:            a.HNRFloor,
		SilenceThreshold: a.HNRSilence,
		PeriodsPerWindow: a.HNRPeriods,
	}
	return p
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	Analysis time.Duration `env:"TIMEOUT_ANALYSIS" envDefault:"120s"`
	Coach    time.Duration `env:"TIMEOUT_COACH" envDefault:"30s"`
	Shutdown time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from the environment after applying the
// optional .env file
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.StorageBackend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory or redis)", c.StorageBackend)
	}

	if c.ResultTTL < 0 {
		return fmt.Errorf("result TTL must not be negative")
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("worker queue size must not be negative")
	}

	if c.Analysis.PitchFloor <= 0 || c.Analysis.PitchCeiling <= c.Analysis.PitchFloor {
		return fmt.Errorf("invalid pitch range: %.1f-%.1f Hz", c.Analysis.PitchFloor, c.Analysis.PitchCeiling)
	}
	if c.Analysis.PulseFloor <= 0 || c.Analysis.PulseCeiling <= c.Analysis.PulseFloor {
		return fmt.Errorf("invalid pulse range: %.1f-%.1f Hz", c.Analysis.PulseFloor, c.Analysis.PulseCeiling)
	}
	if c.Analysis.ShortestPeriod <= 0 || c.Analysis.LongestPeriod <= c.Analysis.ShortestPeriod {
		return fmt.Errorf("invalid period range: %g-%g s", c.Analysis.ShortestPeriod, c.Analysis.LongestPeriod)
	}
	if c.Analysis.HNRTimeStep <= 0 || c.Analysis.HNRFloor <= 0 || c.Analysis.HNRPeriods <= 0 {
		return fmt.Errorf("harmonicity time step, floor and periods per window must be positive")
	}

	if c.Limits.RateLimitMax < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Limits.RateLimitMax > 0 && c.Limits.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	switch c.Coach.Provider {
	case "", "none":
	case "anthropic":
		if c.Coach.APIKey == "" {
			return fmt.Errorf("coach API key is required for provider %s", c.Coach.Provider)
		}
	default:
		return fmt.Errorf("unsupported coach provider: %s (only 'anthropic' is supported)", c.Coach.Provider)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address. Port 0 disables gRPC.
func (c *Config) GetGRPCAddr() string {
	if c.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", c.GRPCPort)
}
