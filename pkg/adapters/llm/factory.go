package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/ports"
	"github.com/aescanero/vocalmetrics/pkg/adapters/llm/anthropic"
)

// Config holds coach configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int64
	Language  string
	BaseURL   string
	Logger    *zap.Logger
}

// NewCoach creates a coach based on provider. An empty provider disables
// coaching and returns a nil coach.
func NewCoach(cfg *Config) (ports.Coach, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		return anthropic.NewCoach(&anthropic.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Language:  cfg.Language,
			BaseURL:   cfg.BaseURL,
		}, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
