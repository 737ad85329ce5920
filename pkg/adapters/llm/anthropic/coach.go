package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/domain"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 512
	defaultLanguage  = "English"
)

// Config holds Anthropic coach configuration
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Language  string
	BaseURL   string
}

// Coach asks Claude for practice advice based on voice metrics
type Coach struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	language  string
	logger    *zap.Logger
}

// NewCoach creates a new Anthropic coach
func NewCoach(cfg *Config, logger *zap.Logger) (*Coach, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &Coach{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		language:  cfg.Language,
		logger:    logger,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.language == "" {
		c.language = defaultLanguage
	}
	return c, nil
}

// Feedback returns three encouraging suggestions as a bullet list
func (c *Coach) Feedback(ctx context.Context, metrics domain.Metrics) (string, error) {
	prompt, err := buildPrompt(metrics, c.language)
	if err != nil {
		return "", err
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to request feedback: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	feedback := strings.TrimSpace(strings.Join(parts, "\n"))
	if feedback == "" {
		return "", errors.New("empty feedback from model")
	}

	c.logger.Debug("coach feedback received",
		zap.String("model", c.model),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))

	return feedback, nil
}

func buildPrompt(metrics domain.Metrics, language string) (string, error) {
	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metrics: %w", err)
	}
	return fmt.Sprintf(
		"You are a friendly and professional singing coach. Based on the following voice analysis "+
			"of a user's practice recording, give three specific and encouraging suggestions. "+
			"Answer in %s as a bulleted list.\n\n"+
			"average_pitch is in Hz, jitter_local and shimmer_local are fractions, hnr is in dB; "+
			"null means the value could not be measured.\n\nUser data: %s",
		language, data), nil
}
