package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

// AnalysisStorage implements AnalysisStorage using Redis
type AnalysisStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewAnalysisStorage creates a new Redis analysis storage
func NewAnalysisStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalysisStorage {
	return &AnalysisStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save stores the analysis as JSON and indexes completed ones by digest
func (s *AnalysisStorage) Save(ctx context.Context, analysis *domain.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, getAnalysisKey(analysis.ID), data, s.ttl)
	if analysis.Status == domain.AnalysisStatusCompleted && analysis.Digest != "" {
		pipe.Set(ctx, getDigestKey(analysis.Digest), analysis.ID, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Debug("analysis saved",
		zap.String("analysis_id", analysis.ID),
		zap.String("status", string(analysis.Status)))

	return nil
}

// Get retrieves an analysis by id
func (s *AnalysisStorage) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	data, err := s.client.Get(ctx, getAnalysisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	var analysis domain.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}

	return &analysis, nil
}

// FindByDigest follows the digest index to a completed analysis
func (s *AnalysisStorage) FindByDigest(ctx context.Context, digest string) (*domain.Analysis, error) {
	id, err := s.client.Get(ctx, getDigestKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("digest %s: %w", digest, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up digest: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes an analysis and, when it points there, its digest entry
func (s *AnalysisStorage) Delete(ctx context.Context, id string) error {
	analysis, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		return err
	}

	keys := []string{getAnalysisKey(id)}
	if analysis.Digest != "" {
		indexed, err := s.client.Get(ctx, getDigestKey(analysis.Digest)).Result()
		if err == nil && indexed == id {
			keys = append(keys, getDigestKey(analysis.Digest))
		}
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	s.logger.Debug("analysis deleted", zap.String("analysis_id", id))
	return nil
}

// Ping checks the Redis connection
func (s *AnalysisStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func getAnalysisKey(id string) string {
	return fmt.Sprintf("vocalmetrics:analysis:%s", id)
}

func getDigestKey(digest string) string {
	return fmt.Sprintf("vocalmetrics:digest:%s", digest)
}
