package redis

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

func newTestStorage(t *testing.T) (*AnalysisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewAnalysisStorage(client, time.Hour, zaptest.NewLogger(t)), mr
}

func TestAnalysisStorage_SaveGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t)
	require.NoError(t, s.Ping(ctx))

	now := time.Now().UTC().Truncate(time.Second)
	a := &domain.Analysis{ID: "a1", Status: domain.AnalysisStatusPending, Digest: "abc", SubmittedAt: now}
	require.NoError(t, s.Save(ctx, a))
	assert.False(t, mr.Exists("vocalmetrics:digest:abc"))

	a.Complete(domain.Metrics{AveragePitch: 180, JitterLocal: math.NaN(), ShimmerLocal: 0.04, HNR: 12}, domain.Details{Format: "wav"}, now)
	require.NoError(t, s.Save(ctx, a))
	assert.True(t, mr.Exists("vocalmetrics:digest:abc"))
	assert.Equal(t, time.Hour, mr.TTL("vocalmetrics:analysis:a1"))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStatusCompleted, got.Status)
	assert.Equal(t, 180.0, got.Metrics.AveragePitch)
	assert.True(t, math.IsNaN(got.Metrics.JitterLocal))
	assert.True(t, now.Equal(got.SubmittedAt))

	cached, err := s.FindByDigest(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "a1", cached.ID)
}

func TestAnalysisStorage_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = s.FindByDigest(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "missing"))
}

func TestAnalysisStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStorage(t)

	a := &domain.Analysis{ID: "a1", Digest: "abc"}
	a.Complete(domain.Metrics{}, domain.Details{}, time.Now())
	require.NoError(t, s.Save(ctx, a))

	require.NoError(t, s.Delete(ctx, "a1"))
	assert.False(t, mr.Exists("vocalmetrics:analysis:a1"))
	assert.False(t, mr.Exists("vocalmetrics:digest:abc"))
}

func TestAnalysisStorage_PingFailure(t *testing.T) {
	s, mr := newTestStorage(t)
	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
