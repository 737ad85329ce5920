package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type nopMetrics struct{}

func (nopMetrics) RecordRequest(endpoint, status string)                        {}
func (nopMetrics) RecordAnalysis(format, status string, duration time.Duration) {}
func (nopMetrics) ObserveAudioDuration(seconds float64)                         {}
func (nopMetrics) RecordCacheLookup(hit bool)                                   {}
func (nopMetrics) RecordCoachCall(status string, duration time.Duration)        {}
func (nopMetrics) RecordWorkerPoolStatus(idle, busy, stopped int)               {}
func (nopMetrics) SetQueueDepth(depth int)                                      {}

func newTestPool(t *testing.T, size, queue int, handler Handler, onDiscard func(Job)) *Pool {
	t.Helper()
	return NewPool(&Config{
		Size:                size,
		QueueSize:           queue,
		Handler:             handler,
		OnDiscard:           onDiscard,
		Metrics:             nopMetrics{},
		Logger:              zaptest.NewLogger(t),
		HealthCheckInterval: time.Hour,
	})
}

func TestPool_ProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	pool := newTestPool(t, 3, 10, func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.AnalysisID] = true
		mu.Unlock()
		return nil
	}, nil)
	require.NoError(t, pool.Start())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, pool.Enqueue(Job{AnalysisID: id}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.ErrorIs(t, pool.Enqueue(Job{AnalysisID: "late"}), ErrPoolClosed)
}

func TestPool_QueueFullAndDiscard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 1)
	var discarded []string

	pool := newTestPool(t, 1, 1, func(ctx context.Context, job Job) error {
		started <- job.AnalysisID
		<-release
		return nil
	}, func(job Job) {
		discarded = append(discarded, job.AnalysisID)
	})
	require.NoError(t, pool.Start())

	require.NoError(t, pool.Enqueue(Job{AnalysisID: "running"}))
	assert.Equal(t, "running", <-started)

	require.NoError(t, pool.Enqueue(Job{AnalysisID: "queued"}))
	assert.Equal(t, 1, pool.QueueDepth())
	assert.ErrorIs(t, pool.Enqueue(Job{AnalysisID: "rejected"}), ErrQueueFull)

	status := pool.Health().GetStatus()
	assert.Equal(t, 1, status.BusyWorkers)
	assert.Equal(t, 1, status.QueueDepth)
	assert.True(t, status.Healthy)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Equal(t, []string{"queued"}, discarded)
	assert.False(t, pool.Health().IsHealthy())
}

func TestPool_ShutdownTimeoutCancelsJobs(t *testing.T) {
	started := make(chan struct{})
	pool := newTestPool(t, 1, 0, func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(t, pool.Start())

	require.Eventually(t, func() bool {
		return pool.Enqueue(Job{AnalysisID: "slow"}) == nil
	}, time.Second, 5*time.Millisecond)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	done := make(chan string, 1)
	pool := newTestPool(t, 1, 5, func(ctx context.Context, job Job) error {
		if job.AnalysisID == "bad" {
			panic("corrupt recording")
		}
		done <- job.AnalysisID
		return nil
	}, nil)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	require.NoError(t, pool.Enqueue(Job{AnalysisID: "bad"}))
	require.NoError(t, pool.Enqueue(Job{AnalysisID: "good"}))

	select {
	case id := <-done:
		assert.Equal(t, "good", id)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestPool_StartRequiresHandler(t *testing.T) {
	pool := newTestPool(t, 1, 1, nil, nil)
	assert.Error(t, pool.Start())
}

func TestHealthMonitor_Status(t *testing.T) {
	pool := newTestPool(t, 2, 1, func(ctx context.Context, job Job) error { return nil }, nil)
	require.NoError(t, pool.Start())

	status := pool.Health().GetStatus()
	assert.Equal(t, 2, status.TotalWorkers)
	assert.Equal(t, 2, status.IdleWorkers)
	assert.True(t, status.Healthy)

	require.NoError(t, pool.Shutdown(context.Background()))
	status = pool.Health().GetStatus()
	assert.Equal(t, 2, status.StoppedWorkers)
	assert.False(t, status.Healthy)
}
