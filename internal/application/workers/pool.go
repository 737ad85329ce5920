package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/ports"
)

var (
	// ErrQueueFull is returned when the job queue has no free slot
	ErrQueueFull = errors.New("analysis queue is full")

	// ErrPoolClosed is returned when enqueueing after shutdown started
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// Job is one queued analysis
type Job struct {
	AnalysisID string
	FilePath   string
	EnqueuedAt time.Time
}

// Handler runs a job
type Handler func(ctx context.Context, job Job) error

// Config holds worker pool configuration
type Config struct {
	Size                int
	QueueSize           int
	Handler             Handler
	OnDiscard           func(job Job)
	Metrics             ports.MetricsCollector
	Logger              *zap.Logger
	HealthCheckInterval time.Duration
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size      int
	handler   Handler
	onDiscard func(job Job)
	metrics   ports.MetricsCollector
	logger    *zap.Logger
	health    *HealthMonitor

	jobs    chan Job
	workers []*worker
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	stopCh chan struct{}

	// jobCtx is cancelled only when shutdown runs out of time
	jobCtx    context.Context
	jobCancel context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(cfg *Config) *Pool {
	size := cfg.Size
	if size < 1 {
		size = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	interval := cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	jobCtx, jobCancel := context.WithCancel(context.Background())
	pool := &Pool{
		size:      size,
		handler:   cfg.Handler,
		onDiscard: cfg.OnDiscard,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		jobs:      make(chan Job, queueSize),
		workers:   make([]*worker, size),
		stopCh:    make(chan struct{}),
		jobCtx:    jobCtx,
		jobCancel: jobCancel,
	}

	pool.health = NewHealthMonitor(pool, interval, cfg.Logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	if p.handler == nil {
		return errors.New("worker pool needs a job handler")
	}
	p.logger.Info("starting worker pool",
		zap.Int("size", p.size),
		zap.Int("queue_size", cap(p.jobs)))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run()
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Enqueue adds a job without blocking
func (p *Pool) Enqueue(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	select {
	case p.jobs <- job:
		p.metrics.SetQueueDepth(len(p.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// Health returns the pool health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Shutdown stops accepting jobs, lets running jobs finish and discards the
// rest of the queue. Running jobs are cancelled if ctx expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopCh)
	p.mu.Unlock()

	p.logger.Info("shutting down worker pool")
	p.health.Stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		p.jobCancel()
		<-done
		err = fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
	p.jobCancel()

	discarded := p.drain()
	p.metrics.SetQueueDepth(0)
	p.logger.Info("worker pool shut down complete", zap.Int("discarded_jobs", discarded))
	return err
}

// drain empties the queue after the workers exited
func (p *Pool) drain() int {
	var n int
	for {
		select {
		case job := <-p.jobs:
			n++
			if p.onDiscard != nil {
				p.onDiscard(job)
			}
		default:
			return n
		}
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-w.pool.stopCh:
			w.stop()
			return
		default:
		}

		select {
		case <-w.pool.stopCh:
			w.stop()
			return
		case job := <-w.pool.jobs:
			w.pool.metrics.SetQueueDepth(len(w.pool.jobs))
			w.handle(job)
		}
	}
}

// handle runs one job and recovers from handler panics
func (w *worker) handle(job Job) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer w.setStatus(WorkerStatusIdle)

	w.pool.logger.Info("processing analysis",
		zap.String("worker_id", w.id),
		zap.String("analysis_id", job.AnalysisID),
		zap.Duration("queue_wait", time.Since(job.EnqueuedAt)))

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("analysis handler panicked",
				zap.String("worker_id", w.id),
				zap.String("analysis_id", job.AnalysisID),
				zap.Any("panic", r))
		}
	}()

	if err := w.pool.handler(w.pool.jobCtx, job); err != nil {
		w.pool.logger.Warn("analysis job failed",
			zap.String("worker_id", w.id),
			zap.String("analysis_id", job.AnalysisID),
			zap.Error(err))
	}
}

func (w *worker) stop() {
	w.setStatus(WorkerStatusStopped)
	w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
