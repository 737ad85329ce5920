package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aescanero/vocalmetrics/internal/domain"
)

// ErrNotFound is returned by storage when no record matches
var ErrNotFound = errors.New("not found")

// AnalysisStorage persists analyses and indexes them by upload digest
type AnalysisStorage interface {
	Save(ctx context.Context, analysis *domain.Analysis) error
	Get(ctx context.Context, id string) (*domain.Analysis, error)

	// FindByDigest returns the newest completed analysis of identical bytes
	FindByDigest(ctx context.Context, digest string) (*domain.Analysis, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// EventHandler handles one event delivered by an EventBus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes analysis events and fans them out to subscribers
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error

	// Subscribe delivers events until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records service metrics
type MetricsCollector interface {
	RecordRequest(endpoint, status string)
	RecordAnalysis(format, status string, duration time.Duration)
	ObserveAudioDuration(seconds float64)
	RecordCacheLookup(hit bool)
	RecordCoachCall(status string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
}

// Coach writes short practice advice for a set of metrics
type Coach interface {
	Feedback(ctx context.Context, metrics domain.Metrics) (string, error)
}

// Archiver keeps a copy of uploaded recordings
type Archiver interface {
	// Archive stores body under key and returns the location it was stored at
	Archive(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}
