package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
	"github.com/aescanero/vocalmetrics/internal/application/workers"
	"github.com/aescanero/vocalmetrics/internal/audio"
	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

var (
	// ErrUnsupportedFormat is returned when the recording cannot be decoded
	ErrUnsupportedFormat = audio.ErrUnsupportedFormat

	// ErrNotFound is returned for unknown analysis ids
	ErrNotFound = ports.ErrNotFound

	// ErrQueueFull is returned when no worker slot is free for an async analysis
	ErrQueueFull = workers.ErrQueueFull
)

// Upload is an audio file received from a client
type Upload struct {
	Filename    string
	ContentType string
	// Size is the declared size in bytes, negative when unknown
	Size int64
	Body io.Reader
}

// Decoder reads a recording from disk
type Decoder interface {
	Decode(ctx context.Context, path string) (*acoustics.Sound, audio.Info, error)
}

// Queue accepts analysis jobs
type Queue interface {
	Enqueue(job workers.Job) error
}

// Config holds analyzer configuration
type Config struct {
	Storage   ports.AnalysisStorage
	EventBus  ports.EventBus
	Metrics   ports.MetricsCollector
	Decoder   Decoder
	Validator *Validator
	Params    acoustics.VoiceParams

	// Optional collaborators
	Coach    ports.Coach
	Archiver ports.Archiver

	TempDir         string
	CacheEnabled    bool
	AnalysisTimeout time.Duration
	CoachTimeout    time.Duration
	Logger          *zap.Logger
}

// Service runs voice analyses
type Service struct {
	storage   ports.AnalysisStorage
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	decoder   Decoder
	validator *Validator
	params    acoustics.VoiceParams
	coach     ports.Coach
	archiver  ports.Archiver
	queue     Queue
	logger    *zap.Logger

	tempDir         string
	cacheEnabled    bool
	analysisTimeout time.Duration
	coachTimeout    time.Duration

	now func() time.Time
}

// discardMetrics drops every measurement
type discardMetrics struct{}

func (discardMetrics) RecordRequest(endpoint, status string)                        {}
func (discardMetrics) RecordAnalysis(format, status string, duration time.Duration) {}
func (discardMetrics) ObserveAudioDuration(seconds float64)                         {}
func (discardMetrics) RecordCacheLookup(hit bool)                                   {}
func (discardMetrics) RecordCoachCall(status string, duration time.Duration)        {}
func (discardMetrics) RecordWorkerPoolStatus(idle, busy, stopped int)               {}
func (discardMetrics) SetQueueDepth(depth int)                                      {}

// NewService creates a new analyzer service. A nil Metrics discards measurements.
func NewService(cfg *Config) *Service {
	validator := cfg.Validator
	if validator == nil {
		validator = NewValidator(0, nil)
	}
	var metrics ports.MetricsCollector = discardMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	return &Service{
		storage:         cfg.Storage,
		eventBus:        cfg.EventBus,
		metrics:         metrics,
		decoder:         cfg.Decoder,
		validator:       validator,
		params:          cfg.Params,
		coach:           cfg.Coach,
		archiver:        cfg.Archiver,
		logger:          cfg.Logger,
		tempDir:         cfg.TempDir,
		cacheEnabled:    cfg.CacheEnabled,
		analysisTimeout: cfg.AnalysisTimeout,
		coachTimeout:    cfg.CoachTimeout,
		now:             time.Now,
	}
}

// SetQueue connects the service to the queue that runs Submit jobs
func (s *Service) SetQueue(q Queue) {
	s.queue = q
}

// Analyze runs the full pipeline on an upload and waits for the result.
// The spooled recording is always removed before returning.
func (s *Service) Analyze(ctx context.Context, u *Upload) (*domain.Analysis, error) {
	if err := s.validator.Validate(u); err != nil {
		return nil, err
	}

	spooled, err := s.spool(u)
	if err != nil {
		return nil, err
	}
	defer s.removeFile(spooled.path)

	if cached := s.lookupCache(ctx, spooled.digest); cached != nil {
		return cached, nil
	}

	analysis := s.newAnalysis(u, spooled)
	analysis.Start(s.now())

	runErr := s.process(ctx, analysis, spooled.path)
	if runErr != nil {
		analysis.Fail(runErr, s.now())
	}
	s.save(ctx, analysis)

	return analysis, runErr
}

// Submit spools an upload and queues it for a worker. Identical uploads
// that were analysed before are answered from the cache.
func (s *Service) Submit(ctx context.Context, u *Upload) (*domain.Analysis, error) {
	if s.queue == nil {
		return nil, errors.New("analysis queue is not configured")
	}
	if err := s.validator.Validate(u); err != nil {
		return nil, err
	}

	spooled, err := s.spool(u)
	if err != nil {
		return nil, err
	}

	if cached := s.lookupCache(ctx, spooled.digest); cached != nil {
		s.removeFile(spooled.path)
		return cached, nil
	}

	analysis := s.newAnalysis(u, spooled)
	if err := s.storage.Save(ctx, analysis); err != nil {
		s.removeFile(spooled.path)
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	if err := s.queue.Enqueue(workers.Job{
		AnalysisID: analysis.ID,
		FilePath:   spooled.path,
		EnqueuedAt: s.now(),
	}); err != nil {
		s.removeFile(spooled.path)
		if delErr := s.storage.Delete(ctx, analysis.ID); delErr != nil {
			s.logger.Warn("failed to remove unqueued analysis",
				zap.String("analysis_id", analysis.ID),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to queue analysis: %w", err)
	}

	s.publish(ctx, analysis, domain.EventTypeAnalysisSubmitted, map[string]interface{}{
		"filename": analysis.Filename,
		"size":     analysis.Size,
	})

	s.logger.Info("analysis submitted",
		zap.String("analysis_id", analysis.ID),
		zap.String("filename", analysis.Filename),
		zap.Int64("size", analysis.Size))

	return analysis, nil
}

// Get returns an analysis by id
func (s *Service) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	analysis, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// RunJob is the worker pool handler for submitted analyses
func (s *Service) RunJob(ctx context.Context, job workers.Job) error {
	defer s.removeFile(job.FilePath)

	analysis, err := s.storage.Get(ctx, job.AnalysisID)
	if err != nil {
		return fmt.Errorf("failed to load analysis: %w", err)
	}

	analysis.Start(s.now())
	s.save(ctx, analysis)
	s.publish(ctx, analysis, domain.EventTypeAnalysisStarted, nil)

	if err := s.process(ctx, analysis, job.FilePath); err != nil {
		analysis.Fail(err, s.now())
		s.save(ctx, analysis)
		s.publish(ctx, analysis, domain.EventTypeAnalysisFailed, map[string]interface{}{
			"error": analysis.Error,
		})
		return err
	}

	s.addFeedback(ctx, analysis)
	s.save(ctx, analysis)
	s.publish(ctx, analysis, domain.EventTypeAnalysisCompleted, map[string]interface{}{
		"metrics": analysis.Metrics,
	})
	return nil
}

// DiscardJob fails a job the pool dropped during shutdown
func (s *Service) DiscardJob(job workers.Job) {
	s.removeFile(job.FilePath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	analysis, err := s.storage.Get(ctx, job.AnalysisID)
	if err != nil {
		s.logger.Warn("failed to load discarded analysis",
			zap.String("analysis_id", job.AnalysisID),
			zap.Error(err))
		return
	}
	analysis.Fail(errors.New("service shutting down"), s.now())
	s.save(ctx, analysis)
	s.publish(ctx, analysis, domain.EventTypeAnalysisFailed, map[string]interface{}{
		"error": analysis.Error,
	})
}

// process decodes and analyses the recording at path and fills in the
// results. Archiving failures are logged and do not fail the analysis.
func (s *Service) process(ctx context.Context, analysis *domain.Analysis, path string) error {
	if s.analysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.analysisTimeout)
		defer cancel()
	}

	start := s.now()
	format := "unknown"

	sound, info, err := s.decoder.Decode(ctx, path)
	if err != nil {
		s.metrics.RecordAnalysis(format, string(domain.AnalysisStatusFailed), time.Since(start))
		return fmt.Errorf("failed to decode recording: %w", err)
	}
	format = info.Format

	report, err := acoustics.AnalyzeVoice(ctx, sound, s.params)
	if err != nil {
		s.metrics.RecordAnalysis(format, string(domain.AnalysisStatusFailed), time.Since(start))
		return fmt.Errorf("failed to analyze recording: %w", err)
	}

	duration := time.Since(start)
	s.metrics.RecordAnalysis(format, string(domain.AnalysisStatusCompleted), duration)
	s.metrics.ObserveAudioDuration(report.Duration)

	analysis.Complete(domain.MetricsFromReport(report), domain.Details{
		Format:         info.Format,
		SampleRate:     info.SampleRate,
		Channels:       info.Channels,
		Duration:       report.Duration,
		VoicedFraction: report.VoicedFraction,
		PulseCount:     report.PulseCount,
	}, s.now())

	s.archive(ctx, analysis, path)

	s.logger.Info("analysis completed",
		zap.String("analysis_id", analysis.ID),
		zap.String("format", format),
		zap.Float64("audio_duration", report.Duration),
		zap.Float64("average_pitch", report.AveragePitch),
		zap.Duration("duration", duration))

	return nil
}

func (s *Service) archive(ctx context.Context, analysis *domain.Analysis, path string) {
	if s.archiver == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("failed to open recording for archiving",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err))
		return
	}
	defer f.Close()

	key := analysis.Digest + audio.Extension(analysis.Filename)
	location, err := s.archiver.Archive(ctx, key, f, analysis.Size, contentType(analysis.Filename))
	if err != nil {
		s.logger.Warn("failed to archive recording",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err))
		return
	}
	analysis.ArchiveKey = location
}

func (s *Service) addFeedback(ctx context.Context, analysis *domain.Analysis) {
	if s.coach == nil || analysis.Metrics == nil {
		return
	}
	if s.coachTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.coachTimeout)
		defer cancel()
	}

	start := s.now()
	feedback, err := s.coach.Feedback(ctx, *analysis.Metrics)
	if err != nil {
		s.metrics.RecordCoachCall("failed", time.Since(start))
		s.logger.Warn("failed to get coaching feedback",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err))
		return
	}
	s.metrics.RecordCoachCall("completed", time.Since(start))
	analysis.Feedback = feedback
}

// lookupCache returns a completed analysis of identical bytes, or nil
func (s *Service) lookupCache(ctx context.Context, digest string) *domain.Analysis {
	if !s.cacheEnabled {
		return nil
	}

	cached, err := s.storage.FindByDigest(ctx, digest)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn("cache lookup failed", zap.String("digest", digest), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
		return nil
	}
	if cached.Status != domain.AnalysisStatusCompleted || cached.Metrics == nil {
		s.metrics.RecordCacheLookup(false)
		return nil
	}

	s.metrics.RecordCacheLookup(true)
	s.logger.Debug("cache hit",
		zap.String("analysis_id", cached.ID),
		zap.String("digest", digest))
	cached.Cached = true
	return cached
}

type spooledUpload struct {
	path   string
	digest string
	size   int64
}

// spool copies the upload to a temporary file while hashing it
func (s *Service) spool(u *Upload) (*spooledUpload, error) {
	f, err := os.CreateTemp(s.tempDir, "upload-*"+audio.Extension(u.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	limit := s.validator.MaxSize()
	body := u.Body
	if limit > 0 {
		body = io.LimitReader(body, limit+1)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hash), body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.removeFile(f.Name())
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	if limit > 0 && n > limit {
		s.removeFile(f.Name())
		return nil, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, limit)
	}
	if n == 0 {
		s.removeFile(f.Name())
		return nil, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}

	return &spooledUpload{
		path:   f.Name(),
		digest: hex.EncodeToString(hash.Sum(nil)),
		size:   n,
	}, nil
}

func (s *Service) newAnalysis(u *Upload, spooled *spooledUpload) *domain.Analysis {
	return &domain.Analysis{
		ID:          uuid.New().String(),
		Status:      domain.AnalysisStatusPending,
		Filename:    audio.SanitizeFilename(u.Filename),
		Digest:      spooled.digest,
		Size:        spooled.size,
		SubmittedAt: s.now(),
	}
}

// save stores the analysis. Storage errors are logged, the caller already
// holds the result.
func (s *Service) save(ctx context.Context, analysis *domain.Analysis) {
	if err := s.storage.Save(ctx, analysis); err != nil {
		s.logger.Error("failed to save analysis",
			zap.String("analysis_id", analysis.ID),
			zap.String("status", string(analysis.Status)),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, analysis *domain.Analysis, eventType domain.EventType, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	event := domain.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		AnalysisID: analysis.ID,
		Timestamp:  s.now(),
		Data:       data,
	}
	if err := s.eventBus.Publish(ctx, domain.AnalysisEventsTopic, event); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("analysis_id", analysis.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (s *Service) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove temporary file",
			zap.String("path", path),
			zap.Error(err))
	}
}

func contentType(filename string) string {
	switch audio.Extension(filename) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
