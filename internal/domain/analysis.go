package domain

import "time"

// AnalysisStatus represents the lifecycle of an analysis
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusRunning   AnalysisStatus = "running"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// Details carries the supplementary facts about a recording
type Details struct {
	Format         string  `json:"format"`
	SampleRate     int     `json:"sample_rate"`
	Channels       int     `json:"channels"`
	Duration       float64 `json:"duration"`
	VoicedFraction float64 `json:"voiced_fraction"`
	PulseCount     int     `json:"pulse_count"`
}

// Analysis is one uploaded recording and its results
type Analysis struct {
	ID         string         `json:"id"`
	Status     AnalysisStatus `json:"status"`
	Filename   string         `json:"filename"`
	Digest     string         `json:"digest"`
	Size       int64          `json:"size"`
	Metrics    *Metrics       `json:"metrics,omitempty"`
	Details    *Details       `json:"details,omitempty"`
	Feedback   string         `json:"feedback,omitempty"`
	ArchiveKey string         `json:"archive_key,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
	Error      string         `json:"error,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the analysis has finished
func (a *Analysis) IsTerminal() bool {
	return a.Status == AnalysisStatusCompleted || a.Status == AnalysisStatusFailed
}

// Start marks the analysis as running
func (a *Analysis) Start(now time.Time) {
	a.Status = AnalysisStatusRunning
	a.StartedAt = &now
}

// Complete stores the results and marks the analysis as completed
func (a *Analysis) Complete(m Metrics, d Details, now time.Time) {
	a.Status = AnalysisStatusCompleted
	a.Metrics = &m
	a.Details = &d
	a.Error = ""
	a.CompletedAt = &now
}

// Fail records the error and marks the analysis as failed
func (a *Analysis) Fail(err error, now time.Time) {
	a.Status = AnalysisStatusFailed
	a.Error = err.Error()
	a.CompletedAt = &now
}
