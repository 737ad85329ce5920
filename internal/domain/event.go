package domain

import "time"

// EventType represents the type of event
type EventType string

const (
	EventTypeAnalysisSubmitted EventType = "analysis.submitted"
	EventTypeAnalysisStarted   EventType = "analysis.started"
	EventTypeAnalysisCompleted EventType = "analysis.completed"
	EventTypeAnalysisFailed    EventType = "analysis.failed"
)

// AnalysisEventsTopic is the topic every analysis event is published on
const AnalysisEventsTopic = "analysis.events"

// Event represents a lifecycle change of an analysis
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	AnalysisID string                 `json:"analysis_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// IsTerminal reports whether no further events follow for the analysis
func (e Event) IsTerminal() bool {
	return e.Type == EventTypeAnalysisCompleted || e.Type == EventTypeAnalysisFailed
}
