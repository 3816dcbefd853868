package events

import "time"

// ResearchStartedEvent is emitted when a research session is initiated.
type ResearchStartedEvent struct {
	BaseEvent
	Query  string         `json:"query"`
	Mode   string         `json:"mode"` // "deep" or "fast"
	Config ResearchConfig `json:"config"`
}

// SynthesisStartedEvent is emitted when report generation begins.
type SynthesisStartedEvent struct {
	BaseEvent
}

// ReportGeneratedEvent is emitted when the full report is assembled.
type ReportGeneratedEvent struct {
	BaseEvent
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	FullContent string        `json:"full_content"`
	Citations   []Citation    `json:"citations"`
	Cost        CostBreakdown `json:"cost"`
}

// ResearchCompletedEvent is emitted when research finishes successfully.
type ResearchCompletedEvent struct {
	BaseEvent
	Duration    time.Duration `json:"duration"`
	TotalCost   CostBreakdown `json:"total_cost"`
	SourceCount int           `json:"source_count"`
}

// ResearchFailedEvent is emitted when research fails with an error.
type ResearchFailedEvent struct {
	BaseEvent
	Error       string `json:"error"`
	FailedPhase string `json:"failed_phase"` // "planning", "search", "analysis", "synthesis"
}

// ResearchCancelledEvent is emitted when research is cancelled by the user.
type ResearchCancelledEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// SnapshotTakenEvent is emitted when a state snapshot is recorded for replay
// optimization, so LoadEvents doesn't have to fold the entire history.
type SnapshotTakenEvent struct {
	BaseEvent
	Snapshot ResearchStateSnapshot `json:"snapshot"`
}
