// Package events defines domain events for the event-sourced research system.
// Domain events represent state changes that have occurred in the system.
// They are immutable facts that can be stored, replayed, and used to reconstruct state.
package events

import (
	"time"
)

// BaseEvent provides common fields for all domain events.
// All domain events should embed this struct.
type BaseEvent struct {
	ID          string    `json:"id"`           // UUID for idempotency
	AggregateID string    `json:"aggregate_id"` // Session/Research ID
	Version     int       `json:"version"`      // Aggregate version after this event
	Timestamp   time.Time `json:"timestamp"`    // When the event occurred
	Type        string    `json:"type"`         // Event type discriminator for deserialization
}

// GetID returns the unique event identifier.
func (e BaseEvent) GetID() string { return e.ID }

// GetAggregateID returns the aggregate (session) this event belongs to.
func (e BaseEvent) GetAggregateID() string { return e.AggregateID }

// GetVersion returns the aggregate version after this event was applied.
func (e BaseEvent) GetVersion() int { return e.Version }

// GetType returns the event type for deserialization.
func (e BaseEvent) GetType() string { return e.Type }

// GetTimestamp returns when the event occurred.
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// Type discriminators carried on BaseEvent.Type. An event store decodes a
// stored record by looking up one of these against the concrete struct it
// names, so a string here must never change once events using it have been
// persisted.
const (
	TypeResearchStarted   = "research.started"
	TypeResearchCompleted = "research.completed"
	TypeResearchFailed    = "research.failed"
	TypeResearchCancelled = "research.cancelled"
	TypePlanCreated       = "plan.created"
	TypeWorkerStarted     = "worker.started"
	TypeWorkerCompleted   = "worker.completed"
	TypeWorkerFailed      = "worker.failed"
	TypeAnalysisStarted   = "analysis.started"
	TypeAnalysisCompleted = "analysis.completed"
	TypeSynthesisStarted  = "synthesis.started"
	TypeReportGenerated   = "report.generated"
	TypeSnapshotTaken     = "snapshot.taken"
)
