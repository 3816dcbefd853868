package aggregate

import (
	"fmt"
	"time"

	"deepresearch/internal/core/domain/events"
	"github.com/google/uuid"
)

// Execute processes a command and returns the resulting event.
// This is the main entry point for state changes.
func (s *ResearchState) Execute(cmd Command) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cmd.Validate(s); err != nil {
		return nil, err
	}

	// Every event produced by this call shares one version/timestamp/ID
	// stamp; base(typ) bakes that stamp plus the aggregate ID into a
	// BaseEvent so each case below only has to state what's new.
	newVersion := s.Version + 1
	timestamp := time.Now()
	base := func(eventType string) events.BaseEvent {
		return events.BaseEvent{
			ID:          uuid.New().String(),
			AggregateID: s.ID,
			Version:     newVersion,
			Timestamp:   timestamp,
			Type:        eventType,
		}
	}

	var event interface{}

	switch c := cmd.(type) {
	case StartResearchCommand:
		event = events.ResearchStartedEvent{
			BaseEvent: base(events.TypeResearchStarted),
			Query:     c.Query,
			Mode:      c.Mode,
			Config:    c.Config,
		}

	case SetPlanCommand:
		event = events.PlanCreatedEvent{
			BaseEvent:    base(events.TypePlanCreated),
			Topic:        c.Topic,
			Perspectives: c.Perspectives,
			DAGStructure: c.DAGStructure,
			Cost:         c.Cost,
		}

	case StartWorkerCommand:
		event = events.WorkerStartedEvent{
			BaseEvent:   base(events.TypeWorkerStarted),
			WorkerID:    c.WorkerID,
			WorkerNum:   c.WorkerNum,
			Objective:   c.Objective,
			Perspective: c.Perspective,
		}

	case CompleteWorkerCommand:
		event = events.WorkerCompletedEvent{
			BaseEvent: base(events.TypeWorkerCompleted),
			WorkerID:  c.WorkerID,
			Output:    c.Output,
			Facts:     c.Facts,
			Sources:   c.Sources,
			Cost:      c.Cost,
		}

	case FailWorkerCommand:
		event = events.WorkerFailedEvent{
			BaseEvent: base(events.TypeWorkerFailed),
			WorkerID:  c.WorkerID,
			Error:     c.Error,
		}

	case StartAnalysisCommand:
		event = events.AnalysisStartedEvent{
			BaseEvent:  base(events.TypeAnalysisStarted),
			TotalFacts: c.TotalFacts,
		}

	case SetAnalysisCommand:
		event = events.AnalysisCompletedEvent{
			BaseEvent:      base(events.TypeAnalysisCompleted),
			ValidatedFacts: c.ValidatedFacts,
			Contradictions: c.Contradictions,
			KnowledgeGaps:  c.KnowledgeGaps,
			Cost:           c.Cost,
		}

	case StartSynthesisCommand:
		event = events.SynthesisStartedEvent{
			BaseEvent: base(events.TypeSynthesisStarted),
		}

	case SetReportCommand:
		event = events.ReportGeneratedEvent{
			BaseEvent:   base(events.TypeReportGenerated),
			Title:       c.Title,
			Summary:     c.Summary,
			FullContent: c.FullContent,
			Citations:   c.Citations,
			Cost:        c.Cost,
		}

	case CompleteResearchCommand:
		event = events.ResearchCompletedEvent{
			BaseEvent:   base(events.TypeResearchCompleted),
			Duration:    c.Duration,
			TotalCost:   s.Cost,
			SourceCount: s.countSources(),
		}

	case FailResearchCommand:
		event = events.ResearchFailedEvent{
			BaseEvent:   base(events.TypeResearchFailed),
			Error:       c.Error,
			FailedPhase: c.FailedPhase,
		}

	case CancelResearchCommand:
		event = events.ResearchCancelledEvent{
			BaseEvent: base(events.TypeResearchCancelled),
			Reason:    c.Reason,
		}

	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}

	s.applyUnlocked(event)

	return event, nil
}
