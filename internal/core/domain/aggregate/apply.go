package aggregate

import (
	"deepresearch/internal/core/domain/events"
)

// Apply updates state from an event (used for replay and live updates).
func (s *ResearchState) Apply(event interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyUnlocked(event)
}

// dispatch tries to deliver event to handler as an *E, accepting event as
// either E or *E — the event store hands back value types on decode and
// Execute produces value types too, but replay from a generic stream can
// carry either, so every handler here takes the indirection for free instead
// of every caller switching on both forms by hand.
func dispatch[E any](event interface{}, handler func(*E)) bool {
	switch e := event.(type) {
	case *E:
		handler(e)
		return true
	case E:
		handler(&e)
		return true
	default:
		return false
	}
}

// applyUnlocked applies an event without locking (called from Execute).
// The ordering here mirrors the phase progression a session walks through:
// start, plan, search (per worker), analyze, synthesize, finish.
func (s *ResearchState) applyUnlocked(event interface{}) {
	switch {
	case dispatch(event, s.applyResearchStarted):
	case dispatch(event, s.applyPlanCreated):
	case dispatch(event, s.applyWorkerStarted):
	case dispatch(event, s.applyWorkerCompleted):
	case dispatch(event, s.applyWorkerFailed):
	case dispatch(event, s.applyAnalysisStarted):
	case dispatch(event, s.applyAnalysisCompleted):
	case dispatch(event, s.applySynthesisStarted):
	case dispatch(event, s.applyReportGenerated):
	case dispatch(event, s.applyResearchCompleted):
	case dispatch(event, s.applyResearchFailed):
	case dispatch(event, s.applyResearchCancelled):
	case dispatch(event, func(e *events.SnapshotTakenEvent) { s.Version = e.Version }):
	}

	s.uncommittedEvents = append(s.uncommittedEvents, event)
}

// --- per-event state mutation ---------------------------------------------

func (s *ResearchState) applyResearchStarted(e *events.ResearchStartedEvent) {
	s.Query = e.Query
	s.Mode = e.Mode
	s.Config = e.Config
	s.Status = statusPlanning
	now := e.Timestamp
	s.StartedAt = &now
	s.Version = e.Version
}

func (s *ResearchState) applyPlanCreated(e *events.PlanCreatedEvent) {
	s.Plan = &PlanState{
		Topic:        e.Topic,
		Perspectives: e.Perspectives,
	}
	s.DAG = reconstructDAG(e.DAGStructure)
	s.initializeWorkers(e.Perspectives, e.DAGStructure)
	s.Status = statusSearching
	s.Cost.Add(e.Cost)
	s.Version = e.Version
}

func (s *ResearchState) applyWorkerStarted(e *events.WorkerStartedEvent) {
	now := e.Timestamp
	if w, ok := s.Workers[e.WorkerID]; ok {
		w.Status = "running"
		w.StartedAt = &now
	} else {
		s.Workers[e.WorkerID] = &WorkerState{
			ID:          e.WorkerID,
			WorkerNum:   e.WorkerNum,
			Objective:   e.Objective,
			Perspective: e.Perspective,
			Status:      "running",
			Facts:       []events.Fact{},
			Sources:     []events.Source{},
			StartedAt:   &now,
		}
	}
	if node, ok := s.dagNode(e.WorkerID); ok {
		node.Status = "running"
	}
	s.Version = e.Version
}

func (s *ResearchState) applyWorkerCompleted(e *events.WorkerCompletedEvent) {
	if w, ok := s.Workers[e.WorkerID]; ok {
		w.Status = "complete"
		w.Output = e.Output
		w.Facts = e.Facts
		w.Sources = e.Sources
		w.Cost = e.Cost
		now := e.Timestamp
		w.CompletedAt = &now
	}
	if node, ok := s.dagNode(e.WorkerID); ok {
		node.Status = "complete"
	}
	s.Cost.Add(e.Cost)
	s.updateProgress()
	s.Version = e.Version
}

func (s *ResearchState) applyWorkerFailed(e *events.WorkerFailedEvent) {
	if w, ok := s.Workers[e.WorkerID]; ok {
		w.Status = "failed"
		w.Error = &e.Error
	}
	if node, ok := s.dagNode(e.WorkerID); ok {
		node.Status = "failed"
		node.Error = &e.Error
	}
	s.Version = e.Version
}

func (s *ResearchState) applyAnalysisStarted(e *events.AnalysisStartedEvent) {
	s.Status = statusAnalyzing
	s.Analysis = &AnalysisState{}
	s.Version = e.Version
}

func (s *ResearchState) applyAnalysisCompleted(e *events.AnalysisCompletedEvent) {
	if s.Analysis == nil {
		s.Analysis = &AnalysisState{}
	}
	s.Analysis.ValidatedFacts = e.ValidatedFacts
	s.Analysis.Contradictions = e.Contradictions
	s.Analysis.KnowledgeGaps = e.KnowledgeGaps
	s.Analysis.Cost = e.Cost
	s.Cost.Add(e.Cost)
	s.Status = statusSynthesizing
	s.Version = e.Version
}

func (s *ResearchState) applySynthesisStarted(e *events.SynthesisStartedEvent) {
	s.Status = statusSynthesizing
	s.Report = &ReportState{}
	s.Version = e.Version
}

func (s *ResearchState) applyReportGenerated(e *events.ReportGeneratedEvent) {
	if s.Report == nil {
		s.Report = &ReportState{}
	}
	s.Report.Title = e.Title
	s.Report.Summary = e.Summary
	s.Report.FullContent = e.FullContent
	s.Report.Citations = e.Citations
	s.Report.Cost = e.Cost
	s.Cost.Add(e.Cost)
	s.Version = e.Version
}

func (s *ResearchState) applyResearchCompleted(e *events.ResearchCompletedEvent) {
	s.Status = statusComplete
	now := e.Timestamp
	s.CompletedAt = &now
	s.Version = e.Version
}

func (s *ResearchState) applyResearchFailed(e *events.ResearchFailedEvent) {
	s.Status = statusFailed
	now := e.Timestamp
	s.CompletedAt = &now
	s.Version = e.Version
}

func (s *ResearchState) applyResearchCancelled(e *events.ResearchCancelledEvent) {
	s.Status = statusCancelled
	now := e.Timestamp
	s.CompletedAt = &now
	s.Version = e.Version
}

// dagNode looks up a worker's corresponding DAG node, tolerating a nil DAG
// (replay of a stream that hasn't reached plan.created yet).
func (s *ResearchState) dagNode(workerID string) (*DAGNode, bool) {
	if s.DAG == nil {
		return nil, false
	}
	node, ok := s.DAG.Nodes[workerID]
	return node, ok
}
