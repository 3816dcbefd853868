// Package aggregate contains the aggregate roots for the domain.
// ResearchState is the aggregate root for research sessions.
package aggregate

import (
	"fmt"
	"sync"
	"time"

	"deepresearch/internal/core/domain/events"
)

// ResearchState is the aggregate root for research sessions. It is the
// single consistency boundary for a session: every mutation goes through
// Execute, which validates a Command against the current state before
// turning it into an event and folding that event back in via Apply.
type ResearchState struct {
	mu sync.RWMutex

	ID        string
	Version   int
	CreatedAt time.Time

	Query  string
	Mode   string // "deep" or "fast"
	Config events.ResearchConfig

	Status   string // one of the status* constants in commands.go
	Progress float64

	Plan     *PlanState
	DAG      *DAGState
	Workers  map[string]*WorkerState
	Analysis *AnalysisState
	Report   *ReportState

	Cost events.CostBreakdown

	StartedAt   *time.Time
	CompletedAt *time.Time

	uncommittedEvents []interface{}
}

// PlanState holds the research plan chosen for this session.
type PlanState struct {
	Topic        string
	Perspectives []events.Perspective
}

// DAGState is the execution graph driving worker dispatch, keyed by node ID.
type DAGState struct {
	Nodes map[string]*DAGNode
}

// DAGNode is a single task in the execution graph.
type DAGNode struct {
	ID           string
	TaskType     string
	Description  string
	Dependencies []string
	Status       string // "pending", "running", "complete", "failed"
	Result       interface{}
	Error        *string
}

// WorkerState tracks one dispatched worker's lifecycle and output.
type WorkerState struct {
	ID          string
	WorkerNum   int
	Objective   string
	Perspective string
	Status      string
	Output      string
	Facts       []events.Fact
	Sources     []events.Source
	Cost        events.CostBreakdown
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       *string
}

// AnalysisState holds fact validation and contradiction results.
type AnalysisState struct {
	ValidatedFacts []events.ValidatedFact
	Contradictions []events.Contradiction
	KnowledgeGaps  []events.KnowledgeGap
	Cost           events.CostBreakdown
}

// ReportState holds the synthesized report.
type ReportState struct {
	Title       string
	Summary     string
	FullContent string
	Citations   []events.Citation
	Cost        events.CostBreakdown
}

// NewResearchState creates a fresh, unstarted session aggregate.
func NewResearchState(id string) *ResearchState {
	return &ResearchState{
		ID:        id,
		CreatedAt: time.Now(),
		Status:    statusPending,
		Workers:   make(map[string]*WorkerState),
	}
}

// LoadFromEvents rebuilds an aggregate by folding a persisted event stream
// through Apply in order, then discarding the resulting uncommitted marks
// since none of this is new to the store.
func LoadFromEvents(id string, eventStream []interface{}) (*ResearchState, error) {
	state := NewResearchState(id)
	for _, event := range eventStream {
		state.Apply(event)
	}
	state.uncommittedEvents = nil
	return state, nil
}

// GetUncommittedEvents returns a copy of events produced but not yet
// persisted to the event store.
func (s *ResearchState) GetUncommittedEvents() []interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]interface{}{}, s.uncommittedEvents...)
}

// ClearUncommittedEvents drops the pending-event buffer after a successful
// append to the store.
func (s *ResearchState) ClearUncommittedEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uncommittedEvents = nil
}

// GetVersion returns the current aggregate version.
func (s *ResearchState) GetVersion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Version
}

// GetStatus returns the current session status.
func (s *ResearchState) GetStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

func (s *ResearchState) countSources() int {
	count := 0
	for _, w := range s.Workers {
		count += len(w.Sources)
	}
	return count
}

// updateProgress recomputes overall progress as the fraction of DAG nodes
// that have reached "complete".
func (s *ResearchState) updateProgress() {
	if s.DAG == nil || len(s.DAG.Nodes) == 0 {
		return
	}
	completed := 0
	for _, node := range s.DAG.Nodes {
		if node.Status == "complete" {
			completed++
		}
	}
	s.Progress = float64(completed) / float64(len(s.DAG.Nodes))
}

// reconstructDAG rebuilds a DAGState from the flattened snapshot carried on
// a plan.created event.
func reconstructDAG(snapshot events.DAGSnapshot) *DAGState {
	dag := &DAGState{Nodes: make(map[string]*DAGNode, len(snapshot.Nodes))}
	for _, n := range snapshot.Nodes {
		dag.Nodes[n.ID] = &DAGNode{
			ID:           n.ID,
			TaskType:     n.TaskType,
			Description:  n.Description,
			Dependencies: n.Dependencies,
			Status:       n.Status,
		}
	}
	return dag
}

// initializeWorkers seeds one pending WorkerState per perspective, named
// search_0, search_1, ... to line up with the DAG's own search node IDs.
func (s *ResearchState) initializeWorkers(perspectives []events.Perspective, dag events.DAGSnapshot) {
	for i, p := range perspectives {
		workerID := fmt.Sprintf("search_%d", i)
		s.Workers[workerID] = &WorkerState{
			ID:          workerID,
			WorkerNum:   i + 1,
			Objective:   p.Focus,
			Perspective: p.Name,
			Status:      "pending",
			Facts:       []events.Fact{},
			Sources:     []events.Source{},
		}
	}
}
