package aggregate

import (
	"deepresearch/internal/core/domain/events"
)

// ToSnapshot captures the current state into a serializable snapshot payload.
// The aggregate must still be fully reconstructible from events alone; this is
// purely a replay-speed optimization (see SaveSnapshot/LoadSnapshot).
func (s *ResearchState) ToSnapshot() events.ResearchStateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := events.ResearchStateSnapshot{
		Query:   s.Query,
		Mode:    s.Mode,
		Status:  s.Status,
		Cost:    s.Cost,
		Workers: make(map[string]events.WorkerSnapshot, len(s.Workers)),
	}

	if s.DAG != nil {
		for _, n := range s.DAG.Nodes {
			snap.DAG.Nodes = append(snap.DAG.Nodes, events.DAGNodeSnapshot{
				ID:           n.ID,
				TaskType:     n.TaskType,
				Description:  n.Description,
				Dependencies: n.Dependencies,
				Status:       n.Status,
			})
		}
	}

	for id, w := range s.Workers {
		snap.Workers[id] = events.WorkerSnapshot{
			ID:          w.ID,
			WorkerNum:   w.WorkerNum,
			Objective:   w.Objective,
			Perspective: w.Perspective,
			Status:      w.Status,
			Output:      w.Output,
			Facts:       w.Facts,
			Sources:     w.Sources,
			Cost:        w.Cost,
		}
	}

	if s.Analysis != nil {
		snap.AnalysisResult = &events.AnalysisSnapshot{
			ValidatedFacts: s.Analysis.ValidatedFacts,
			Contradictions: s.Analysis.Contradictions,
			KnowledgeGaps:  s.Analysis.KnowledgeGaps,
		}
	}

	if s.Report != nil {
		snap.Report = &events.ReportSnapshot{
			Title:       s.Report.Title,
			Summary:     s.Report.Summary,
			FullContent: s.Report.FullContent,
			Citations:   s.Report.Citations,
		}
	}

	return snap
}

// RestoreFromSnapshot rebuilds a ResearchState directly from a snapshot payload,
// bypassing event replay for everything up to and including snapshotVersion. The
// caller is responsible for applying any events recorded after that version.
func RestoreFromSnapshot(id string, snap events.ResearchStateSnapshot, snapshotVersion int) *ResearchState {
	s := NewResearchState(id)
	s.Version = snapshotVersion
	s.Query = snap.Query
	s.Mode = snap.Mode
	s.Status = snap.Status
	s.Cost = snap.Cost

	if len(snap.DAG.Nodes) > 0 {
		s.DAG = reconstructDAG(snap.DAG)
	}

	for id, w := range snap.Workers {
		s.Workers[id] = &WorkerState{
			ID:          w.ID,
			WorkerNum:   w.WorkerNum,
			Objective:   w.Objective,
			Perspective: w.Perspective,
			Status:      w.Status,
			Output:      w.Output,
			Facts:       w.Facts,
			Sources:     w.Sources,
			Cost:        w.Cost,
		}
	}

	if snap.AnalysisResult != nil {
		s.Analysis = &AnalysisState{
			ValidatedFacts: snap.AnalysisResult.ValidatedFacts,
			Contradictions: snap.AnalysisResult.Contradictions,
			KnowledgeGaps:  snap.AnalysisResult.KnowledgeGaps,
		}
	}

	if snap.Report != nil {
		s.Report = &ReportState{
			Title:       snap.Report.Title,
			Summary:     snap.Report.Summary,
			FullContent: snap.Report.FullContent,
			Citations:   snap.Report.Citations,
		}
	}

	s.updateProgress()
	s.uncommittedEvents = nil
	return s
}
