// Package orchestrator drives a research session end to end: planning,
// concurrent search, analysis, and synthesis, with every state transition
// persisted as an event so a session can be resumed after a crash.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"deepresearch/internal/agents"
	"deepresearch/internal/config"
	"deepresearch/internal/core/domain/aggregate"
	domainEvents "deepresearch/internal/core/domain/events"
	"deepresearch/internal/core/ports"
	"deepresearch/internal/events"
	"deepresearch/internal/llm"
	"deepresearch/internal/planning"
	"deepresearch/internal/report"
	"deepresearch/internal/session"
	"deepresearch/internal/tools"
)

// Orchestrator drives a research session, persisting every state transition
// as an event for full interruptibility and resumability.
type Orchestrator struct {
	eventStore     ports.EventStore
	eventBus       *events.Bus
	appConfig      *config.Config
	client         llm.ChatClient
	planner        *planning.Planner
	searchAgent    *agents.SearchAgent
	analysisAgent  *agents.AnalysisAgent
	synthesisAgent *agents.SynthesisAgent
	reportWriter   *report.Writer
	tools          tools.ToolExecutor
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithClient injects a custom LLM client (for testing).
func WithClient(client llm.ChatClient) Option {
	return func(o *Orchestrator) {
		o.client = client
		o.planner = planning.NewPlanner(client)
		o.searchAgent = agents.NewSearchAgent(client, o.tools, o.eventBus, agents.DefaultSearchConfig())
		o.analysisAgent = agents.NewAnalysisAgentWithBus(client, o.eventBus)
		o.synthesisAgent = agents.NewSynthesisAgentWithBus(client, o.eventBus)
	}
}

// WithTools injects a custom tool executor (for testing).
func WithTools(toolExec tools.ToolExecutor) Option {
	return func(o *Orchestrator) {
		o.tools = toolExec
		o.searchAgent = agents.NewSearchAgent(o.client, toolExec, o.eventBus, agents.DefaultSearchConfig())
	}
}

// New creates a new orchestrator.
func New(
	eventStore ports.EventStore,
	bus *events.Bus,
	cfg *config.Config,
	opts ...Option,
) *Orchestrator {
	client := llm.NewClient(cfg)
	toolReg := tools.NewRegistry(cfg.BraveAPIKey)

	o := &Orchestrator{
		eventStore:     eventStore,
		eventBus:       bus,
		appConfig:      cfg,
		client:         client,
		planner:        planning.NewPlanner(client),
		searchAgent:    agents.NewSearchAgent(client, toolReg, bus, agents.DefaultSearchConfig()),
		analysisAgent:  agents.NewAnalysisAgentWithBus(client, bus),
		synthesisAgent: agents.NewSynthesisAgentWithBus(client, bus),
		reportWriter:   report.NewWriter(cfg.VaultPath),
		tools:          toolReg,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run starts a new research session in the given mode ("deep" or "fast").
func (o *Orchestrator) Run(ctx context.Context, sessionID, query, mode string) (*aggregate.ResearchState, error) {
	state, err := o.loadOrCreateState(ctx, sessionID, query, mode)
	if err != nil {
		return nil, err
	}
	return o.continueResearch(ctx, state)
}

// Resume continues an interrupted research session. Workers left "running" at
// crash time are reset to "pending" since they have no completion event.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (*aggregate.ResearchState, error) {
	state, err := o.loadState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if state.DAG != nil {
		for id, node := range state.DAG.Nodes {
			if node.Status == "running" {
				node.Status = "pending"
			}
			if w, ok := state.Workers[id]; ok && w.Status == "running" {
				w.Status = "pending"
			}
		}
	}

	return o.continueResearch(ctx, state)
}

// loadOrCreateState loads existing state or creates new for a session.
func (o *Orchestrator) loadOrCreateState(ctx context.Context, sessionID, query, mode string) (*aggregate.ResearchState, error) {
	existingEvents, err := o.eventStore.LoadEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(existingEvents) > 0 {
		eventInterfaces := make([]interface{}, len(existingEvents))
		for i, e := range existingEvents {
			eventInterfaces[i] = e
		}
		return aggregate.LoadFromEvents(sessionID, eventInterfaces)
	}

	if mode == "" {
		mode = "deep"
	}

	state := aggregate.NewResearchState(sessionID)

	event, err := state.Execute(aggregate.StartResearchCommand{
		Query: query,
		Mode:  mode,
		Config: domainEvents.ResearchConfig{
			MaxWorkers: o.appConfig.MaxWorkers,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := o.persistEvent(ctx, state, event); err != nil {
		return nil, err
	}
	o.publishUIEvent(event)

	return state, nil
}

// loadState loads state from the event store, preferring a snapshot when available.
func (o *Orchestrator) loadState(ctx context.Context, sessionID string) (*aggregate.ResearchState, error) {
	snapshot, err := o.eventStore.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if snapshot != nil {
		var snap domainEvents.ResearchStateSnapshot
		if err := json.Unmarshal(snapshot.Data, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}

		state := aggregate.RestoreFromSnapshot(sessionID, snap, snapshot.Version)

		subsequentEvents, err := o.eventStore.LoadEventsFrom(ctx, sessionID, snapshot.Version)
		if err != nil {
			return nil, err
		}
		for _, e := range subsequentEvents {
			state.Apply(e)
		}
		state.ClearUncommittedEvents()
		return state, nil
	}

	allEvents, err := o.eventStore.LoadEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(allEvents) == 0 {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	eventInterfaces := make([]interface{}, len(allEvents))
	for i, e := range allEvents {
		eventInterfaces[i] = e
	}
	return aggregate.LoadFromEvents(sessionID, eventInterfaces)
}

// continueResearch picks up from current state and drives it to completion.
func (o *Orchestrator) continueResearch(ctx context.Context, state *aggregate.ResearchState) (*aggregate.ResearchState, error) {
	switch state.Status {
	case "pending", "planning":
		if err := o.executePlanning(ctx, state); err != nil {
			return o.failResearch(ctx, state, "planning", err)
		}
		fallthrough

	case "searching":
		if err := o.executeDAG(ctx, state); err != nil {
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			return o.failResearch(ctx, state, "searching", err)
		}
		event, err := state.Execute(aggregate.StartAnalysisCommand{
			TotalFacts: o.countTotalFacts(state),
		})
		if err == nil {
			_ = o.persistEvent(ctx, state, event)
			o.publishUIEvent(event)
		}
		fallthrough

	case "analyzing":
		if err := o.executeAnalysis(ctx, state); err != nil {
			return o.failResearch(ctx, state, "analyzing", err)
		}
		event, err := state.Execute(aggregate.StartSynthesisCommand{})
		if err == nil {
			_ = o.persistEvent(ctx, state, event)
			o.publishUIEvent(event)
		}
		fallthrough

	case "synthesizing":
		if err := o.executeSynthesis(ctx, state); err != nil {
			return o.failResearch(ctx, state, "synthesizing", err)
		}

	case "complete":
		return state, nil

	case "failed", "cancelled":
		return state, fmt.Errorf("research in terminal state: %s", state.Status)
	}

	event, _ := state.Execute(aggregate.CompleteResearchCommand{
		Duration: time.Since(*state.StartedAt),
	})
	_ = o.persistEvent(ctx, state, event)
	o.publishUIEvent(event)

	if state.Report != nil {
		if path, err := o.reportWriter.Write(state.ID, state.Query, &agents.Report{
			Title:       state.Report.Title,
			Summary:     state.Report.Summary,
			FullContent: state.Report.FullContent,
			Citations:   convertCitationsToAgents(state.Report.Citations),
		}); err == nil {
			o.emitReportWritten(state.ID, path)
		}
	}

	if state.Version%20 == 0 {
		o.saveSnapshot(ctx, state)
	}

	return state, nil
}

func (o *Orchestrator) failResearch(ctx context.Context, state *aggregate.ResearchState, phase string, cause error) (*aggregate.ResearchState, error) {
	event, err := state.Execute(aggregate.FailResearchCommand{
		Error:       cause.Error(),
		FailedPhase: phase,
	})
	if err == nil {
		_ = o.persistEvent(ctx, state, event)
		o.publishUIEvent(event)
	}
	return state, cause
}

// executePlanning creates the research plan and DAG. In "fast" mode this is a
// single-perspective, single-node plan so the same state machine applies
// uniformly; the diffusion loop runs entirely inside that one node.
func (o *Orchestrator) executePlanning(ctx context.Context, state *aggregate.ResearchState) error {
	var plan *planning.ResearchPlan
	var err error

	if state.Mode == "fast" {
		plan = planning.SinglePerspectivePlan(state.Query)
	} else {
		plan, err = o.planner.CreatePlan(ctx, state.Query)
		if err != nil {
			return err
		}
	}

	perspectives := make([]domainEvents.Perspective, len(plan.Perspectives))
	for i, p := range plan.Perspectives {
		perspectives[i] = domainEvents.Perspective{
			Name:      p.Name,
			Focus:     p.Focus,
			Questions: p.Questions,
		}
	}

	dagSnapshot := buildDAGSnapshotFromPlan(plan.DAG)

	event, err := state.Execute(aggregate.SetPlanCommand{
		Topic:        plan.Topic,
		Perspectives: perspectives,
		DAGStructure: dagSnapshot,
		Cost: domainEvents.CostBreakdown{
			InputTokens:  plan.Cost.InputTokens,
			OutputTokens: plan.Cost.OutputTokens,
			TotalTokens:  plan.Cost.TotalTokens,
			TotalCostUSD: plan.Cost.TotalCost,
		},
	})
	if err != nil {
		return err
	}

	if err := o.persistEvent(ctx, state, event); err != nil {
		return err
	}
	o.publishUIEvent(event)

	return nil
}

// executeDAG executes the research DAG with event persistence.
func (o *Orchestrator) executeDAG(ctx context.Context, state *aggregate.ResearchState) error {
	if state.DAG == nil {
		return fmt.Errorf("no DAG in state")
	}

	for {
		readyNodes := o.getReadyNodes(state)
		if len(readyNodes) == 0 {
			if o.allNodesComplete(state) {
				return nil
			}
			select {
			case <-ctx.Done():
				event, _ := state.Execute(aggregate.CancelResearchCommand{
					Reason: ctx.Err().Error(),
				})
				o.persistEvent(ctx, state, event)
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		sem := make(chan struct{}, o.appConfig.MaxWorkers)
		var wg sync.WaitGroup
		for _, node := range readyNodes {
			wg.Add(1)
			sem <- struct{}{}
			go func(n *aggregate.DAGNode) {
				defer wg.Done()
				defer func() { <-sem }()
				o.executeNode(ctx, state, n)
			}(node)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			event, _ := state.Execute(aggregate.CancelResearchCommand{
				Reason: ctx.Err().Error(),
			})
			o.persistEvent(ctx, state, event)
			return ctx.Err()
		default:
		}
	}
}

// executeNode executes a single DAG node. In "deep" mode this is a
// SearchAgent search for the node's perspective; in "fast" mode it runs the
// full supervisor diffusion loop end to end, and the node's output is the
// refined draft.
func (o *Orchestrator) executeNode(ctx context.Context, state *aggregate.ResearchState, node *aggregate.DAGNode) {
	workerNum := extractWorkerNum(node.ID)

	event, _ := state.Execute(aggregate.StartWorkerCommand{
		WorkerID:    node.ID,
		WorkerNum:   workerNum,
		Objective:   node.Description,
		Perspective: o.getPerspectiveForNode(state, node.ID),
	})
	o.persistEvent(ctx, state, event)
	o.publishUIEvent(event)

	var output string
	var facts []domainEvents.Fact
	var sources []domainEvents.Source
	var cost session.CostBreakdown
	var err error

	if state.Mode == "fast" {
		output, facts, sources, cost, err = o.runDiffusion(ctx, state.Query)
	} else {
		perspective := o.buildPerspective(state, node.ID)
		var result *agents.SearchResult
		result, err = o.searchAgent.SearchWithWorkerNum(ctx, node.Description, perspective, workerNum)
		if err == nil {
			facts = make([]domainEvents.Fact, len(result.Facts))
			for i, f := range result.Facts {
				facts[i] = domainEvents.Fact{
					Content:    f.Content,
					Confidence: f.Confidence,
					SourceURL:  f.Source,
				}
			}
			sources = make([]domainEvents.Source, len(result.Sources))
			for i, s := range result.Sources {
				sources[i] = domainEvents.Source{URL: s}
			}
			output = fmt.Sprintf("Found %d facts from %d sources", len(result.Facts), len(result.Sources))
			cost = session.NewCostBreakdown(o.client.GetModel(), result.Cost.InputTokens, result.Cost.OutputTokens, result.Cost.TotalTokens)
		}
	}

	if err != nil {
		event, _ := state.Execute(aggregate.FailWorkerCommand{
			WorkerID: node.ID,
			Error:    err.Error(),
		})
		o.persistEvent(ctx, state, event)
		o.publishUIEvent(event)
		return
	}

	event, _ = state.Execute(aggregate.CompleteWorkerCommand{
		WorkerID: node.ID,
		Output:   output,
		Facts:    facts,
		Sources:  sources,
		Cost: domainEvents.CostBreakdown{
			InputTokens:  cost.InputTokens,
			OutputTokens: cost.OutputTokens,
			TotalTokens:  cost.TotalTokens,
			TotalCostUSD: cost.TotalCost,
		},
	})
	o.persistEvent(ctx, state, event)
	o.publishUIEvent(event)
}

// runDiffusion runs the fast-mode single-node pipeline: brief generation,
// initial draft, and supervisor diffusion coordination; it makes no separate
// final-report call. The refined draft becomes the node's worker output; notes become facts and
// visited URLs become sources so the shared analysis/synthesis phases can
// treat it like any other worker's findings.
func (o *Orchestrator) runDiffusion(ctx context.Context, query string) (string, []domainEvents.Fact, []domainEvents.Source, session.CostBreakdown, error) {
	var totalCost session.CostBreakdown
	date := time.Now().Format("2006-01-02")

	brief, err := o.client.Chat(ctx, []llm.Message{
		{Role: "user", Content: agents.TransformToResearchBriefPrompt(query, date)},
	})
	if err != nil {
		return "", nil, nil, totalCost, fmt.Errorf("research brief: %w", err)
	}
	if len(brief.Choices) == 0 {
		return "", nil, nil, totalCost, fmt.Errorf("empty research brief response")
	}
	totalCost.Add(session.NewCostBreakdown(o.client.GetModel(), brief.Usage.PromptTokens, brief.Usage.CompletionTokens, brief.Usage.TotalTokens))
	researchBrief := brief.Choices[0].Message.Content

	draftResp, err := o.client.Chat(ctx, []llm.Message{
		{Role: "user", Content: agents.InitialDraftPrompt(researchBrief, date)},
	})
	if err != nil {
		return "", nil, nil, totalCost, fmt.Errorf("initial draft: %w", err)
	}
	if len(draftResp.Choices) == 0 {
		return "", nil, nil, totalCost, fmt.Errorf("empty initial draft response")
	}
	totalCost.Add(session.NewCostBreakdown(o.client.GetModel(), draftResp.Usage.PromptTokens, draftResp.Usage.CompletionTokens, draftResp.Usage.TotalTokens))
	initialDraft := draftResp.Choices[0].Message.Content

	supervisorCfg := agents.DefaultSupervisorConfig()
	supervisorCfg.MaxIterations = o.appConfig.MaxIterations
	supervisor := agents.NewSupervisorAgent(o.client, o.eventBus, supervisorCfg)

	result, err := supervisor.Coordinate(ctx, researchBrief, initialDraft, o.executeSubResearch)
	if err != nil {
		return "", nil, nil, totalCost, fmt.Errorf("diffusion coordination: %w", err)
	}
	totalCost.Add(result.Cost)

	facts := make([]domainEvents.Fact, len(result.Notes))
	for i, note := range result.Notes {
		facts[i] = domainEvents.Fact{Content: note, Confidence: 0.7}
	}

	urls := agents.ExtractURLs(fmt.Sprintf("%s\n%s", result.DraftReport, joinLines(result.RawNotes)))
	sources := make([]domainEvents.Source, len(urls))
	for i, u := range urls {
		sources[i] = domainEvents.Source{URL: u}
	}

	return result.DraftReport, facts, sources, totalCost, nil
}

// executeSubResearch delegates one diffusion-loop topic to a sub-researcher.
func (o *Orchestrator) executeSubResearch(ctx context.Context, topic string, researcherNum int, diffusionIteration int) (*agents.SubResearcherResult, error) {
	registry := tools.NewSubResearcherRegistry(o.appConfig.BraveAPIKey, o.client)
	cfg := agents.DefaultSubResearcherConfig()
	sub := agents.NewSubResearcherAgent(o.client, registry, o.eventBus, cfg)
	return sub.Research(ctx, topic, researcherNum)
}

func joinLines(ss []string) string {
	out := ""
	for _, s := range ss {
		out += s + "\n"
	}
	return out
}

// executeAnalysis runs the analysis phase.
func (o *Orchestrator) executeAnalysis(ctx context.Context, state *aggregate.ResearchState) error {
	var allFacts []agents.Fact
	for _, w := range state.Workers {
		for _, f := range w.Facts {
			allFacts = append(allFacts, agents.Fact{
				Content:    f.Content,
				Confidence: f.Confidence,
				Source:     f.SourceURL,
			})
		}
	}

	if len(allFacts) == 0 {
		return nil
	}

	result, err := o.analysisAgent.Analyze(ctx, state.Query, allFacts, nil)
	if err != nil {
		result = &agents.AnalysisResult{}
	}

	validatedFacts := make([]domainEvents.ValidatedFact, len(result.ValidatedFacts))
	for i, f := range result.ValidatedFacts {
		validatedFacts[i] = domainEvents.ValidatedFact{
			Content:        f.Content,
			Confidence:     f.Confidence,
			CorroboratedBy: f.CorroboratedBy,
		}
	}

	contradictions := make([]domainEvents.Contradiction, len(result.Contradictions))
	for i, c := range result.Contradictions {
		contradictions[i] = domainEvents.Contradiction{
			Fact1:       c.Claim1,
			Fact2:       c.Claim2,
			Description: c.Nature,
		}
	}

	gaps := make([]domainEvents.KnowledgeGap, len(result.KnowledgeGaps))
	for i, g := range result.KnowledgeGaps {
		gaps[i] = domainEvents.KnowledgeGap{
			Description:      g.Description,
			Importance:       g.Importance,
			SuggestedQueries: g.SuggestedQueries,
		}
	}

	event, err := state.Execute(aggregate.SetAnalysisCommand{
		ValidatedFacts: validatedFacts,
		Contradictions: contradictions,
		KnowledgeGaps:  gaps,
		Cost: domainEvents.CostBreakdown{
			InputTokens:  result.Cost.InputTokens,
			OutputTokens: result.Cost.OutputTokens,
			TotalTokens:  result.Cost.TotalTokens,
			TotalCostUSD: result.Cost.TotalCost,
		},
	})
	if err != nil {
		return err
	}

	o.persistEvent(ctx, state, event)
	o.publishUIEvent(event)

	return nil
}

// executeSynthesis generates the final report and writes it to the vault.
func (o *Orchestrator) executeSynthesis(ctx context.Context, state *aggregate.ResearchState) error {
	plan := o.buildPlanFromState(state)
	searchResults := o.buildSearchResultsFromState(state)
	analysisResult := o.buildAnalysisResultFromState(state)

	rep, err := o.synthesisAgent.Synthesize(ctx, plan, searchResults, analysisResult)
	if err != nil {
		return err
	}

	citations := make([]domainEvents.Citation, len(rep.Citations))
	for i, c := range rep.Citations {
		citations[i] = domainEvents.Citation{
			ID:    c.ID,
			URL:   c.URL,
			Title: c.Title,
		}
	}

	event, err := state.Execute(aggregate.SetReportCommand{
		Title:       rep.Title,
		Summary:     rep.Summary,
		FullContent: rep.FullContent,
		Citations:   citations,
		Cost: domainEvents.CostBreakdown{
			InputTokens:  rep.Cost.InputTokens,
			OutputTokens: rep.Cost.OutputTokens,
			TotalTokens:  rep.Cost.TotalTokens,
			TotalCostUSD: rep.Cost.TotalCost,
		},
	})
	if err != nil {
		return err
	}

	o.persistEvent(ctx, state, event)
	o.publishUIEvent(event)

	return nil
}

// persistEvent saves an event to the event store.
func (o *Orchestrator) persistEvent(ctx context.Context, state *aggregate.ResearchState, event interface{}) error {
	e, ok := event.(ports.Event)
	if !ok {
		return fmt.Errorf("event does not implement ports.Event: %T", event)
	}
	return o.eventStore.AppendEvents(ctx, state.ID, []ports.Event{e}, state.Version-1)
}

// publishUIEvent converts a domain event to a UI event and publishes it.
func (o *Orchestrator) publishUIEvent(event interface{}) {
	if o.eventBus == nil {
		return
	}

	switch e := event.(type) {
	case domainEvents.ResearchStartedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventResearchStarted,
			Timestamp: e.Timestamp,
			Data: events.ResearchStartedData{
				Query: e.Query,
				Mode:  e.Mode,
			},
		})

	case domainEvents.PlanCreatedEvent:
		perspectives := make([]events.PerspectiveData, len(e.Perspectives))
		for i, p := range e.Perspectives {
			perspectives[i] = events.PerspectiveData{
				Name:      p.Name,
				Focus:     p.Focus,
				Questions: p.Questions,
			}
		}
		dagNodes := make([]events.DAGNodeData, len(e.DAGStructure.Nodes))
		for i, n := range e.DAGStructure.Nodes {
			dagNodes[i] = events.DAGNodeData{
				ID:           n.ID,
				TaskType:     n.TaskType,
				Description:  n.Description,
				Dependencies: n.Dependencies,
				Status:       n.Status,
			}
		}
		o.eventBus.Publish(events.Event{
			Type:      events.EventPlanCreated,
			Timestamp: e.Timestamp,
			Data: events.PlanCreatedData{
				WorkerCount:  len(e.Perspectives),
				Complexity:   0.8,
				Topic:        e.Topic,
				Perspectives: perspectives,
				DAGNodes:     dagNodes,
			},
		})

	case domainEvents.WorkerStartedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventWorkerStarted,
			Timestamp: e.Timestamp,
			Data: events.WorkerProgressData{
				WorkerID:  e.WorkerID,
				WorkerNum: e.WorkerNum,
				Objective: e.Objective,
				Status:    "running",
			},
		})

	case domainEvents.WorkerCompletedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventWorkerComplete,
			Timestamp: e.Timestamp,
			Data: events.WorkerProgressData{
				WorkerID: e.WorkerID,
				Status:   "complete",
			},
		})

	case domainEvents.WorkerFailedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventWorkerFailed,
			Timestamp: e.Timestamp,
			Data: events.WorkerProgressData{
				WorkerID: e.WorkerID,
				Status:   "failed",
				Message:  e.Error,
			},
		})

	case domainEvents.AnalysisCompletedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventAnalysisComplete,
			Timestamp: e.Timestamp,
			Data: map[string]interface{}{
				"contradictions": len(e.Contradictions),
				"gaps":           len(e.KnowledgeGaps),
			},
		})

	case domainEvents.ReportGeneratedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventSynthesisComplete,
			Timestamp: e.Timestamp,
		})

	case domainEvents.ResearchCompletedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventResearchComplete,
			Timestamp: e.Timestamp,
			Data: map[string]interface{}{
				"duration":     e.Duration,
				"source_count": e.SourceCount,
			},
		})

	case domainEvents.ResearchFailedEvent:
		o.eventBus.Publish(events.Event{
			Type:      events.EventError,
			Timestamp: e.Timestamp,
			Data: map[string]interface{}{
				"phase": e.FailedPhase,
				"error": e.Error,
			},
		})
	}
}

func (o *Orchestrator) emitReportWritten(sessionID, path string) {
	if o.eventBus == nil {
		return
	}
	o.eventBus.Publish(events.Event{
		Type: events.EventReportWritten,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"path":       path,
		},
	})
}

// saveSnapshot creates a snapshot for faster future loads.
func (o *Orchestrator) saveSnapshot(ctx context.Context, state *aggregate.ResearchState) {
	data, err := json.Marshal(state.ToSnapshot())
	if err != nil {
		return
	}
	snapshot := ports.Snapshot{
		AggregateID: state.ID,
		Version:     state.Version,
		Timestamp:   time.Now(),
		Data:        data,
	}
	_ = o.eventStore.SaveSnapshot(ctx, state.ID, snapshot)
}

// Helper functions

func (o *Orchestrator) getReadyNodes(state *aggregate.ResearchState) []*aggregate.DAGNode {
	var ready []*aggregate.DAGNode
	for _, node := range state.DAG.Nodes {
		if node.Status != "pending" {
			continue
		}
		allDepsComplete := true
		for _, depID := range node.Dependencies {
			dep, ok := state.DAG.Nodes[depID]
			if !ok || dep.Status != "complete" {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, node)
		}
	}
	return ready
}

func (o *Orchestrator) allNodesComplete(state *aggregate.ResearchState) bool {
	for _, node := range state.DAG.Nodes {
		if node.Status != "complete" && node.Status != "failed" {
			return false
		}
	}
	return true
}

func extractWorkerNum(nodeID string) int {
	var index int
	if _, err := fmt.Sscanf(nodeID, "search_%d", &index); err == nil {
		return index + 1
	}
	return 0
}

func (o *Orchestrator) getPerspectiveForNode(state *aggregate.ResearchState, nodeID string) string {
	if worker, ok := state.Workers[nodeID]; ok {
		return worker.Perspective
	}
	return ""
}

func (o *Orchestrator) buildPerspective(state *aggregate.ResearchState, nodeID string) *planning.Perspective {
	if state.Plan == nil {
		return nil
	}
	for _, p := range state.Plan.Perspectives {
		if worker, ok := state.Workers[nodeID]; ok && worker.Perspective == p.Name {
			return &planning.Perspective{
				Name:      p.Name,
				Focus:     p.Focus,
				Questions: p.Questions,
			}
		}
	}
	if len(state.Plan.Perspectives) > 0 {
		p := state.Plan.Perspectives[0]
		return &planning.Perspective{
			Name:      p.Name,
			Focus:     p.Focus,
			Questions: p.Questions,
		}
	}
	return nil
}

func buildDAGSnapshotFromPlan(dag *planning.ResearchDAG) domainEvents.DAGSnapshot {
	nodes := dag.GetAllNodes()
	snapshot := domainEvents.DAGSnapshot{
		Nodes: make([]domainEvents.DAGNodeSnapshot, len(nodes)),
	}
	for i, n := range nodes {
		snapshot.Nodes[i] = domainEvents.DAGNodeSnapshot{
			ID:           n.ID,
			TaskType:     n.TaskType.String(),
			Description:  n.Description,
			Dependencies: n.Dependencies,
			Status:       n.Status.String(),
		}
	}
	return snapshot
}

func (o *Orchestrator) buildPlanFromState(state *aggregate.ResearchState) *planning.ResearchPlan {
	if state.Plan == nil {
		return &planning.ResearchPlan{Topic: state.Query}
	}
	perspectives := make([]planning.Perspective, len(state.Plan.Perspectives))
	for i, p := range state.Plan.Perspectives {
		perspectives[i] = planning.Perspective{
			Name:      p.Name,
			Focus:     p.Focus,
			Questions: p.Questions,
		}
	}
	return &planning.ResearchPlan{
		Topic:        state.Plan.Topic,
		Perspectives: perspectives,
	}
}

func (o *Orchestrator) buildSearchResultsFromState(state *aggregate.ResearchState) map[string]*agents.SearchResult {
	results := make(map[string]*agents.SearchResult)
	for id, w := range state.Workers {
		if w.Status != "complete" {
			continue
		}
		facts := make([]agents.Fact, len(w.Facts))
		for i, f := range w.Facts {
			facts[i] = agents.Fact{
				Content:    f.Content,
				Confidence: f.Confidence,
				Source:     f.SourceURL,
			}
		}
		sources := make([]string, len(w.Sources))
		for i, s := range w.Sources {
			sources[i] = s.URL
		}
		results[id] = &agents.SearchResult{
			Facts:   facts,
			Sources: sources,
		}
	}
	return results
}

func (o *Orchestrator) buildAnalysisResultFromState(state *aggregate.ResearchState) *agents.AnalysisResult {
	if state.Analysis == nil {
		return &agents.AnalysisResult{}
	}
	validatedFacts := make([]agents.ValidatedFact, len(state.Analysis.ValidatedFacts))
	for i, f := range state.Analysis.ValidatedFacts {
		validatedFacts[i] = agents.ValidatedFact{
			Fact: agents.Fact{
				Content:    f.Content,
				Confidence: f.Confidence,
			},
			CorroboratedBy: f.CorroboratedBy,
		}
	}
	contradictions := make([]agents.Contradiction, len(state.Analysis.Contradictions))
	for i, c := range state.Analysis.Contradictions {
		contradictions[i] = agents.Contradiction{
			Claim1: c.Fact1,
			Claim2: c.Fact2,
			Nature: c.Description,
		}
	}
	gaps := make([]agents.KnowledgeGap, len(state.Analysis.KnowledgeGaps))
	for i, g := range state.Analysis.KnowledgeGaps {
		gaps[i] = agents.KnowledgeGap{
			Description:      g.Description,
			Importance:       g.Importance,
			SuggestedQueries: g.SuggestedQueries,
		}
	}
	return &agents.AnalysisResult{
		ValidatedFacts: validatedFacts,
		Contradictions: contradictions,
		KnowledgeGaps:  gaps,
	}
}

func (o *Orchestrator) countTotalFacts(state *aggregate.ResearchState) int {
	count := 0
	for _, w := range state.Workers {
		count += len(w.Facts)
	}
	return count
}

func convertCitationsToAgents(cs []domainEvents.Citation) []agents.Citation {
	out := make([]agents.Citation, len(cs))
	for i, c := range cs {
		out[i] = agents.Citation{ID: c.ID, URL: c.URL, Title: c.Title}
	}
	return out
}
