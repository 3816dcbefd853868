package events

import "time"

// CostBreakdown tracks token usage and costs.
type CostBreakdown struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Add combines two cost breakdowns.
func (c *CostBreakdown) Add(other CostBreakdown) {
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.TotalTokens += other.TotalTokens
	c.TotalCostUSD += other.TotalCostUSD
}

// ResearchConfig holds research session configuration.
type ResearchConfig struct {
	MaxWorkers int           `json:"max_workers"`
	Timeout    time.Duration `json:"timeout"`
}

// Perspective represents a research perspective discovered during planning.
type Perspective struct {
	Name      string   `json:"name"`
	Focus     string   `json:"focus"`
	Questions []string `json:"questions"`
}

// DAGSnapshot captures the complete DAG state.
type DAGSnapshot struct {
	Nodes []DAGNodeSnapshot `json:"nodes"`
}

// DAGNodeSnapshot represents a single node in the DAG.
type DAGNodeSnapshot struct {
	ID           string   `json:"id"`
	TaskType     string   `json:"task_type"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	Status       string   `json:"status"`
}

// Fact represents a discovered fact from research.
type Fact struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	SourceURL  string  `json:"source_url"`
}

// Source represents a source used in research.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ValidatedFact represents a fact that has been cross-validated.
type ValidatedFact struct {
	Content        string   `json:"content"`
	Confidence     float64  `json:"confidence"`
	CorroboratedBy []string `json:"corroborated_by"`
}

// Contradiction represents conflicting information found during analysis.
type Contradiction struct {
	Fact1       string `json:"fact_1"`
	Fact2       string `json:"fact_2"`
	Description string `json:"description"`
}

// KnowledgeGap represents missing information identified during analysis.
type KnowledgeGap struct {
	Description      string   `json:"description"`
	Importance       float64  `json:"importance"`
	SuggestedQueries []string `json:"suggested_queries"`
}

// Citation represents a citation in the final report.
type Citation struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ResearchStateSnapshot captures a session's complete state at one point in
// time, letting replay resume from here instead of folding the full event
// history.
type ResearchStateSnapshot struct {
	Query          string                    `json:"query"`
	Mode           string                    `json:"mode"`
	Status         string                    `json:"status"`
	DAG            DAGSnapshot               `json:"dag"`
	Workers        map[string]WorkerSnapshot `json:"workers"`
	AnalysisResult *AnalysisSnapshot         `json:"analysis_result,omitempty"`
	Report         *ReportSnapshot           `json:"report,omitempty"`
	Cost           CostBreakdown             `json:"cost"`
}

// WorkerSnapshot captures one worker's state within a ResearchStateSnapshot.
type WorkerSnapshot struct {
	ID          string        `json:"id"`
	WorkerNum   int           `json:"worker_num"`
	Objective   string        `json:"objective"`
	Perspective string        `json:"perspective"`
	Status      string        `json:"status"`
	Output      string        `json:"output"`
	Facts       []Fact        `json:"facts"`
	Sources     []Source      `json:"sources"`
	Cost        CostBreakdown `json:"cost"`
}

// AnalysisSnapshot captures the analysis phase's state.
type AnalysisSnapshot struct {
	ValidatedFacts []ValidatedFact `json:"validated_facts"`
	Contradictions []Contradiction `json:"contradictions"`
	KnowledgeGaps  []KnowledgeGap  `json:"knowledge_gaps"`
}

// ReportSnapshot captures the synthesized report's state.
type ReportSnapshot struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	FullContent string     `json:"full_content"`
	Citations   []Citation `json:"citations"`
}
