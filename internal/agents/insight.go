package agents

import (
	"time"

	"deepresearch/internal/llm"
)

// SourceType indicates the kind of source that backed an insight.
type SourceType string

const (
	SourceTypeWeb      SourceType = "web"
	SourceTypeDocument SourceType = "document"
	SourceTypeAPI      SourceType = "api"
	SourceTypeFile     SourceType = "file"
)

// SourceReference carries full traceability back to the material an insight
// was extracted from.
type SourceReference struct {
	URL             string     `json:"url,omitempty"`
	FilePath        string     `json:"file_path,omitempty"`
	Type            SourceType `json:"type"`
	Title           string     `json:"title,omitempty"`
	RawContent      string     `json:"raw_content,omitempty"`
	RelevantExcerpt string     `json:"relevant_excerpt,omitempty"`
	FetchedAt       time.Time  `json:"fetched_at"`
	ContentHash     string     `json:"content_hash,omitempty"`
}

// SubInsight is a single research finding extracted from one sub-researcher
// search result, with enough provenance to be cited in the final report.
type SubInsight struct {
	ID                string            `json:"id"`
	Topic             string            `json:"topic"`
	Title             string            `json:"title"`
	Finding           string            `json:"finding"`
	Implication       string            `json:"implication,omitempty"`
	SourceURL         string            `json:"source_url,omitempty"`
	SourceContent     string            `json:"source_content,omitempty"`
	Sources           []SourceReference `json:"sources,omitempty"`
	AnalysisChain     []string          `json:"analysis_chain,omitempty"`
	RelatedInsightIDs []string          `json:"related_insight_ids,omitempty"`
	Confidence        float64           `json:"confidence"`
	Iteration         int               `json:"iteration"`
	ResearcherNum     int               `json:"researcher_num"`
	Timestamp         time.Time         `json:"timestamp"`
	ToolUsed          string            `json:"tool_used,omitempty"`
	QueryUsed         string            `json:"query_used,omitempty"`
}

// ResearcherState tracks one sub-researcher's progress through its focused
// search loop.
type ResearcherState struct {
	Messages           []llm.Message
	ResearchTopic      string
	CompressedResearch string
	RawNotes           []string
	Iteration          int
	VisitedURLs        []string
}

// NewResearcherState creates empty state for a newly delegated topic.
func NewResearcherState(topic string) *ResearcherState {
	return &ResearcherState{
		ResearchTopic: topic,
		RawNotes:      make([]string, 0),
		VisitedURLs:   make([]string, 0),
	}
}

func (r *ResearcherState) AddRawNote(note string) {
	r.RawNotes = append(r.RawNotes, note)
}

func (r *ResearcherState) SetCompressedResearch(compressed string) {
	r.CompressedResearch = compressed
}

func (r *ResearcherState) IncrementIteration() {
	r.Iteration++
}

func (r *ResearcherState) AddVisitedURL(url string) {
	r.VisitedURLs = append(r.VisitedURLs, url)
}
