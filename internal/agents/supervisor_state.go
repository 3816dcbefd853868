package agents

import (
	"regexp"
	"strings"

	"deepresearch/internal/llm"
)

// SupervisorState tracks the lead researcher's progress through the
// diffusion loop: the evolving draft, accumulated notes, and dedup state.
type SupervisorState struct {
	Messages      []llm.Message
	ResearchBrief string
	Notes         []string
	RawNotes      []string
	DraftReport   string
	Iterations    int
	VisitedURLs   map[string]bool
	SubInsights   []SubInsight
}

// NewSupervisorState creates a new supervisor state for a research brief.
func NewSupervisorState(researchBrief string) *SupervisorState {
	return &SupervisorState{
		ResearchBrief: researchBrief,
		Notes:         make([]string, 0),
		RawNotes:      make([]string, 0),
		VisitedURLs:   make(map[string]bool),
		SubInsights:   make([]SubInsight, 0),
	}
}

func (s *SupervisorState) AddNote(note string)    { s.Notes = append(s.Notes, note) }
func (s *SupervisorState) AddRawNote(note string) { s.RawNotes = append(s.RawNotes, note) }
func (s *SupervisorState) UpdateDraft(draft string) { s.DraftReport = draft }
func (s *SupervisorState) IncrementIteration()    { s.Iterations++ }
func (s *SupervisorState) AddMessage(msg llm.Message) { s.Messages = append(s.Messages, msg) }

func (s *SupervisorState) AddVisitedURLs(urls []string) {
	if s.VisitedURLs == nil {
		s.VisitedURLs = make(map[string]bool)
	}
	for _, url := range urls {
		s.VisitedURLs[url] = true
	}
}

func (s *SupervisorState) AddSubInsights(insights []SubInsight) {
	s.SubInsights = append(s.SubInsights, insights...)
}

// ExtractURLs extracts deduplicated, punctuation-trimmed URLs from content.
func ExtractURLs(content string) []string {
	urlRegex := regexp.MustCompile(`https?://[^\s\]\)]+`)
	matches := urlRegex.FindAllString(content, -1)

	seen := make(map[string]bool)
	var urls []string
	for _, url := range matches {
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	return urls
}
