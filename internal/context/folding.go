package context

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"deepresearch/internal/llm"
)

// FoldType selects which compression pass Fold performs.
type FoldType int

const (
	FoldNone     FoldType = iota // no compression needed
	FoldGranular                 // working memory -> L0 summary
	FoldDeep                     // L0..N summaries -> N+1
)

var foldTypeNames = map[FoldType]string{
	FoldNone:     "NONE",
	FoldGranular: "GRANULAR",
	FoldDeep:     "DEEP",
}

func (f FoldType) String() string {
	if name, ok := foldTypeNames[f]; ok {
		return name
	}
	return "UNKNOWN"
}

// FoldDirective is the outcome of a folding decision: what to do, and
// (for FoldDeep) how far up the summary stack to consolidate.
type FoldDirective struct {
	Type        FoldType
	TargetLevel int
	Rationale   string
}

// ShouldFold reports whether accumulated tokens have crossed the configured
// fold threshold.
func (m *Manager) ShouldFold() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxTokens == 0 {
		return false
	}
	return float64(m.currentTokens)/float64(m.maxTokens) >= m.foldThreshold
}

// DecideFolding asks the LLM which compression pass best fits the current
// context state. Any failure (no client, request error, unparseable
// response) falls back to FoldGranular rather than blocking the caller.
func (m *Manager) DecideFolding(ctx context.Context) (FoldDirective, error) {
	m.mu.RLock()
	prompt := m.buildFoldingPrompt()
	m.mu.RUnlock()

	if m.client == nil {
		return fallbackDirective("no client"), nil
	}

	resp, err := m.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: foldingSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return fallbackDirective("LLM error"), nil
	}

	m.mu.Lock()
	m.addCostUnlocked(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	m.mu.Unlock()

	if len(resp.Choices) == 0 {
		return fallbackDirective("empty response"), nil
	}
	return m.parseFoldingResponse(resp.Choices[0].Message.Content)
}

func fallbackDirective(reason string) FoldDirective {
	return FoldDirective{Type: FoldGranular, Rationale: "default (" + reason + ")"}
}

// Fold executes the compression pass named by directive.
func (m *Manager) Fold(ctx context.Context, directive FoldDirective) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch directive.Type {
	case FoldGranular:
		return m.foldGranular(ctx)
	case FoldDeep:
		return m.foldDeep(ctx, directive.TargetLevel)
	default:
		return nil
	}
}

// foldGranular compresses every pending working-memory turn into a single
// block appended to the L0 summary, then empties working memory.
func (m *Manager) foldGranular(ctx context.Context) error {
	if len(m.workingMemory) == 0 {
		return nil
	}

	raw := m.formatWorkingMemory()
	summary, err := m.summarize(ctx, raw, modeCondense)
	if err != nil {
		summary = truncate(raw, 1000)
	}

	turns := make([]int, 0, len(m.workingMemory))
	for _, turn := range m.workingMemory {
		turns = append(turns, turn.TurnNum)
	}

	l0 := &m.summaries[0]
	if l0.Content != "" {
		l0.Content += "\n\n" + summary
	} else {
		l0.Content = summary
	}
	l0.TokenCount = estimateTokens(l0.Content)
	l0.CoveredTurns = append(l0.CoveredTurns, turns...)
	l0.Timestamp = m.workingMemory[len(m.workingMemory)-1].Timestamp

	m.workingMemory = m.workingMemory[:0]
	m.recalculateTokens()
	return nil
}

// foldDeep merges summary levels [0, targetLevel] into targetLevel+1,
// clearing the levels it consumed.
func (m *Manager) foldDeep(ctx context.Context, targetLevel int) error {
	if targetLevel < 0 || targetLevel >= len(m.summaries)-1 {
		return fmt.Errorf("invalid target level: %d", targetLevel)
	}

	var blocks []string
	var turns []int
	for level := 0; level <= targetLevel; level++ {
		if s := m.summaries[level]; s.Content != "" {
			blocks = append(blocks, fmt.Sprintf("[Level %d]\n%s", level, s.Content))
			turns = append(turns, s.CoveredTurns...)
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	combined := strings.Join(blocks, "\n\n---\n\n")
	consolidated, err := m.summarize(ctx, combined, modeConsolidate)
	if err != nil {
		consolidated = truncate(combined, 2000)
	}

	for level := 0; level <= targetLevel; level++ {
		m.summaries[level] = Summary{Level: level}
	}

	nextLevel := targetLevel + 1
	if nextLevel < len(m.summaries) {
		next := &m.summaries[nextLevel]
		if next.Content != "" {
			next.Content += "\n\n" + consolidated
		} else {
			next.Content = consolidated
		}
		next.TokenCount = estimateTokens(next.Content)
		next.CoveredTurns = append(next.CoveredTurns, turns...)
	}

	m.recalculateTokens()
	return nil
}

func (m *Manager) formatWorkingMemory() string {
	parts := make([]string, 0, len(m.workingMemory))
	for _, turn := range m.workingMemory {
		parts = append(parts, fmt.Sprintf("[%s]: %s", turn.Role, turn.Content))
	}
	return strings.Join(parts, "\n\n")
}

// summarizeMode selects which prompt template summarize uses.
type summarizeMode int

const (
	modeCondense summarizeMode = iota
	modeConsolidate
)

var summarizePrompts = map[summarizeMode]string{
	modeCondense: `Condense the following research interactions into a brief summary preserving key facts, findings, and decisions. Be concise but retain important details.

Content:
%s

Summary:`,
	modeConsolidate: `Consolidate these research summaries into a higher-level overview. Merge related information, remove redundancy, and preserve the most important insights.

Summaries:
%s

Consolidated overview:`,
}

// summarize asks the LLM to compress content under the given mode. With no
// client configured it degrades to a plain truncation.
func (m *Manager) summarize(ctx context.Context, content string, mode summarizeMode) (string, error) {
	if m.client == nil {
		return truncate(content, 500), nil
	}

	template, ok := summarizePrompts[mode]
	if !ok {
		template = "Summarize:\n%s"
	}
	prompt := fmt.Sprintf(template, content)

	resp, err := m.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	m.addCostUnlocked(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from LLM")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildFoldingPrompt describes the current token pressure and summary
// occupancy so the LLM can pick a folding strategy. Caller holds the lock.
func (m *Manager) buildFoldingPrompt() string {
	var levels strings.Builder
	for i, s := range m.summaries {
		if s.Content != "" {
			fmt.Fprintf(&levels, "- Level %d: %d tokens, covers %d turns\n", i, s.TokenCount, len(s.CoveredTurns))
		} else {
			fmt.Fprintf(&levels, "- Level %d: empty\n", i)
		}
	}

	pct := 0.0
	if m.maxTokens > 0 {
		pct = float64(m.currentTokens) / float64(m.maxTokens) * 100
	}

	return fmt.Sprintf(`Current context state:
- Token usage: %d / %d (%.1f%%)
- Working memory: %d interactions
- Summary levels:
%s

Decide the optimal folding strategy.`, m.currentTokens, m.maxTokens, pct, len(m.workingMemory), levels.String())
}

var foldingJSONBlock = regexp.MustCompile(`(?s)\{.*\}`)

// parseFoldingResponse extracts the JSON object the LLM was asked to return
// and turns it into a FoldDirective, falling back to FoldGranular on any
// parse failure or unrecognized type.
func (m *Manager) parseFoldingResponse(content string) (FoldDirective, error) {
	block := foldingJSONBlock.FindString(content)
	if block == "" {
		return fallbackDirective("no JSON"), nil
	}

	var parsed struct {
		Type        string `json:"type"`
		TargetLevel int    `json:"target_level"`
		Rationale   string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return fallbackDirective("parse error"), nil
	}

	directive := FoldDirective{TargetLevel: parsed.TargetLevel, Rationale: parsed.Rationale}
	switch strings.ToUpper(parsed.Type) {
	case "NONE":
		directive.Type = FoldNone
	case "GRANULAR":
		directive.Type = FoldGranular
	case "DEEP":
		directive.Type = FoldDeep
	default:
		directive.Type = FoldGranular
		directive.Rationale = "default (unknown type: " + parsed.Type + ")"
	}
	return directive, nil
}

const foldingSystemPrompt = `You are a context management assistant. Analyze the current context state and decide the optimal folding strategy.

Options:
- NONE: Keep working memory as-is (use when plenty of token budget remains)
- GRANULAR: Compress recent interactions into fine-grained summary (use when working memory is full but summaries have room)
- DEEP: Consolidate multiple summary levels into coarser abstraction (use when completing a subtask or changing research direction)

Consider:
1. Current token usage percentage
2. How full the working memory is
3. Whether summaries at different levels have content
4. Whether the research is transitioning between phases

Respond with JSON only: {"type": "NONE|GRANULAR|DEEP", "target_level": 0-2, "rationale": "brief reason"}`
