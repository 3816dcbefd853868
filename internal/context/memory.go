package context

import (
	"fmt"
	"time"

	"deepresearch/internal/llm"
)

// estimateTokens is a cheap chars/4 approximation; good enough for deciding
// when to fold, not meant to match any particular tokenizer.
func estimateTokens(s string) int {
	return len(s) / 4
}

// truncate shortens s to at most n bytes, appending an ellipsis when content
// was actually cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// BuildMessages assembles the message list for the next LLM call: system
// prompt, then summaries coarsest-first (so the model reads broad context
// before fine detail), then a tool-history digest, then raw working memory,
// then the caller's current query.
func (m *Manager) BuildMessages(systemPrompt, userQuery string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	for level := len(m.summaries) - 1; level >= 0; level-- {
		if s := m.summaries[level]; s.Content != "" {
			messages = append(messages, llm.Message{
				Role:    "system",
				Content: fmt.Sprintf("[Research Context L%d]\n%s", level, s.Content),
			})
		}
	}

	if toolDigest := m.formatToolMemory(); toolDigest != "" {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: "[Tool History]\n" + toolDigest,
		})
	}

	for _, turn := range m.workingMemory {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	if userQuery != "" {
		messages = append(messages, llm.Message{Role: "user", Content: userQuery})
	}

	return messages
}

// AddInteraction appends a turn to working memory, then evicts the oldest
// turns FIFO-style once the configured window is exceeded.
func (m *Manager) AddInteraction(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turnNumber++
	tokens := estimateTokens(content)

	m.workingMemory = append(m.workingMemory, Interaction{
		Role:      role,
		Content:   content,
		Tokens:    tokens,
		TurnNum:   m.turnNumber,
		Timestamp: time.Now(),
	})
	m.currentTokens += tokens

	for len(m.workingMemory) > m.workingMemSize {
		evicted := m.workingMemory[0]
		m.workingMemory = m.workingMemory[1:]
		m.currentTokens -= evicted.Tokens
	}
}

// AddToolResult folds one more tool invocation into that tool's running
// summary, merging in only the findings not already recorded.
func (m *Manager) AddToolResult(tool, result string, findings []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.toolMemory[tool]
	ts.Tool = tool
	ts.CallCount++
	ts.LastResult = truncate(result, 500)
	ts.KeyFindings = mergeFindings(ts.KeyFindings, findings)
	m.toolMemory[tool] = ts

	m.recalculateTokens()
}

// mergeFindings appends entries from add not already present in existing,
// preserving existing's order.
func mergeFindings(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f] = true
	}
	for _, f := range add {
		if !seen[f] {
			existing = append(existing, f)
			seen[f] = true
		}
	}
	return existing
}

// formatToolMemory renders a one-paragraph-per-tool digest of everything
// recorded via AddToolResult. Caller must hold at least a read lock.
func (m *Manager) formatToolMemory() string {
	if len(m.toolMemory) == 0 {
		return ""
	}
	var out string
	for _, ts := range m.toolMemory {
		out += fmt.Sprintf("- %s: called %d times\n", ts.Tool, ts.CallCount)
		if len(ts.KeyFindings) > 0 {
			out += "  Key findings:\n"
			for _, f := range ts.KeyFindings {
				out += fmt.Sprintf("    * %s\n", truncate(f, 100))
			}
		}
	}
	return out
}

// WorkingMemorySize returns the number of turns currently held uncompressed.
func (m *Manager) WorkingMemorySize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workingMemory)
}

// WorkingMemoryCapacity returns the configured working-memory window size.
func (m *Manager) WorkingMemoryCapacity() int {
	return m.workingMemSize
}

// TokenUsagePercent returns current token usage as a percentage of budget.
func (m *Manager) TokenUsagePercent() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxTokens == 0 {
		return 0
	}
	return float64(m.currentTokens) / float64(m.maxTokens) * 100
}
