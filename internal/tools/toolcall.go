package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ToolCall represents a parsed tool invocation from LLM response text.
// Tool calls use XML-style tags: <tool name="toolname">{"arg": "value"}</tool>
type ToolCall struct {
	Tool string
	Args map[string]interface{}
}

var toolCallRegex = regexp.MustCompile(`(?s)<tool\s+name="([^"]+)">\s*(\{.*?\})\s*</tool>`)

// ParseToolCalls extracts every tool call found in an LLM response. Calls
// whose argument payload isn't valid JSON are silently skipped rather than
// failing the whole parse.
func ParseToolCalls(content string) []ToolCall {
	matches := toolCallRegex.FindAllStringSubmatch(content, -1)
	var calls []ToolCall

	for _, match := range matches {
		if len(match) < 3 {
			continue
		}

		var args map[string]interface{}
		if err := json.Unmarshal([]byte(match[2]), &args); err != nil {
			continue
		}

		calls = append(calls, ToolCall{Tool: match[1], Args: args})
	}

	return calls
}

// HasToolCall reports whether the named tool was invoked anywhere in content.
func HasToolCall(content, toolName string) bool {
	for _, call := range ParseToolCalls(content) {
		if call.Tool == toolName {
			return true
		}
	}
	return false
}

// FilterThinkToolCalls strips think-tool markup and its acknowledgement lines
// from content, used when a sub-researcher's transcript is compressed so
// reflections don't pollute the compressed findings.
func FilterThinkToolCalls(content string) string {
	thinkRegex := regexp.MustCompile(`(?s)<tool\s+name="think">\s*\{[^}]*\}\s*</tool>`)
	filtered := thinkRegex.ReplaceAllString(content, "")

	lines := strings.Split(filtered, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Reflection recorded:") {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// TruncateString truncates s to its first maxLen bytes, appending an
// ellipsis when truncated.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ThinkTool records strategic reflection. It performs no action beyond
// acknowledging the reflection text; the value is in forcing the calling
// agent to externalize its reasoning into the transcript.
type ThinkTool struct{}

var _ Tool = (*ThinkTool)(nil)

func (t *ThinkTool) Name() string { return "think" }

func (t *ThinkTool) Description() string {
	return `Strategic reflection on research progress. Use after each search to analyze results and plan next steps.
Args: {"reflection": "Your detailed reflection on findings, gaps, and next steps"}`
}

func (t *ThinkTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	reflection, ok := args["reflection"].(string)
	if !ok || reflection == "" {
		return "Reflection recorded.", nil
	}
	return fmt.Sprintf("Reflection recorded: %s", TruncateString(reflection, 100)), nil
}

// ResearchCompleteTool signals that a sub-researcher or supervisor considers
// its findings sufficient to stop iterating.
type ResearchCompleteTool struct{}

var _ Tool = (*ResearchCompleteTool)(nil)

func (t *ResearchCompleteTool) Name() string { return "research_complete" }

func (t *ResearchCompleteTool) Description() string {
	return `Signal that research is complete. Use only when findings are comprehensive.
CRITICAL: Do not call this based on draft report appearance - only when research findings are complete.
Args: {}`
}

func (t *ResearchCompleteTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return "Research marked as complete. Proceeding to final report generation.", nil
}
