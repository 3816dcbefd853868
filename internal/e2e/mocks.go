package e2e

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
)

// MockLLMClient replays a fixed sequence of responses, one per Chat call,
// repeating the final response once the sequence is exhausted.
type MockLLMClient struct {
	responses []string
	callCount int
}

// NewMockLLMClient creates a mock client that answers Chat calls in order.
func NewMockLLMClient(responses ...string) *MockLLMClient {
	return &MockLLMClient{responses: responses}
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	var content string
	switch {
	case m.callCount < len(m.responses):
		content = m.responses[m.callCount]
	case len(m.responses) > 0:
		content = m.responses[len(m.responses)-1]
	default:
		content = "[]"
	}
	m.callCount++

	resp := &llm.ChatResponse{
		Choices: []struct {
			Message llm.Message `json:"message"`
		}{
			{Message: llm.Message{Role: "assistant", Content: content}},
		},
	}
	resp.Usage.PromptTokens = 10
	resp.Usage.CompletionTokens = 5
	resp.Usage.TotalTokens = 15
	return resp, nil
}

func (m *MockLLMClient) StreamChat(ctx context.Context, messages []llm.Message, handler func(chunk string) error) error {
	return nil
}

func (m *MockLLMClient) SetModel(model string) {}
func (m *MockLLMClient) GetModel() string      { return "test-model" }

// MockToolExecutor returns canned results keyed by tool name, or an empty
// string for any tool it hasn't been told about.
type MockToolExecutor struct {
	results map[string]string
}

// NewMockToolExecutor creates an executor with no canned results; Execute
// returns "" for every tool unless results are populated directly.
func NewMockToolExecutor() *MockToolExecutor {
	return &MockToolExecutor{results: make(map[string]string)}
}

func (m *MockToolExecutor) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	return m.results[name], nil
}

func (m *MockToolExecutor) ToolNames() []string {
	return []string{"search", "fetch", "read_document", "analyze_csv", "think"}
}

// testConfig builds a config pointed at a temporary state directory so tests
// never touch the real filesystem locations Load() would default to.
func testConfig() *config.Config {
	tmpDir, _ := os.MkdirTemp("", "deepresearch-e2e-*")
	return &config.Config{
		VaultPath:      filepath.Join(tmpDir, "vault"),
		HistoryFile:    filepath.Join(tmpDir, "history"),
		StateFile:      filepath.Join(tmpDir, "state"),
		EventStoreDir:  filepath.Join(tmpDir, "events"),
		WorkerTimeout:  30 * time.Minute,
		RequestTimeout: 5 * time.Minute,
		MaxIterations:  20,
		MaxTokens:      50000,
		MaxWorkers:     3,
		Model:          "test-model",
	}
}
