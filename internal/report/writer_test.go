package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deepresearch/internal/agents"
)

func TestWriteProducesMarkdownWithFrontmatterAndSources(t *testing.T) {
	vault := t.TempDir()
	w := NewWriter(vault)

	report := &agents.Report{
		Title:       "The State of Event Sourcing",
		Summary:     "A brief overview of the findings.",
		FullContent: "## Background\n\nEvent sourcing stores state as a log of events.",
		Citations: []agents.Citation{
			{ID: 1, URL: "https://example.com/a", Title: "Source A"},
			{ID: 2, URL: "https://example.com/b"},
		},
	}

	path, err := w.Write("session-123", "what is event sourcing", report)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if path != filepath.Join(vault, "session-123.md") {
		t.Errorf("unexpected path: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written report: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "---\n") {
		t.Error("expected report to start with YAML frontmatter delimiter")
	}
	if !strings.Contains(content, "session_id: session-123") {
		t.Error("expected frontmatter to include session_id")
	}
	if !strings.Contains(content, "# The State of Event Sourcing") {
		t.Error("expected title heading")
	}
	if !strings.Contains(content, "Event sourcing stores state as a log of events.") {
		t.Error("expected body content")
	}
	if !strings.Contains(content, "[Source A](https://example.com/a)") {
		t.Error("expected titled citation rendered as a markdown link")
	}
	if !strings.Contains(content, "[https://example.com/b](https://example.com/b)") {
		t.Error("expected untitled citation to fall back to its URL as the link text")
	}
}

func TestWriteWithNoCitations(t *testing.T) {
	vault := t.TempDir()
	w := NewWriter(vault)

	report := &agents.Report{
		Title:       "Empty Research",
		FullContent: "Nothing was found.",
	}

	path, err := w.Write("session-empty", "a topic with no sources", report)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written report: %v", err)
	}

	if !strings.Contains(string(data), "*No sources collected*") {
		t.Error("expected the no-sources placeholder")
	}
}

func TestWriteOverwritesExistingReport(t *testing.T) {
	vault := t.TempDir()
	w := NewWriter(vault)

	first := &agents.Report{Title: "First Draft", FullContent: "v1"}
	second := &agents.Report{Title: "Final Draft", FullContent: "v2"}

	path1, err := w.Write("session-rerun", "topic", first)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	path2, err := w.Write("session-rerun", "topic", second)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if path1 != path2 {
		t.Fatalf("expected re-running the same session to overwrite the same path, got %s and %s", path1, path2)
	}

	data, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "First Draft") {
		t.Error("expected the file to be overwritten, not appended to")
	}
}

func TestPathDoesNotWriteToDisk(t *testing.T) {
	vault := t.TempDir()
	w := NewWriter(vault)

	path := w.Path("session-never-written")
	if path != filepath.Join(vault, "session-never-written.md") {
		t.Errorf("unexpected path: %s", path)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected Path to not create a file on disk")
	}
}
