// Package report writes completed research reports to disk as plain
// markdown, one file per session under the configured vault directory.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"deepresearch/internal/agents"

	"gopkg.in/yaml.v3"
)

// Writer persists completed reports to a flat markdown vault.
type Writer struct {
	vaultPath string
}

// NewWriter creates a writer rooted at vaultPath, creating the directory if
// it doesn't already exist.
func NewWriter(vaultPath string) *Writer {
	os.MkdirAll(vaultPath, 0755)
	return &Writer{vaultPath: vaultPath}
}

// Write renders report for sessionID as a single markdown file and returns
// its path. Re-running with the same sessionID overwrites the prior file,
// matching the aggregate's own single-terminal-Report semantics.
func (w *Writer) Write(sessionID, query string, r *agents.Report) (string, error) {
	frontmatter := map[string]interface{}{
		"session_id": sessionID,
		"query":      query,
		"generated":  time.Now().Format(time.RFC3339),
		"sources":    len(r.Citations),
	}

	fm, err := yaml.Marshal(frontmatter)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(fmt.Sprintf("# %s\n\n", r.Title))

	if r.Summary != "" {
		buf.WriteString(r.Summary)
		buf.WriteString("\n\n")
	}

	buf.WriteString(r.FullContent)

	buf.WriteString("\n\n## Sources\n\n")
	if len(r.Citations) == 0 {
		buf.WriteString("*No sources collected*\n")
	} else {
		for _, c := range r.Citations {
			title := c.Title
			if title == "" {
				title = c.URL
			}
			buf.WriteString(fmt.Sprintf("%d. [%s](%s)\n", c.ID, title, c.URL))
		}
	}

	path := filepath.Join(w.vaultPath, sessionID+".md")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return path, nil
}

// Path returns the path a session's report would be written to, without
// writing it.
func (w *Writer) Path(sessionID string) string {
	return filepath.Join(w.vaultPath, sessionID+".md")
}
