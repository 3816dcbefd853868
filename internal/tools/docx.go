package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXReadTool extracts text content from DOCX files.
type DOCXReadTool struct{}

// NewDOCXReadTool creates a DOCX reading tool.
func NewDOCXReadTool() *DOCXReadTool {
	return &DOCXReadTool{}
}

func (t *DOCXReadTool) Name() string { return "read_docx" }

func (t *DOCXReadTool) Description() string {
	return `Extract text from a DOCX (Word) file. Args: {"path": "/path/to/file.docx"}`
}

func (t *DOCXReadTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("read_docx requires a 'path' argument")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", path)
	}

	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	defer r.Close()

	content := collapseBlankLines(r.Editable().GetContent())
	return truncateText(content, maxExtractedChars), nil
}

// collapseBlankLines drops empty lines and rejoins the remainder as
// paragraphs, normalizing whatever line spacing the source document used.
func collapseBlankLines(s string) string {
	var paragraphs []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
