package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// DocumentReadTool reads documents of various formats (PDF, DOCX, XLSX),
// auto-detecting the format from the file extension.
type DocumentReadTool struct {
	byExt map[string]Tool
}

// NewDocumentReadTool creates a document reading tool covering every format
// this package knows how to extract text from.
func NewDocumentReadTool() *DocumentReadTool {
	return &DocumentReadTool{
		byExt: map[string]Tool{
			".pdf":  NewPDFReadTool(),
			".docx": NewDOCXReadTool(),
			".xlsx": NewXLSXReadTool(),
		},
	}
}

func (t *DocumentReadTool) Name() string { return "read_document" }

func (t *DocumentReadTool) Description() string {
	return `Read and extract text from a document file (PDF, DOCX, or XLSX - auto-detected from extension).
Args: {"path": "/path/to/document.pdf"}`
}

func (t *DocumentReadTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("read_document requires a 'path' argument")
	}

	ext := strings.ToLower(filepath.Ext(path))
	tool, ok := t.byExt[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file format: %s (supported: .pdf, .docx, .xlsx)", ext)
	}
	return tool.Execute(ctx, args)
}
