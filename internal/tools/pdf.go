package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxExtractedChars = 100000

// PDFReadTool extracts text content from PDF files, stopping after maxPages
// pages to keep responses usable even against large documents.
type PDFReadTool struct {
	maxPages int
}

// NewPDFReadTool creates a PDF reading tool capped at the first 50 pages.
func NewPDFReadTool() *PDFReadTool {
	return &PDFReadTool{maxPages: 50}
}

func (t *PDFReadTool) Name() string { return "read_pdf" }

func (t *PDFReadTool) Description() string {
	return `Extract text from a PDF file. Args: {"path": "/path/to/file.pdf"}`
}

func (t *PDFReadTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("read_pdf requires a 'path' argument")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	text, pagesRead := extractPDFPages(r, t.maxPages)
	if pagesRead < r.NumPage() {
		fmt.Fprintf(text, "\n...[truncated after %d of %d pages]\n", pagesRead, r.NumPage())
	}

	return truncateText(text.String(), maxExtractedChars), nil
}

// extractPDFPages walks up to limit pages (0 meaning no limit), concatenating
// their plain text. Pages that fail to render are skipped rather than
// aborting the whole extraction.
func extractPDFPages(r *pdf.Reader, limit int) (*strings.Builder, int) {
	numPages := r.NumPage()
	if limit <= 0 || limit > numPages {
		limit = numPages
	}

	var text strings.Builder
	for i := 1; i <= limit; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		fmt.Fprintf(&text, "--- Page %d ---\n%s\n\n", i, content)
	}
	return &text, limit
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n...[truncated]"
}
