package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXReadTool extracts a textual preview from Excel workbooks, limited to
// the first few sheets/rows/columns to keep responses concise.
type XLSXReadTool struct {
	maxSheets       int
	maxRowsPerSheet int
	maxColsPerRow   int
}

// NewXLSXReadTool creates an XLSX reading tool with sane preview limits.
func NewXLSXReadTool() *XLSXReadTool {
	return &XLSXReadTool{
		maxSheets:       3,
		maxRowsPerSheet: 20,
		maxColsPerRow:   12,
	}
}

func (t *XLSXReadTool) Name() string { return "read_xlsx" }

func (t *XLSXReadTool) Description() string {
	return `Extract a textual summary from an Excel (.xlsx) workbook. Args: {"path": "/path/to/file.xlsx"}`
}

func (t *XLSXReadTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("read_xlsx requires a 'path' argument")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open XLSX: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Sprintf("Workbook %s contains no sheets.", filepath.Base(path)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Read document: %s\n", path)
	fmt.Fprintf(&b, "Document type: Excel Workbook (XLSX)\n")
	fmt.Fprintf(&b, "Workbook: %s\n", filepath.Base(path))
	fmt.Fprintf(&b, "Total sheets: %d\n\n", len(sheets))

	shown := t.maxSheets
	if shown <= 0 || shown > len(sheets) {
		shown = len(sheets)
	}

	for i := 0; i < shown; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t.writeSheetPreview(&b, f, i, sheets[i])
	}

	if shown < len(sheets) {
		fmt.Fprintf(&b, "...%d additional sheets not shown\n", len(sheets)-shown)
	}

	return truncateText(b.String(), maxExtractedChars), nil
}

func (t *XLSXReadTool) writeSheetPreview(b *strings.Builder, f *excelize.File, index int, sheetName string) {
	fmt.Fprintf(b, "=== Sheet %d: %s ===\n", index+1, sheetName)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		fmt.Fprintf(b, "error reading sheet: %v\n\n", err)
		return
	}
	if len(rows) == 0 {
		b.WriteString("(sheet is empty)\n\n")
		return
	}

	maxRows := t.maxRowsPerSheet
	if maxRows <= 0 || maxRows > len(rows) {
		maxRows = len(rows)
	}
	for i := 0; i < maxRows; i++ {
		fmt.Fprintf(b, "Row %d: %s\n", i+1, formatXLSXRow(rows[i], t.maxColsPerRow))
	}
	if maxRows < len(rows) {
		fmt.Fprintf(b, "...%d more rows not shown\n", len(rows)-maxRows)
	}
	b.WriteString("\n")
}

func formatXLSXRow(row []string, maxCols int) string {
	if len(row) == 0 {
		return "[empty row]"
	}

	n := len(row)
	if maxCols > 0 && maxCols < n {
		n = maxCols
	}

	cells := make([]string, n)
	for i := 0; i < n; i++ {
		if cell := strings.TrimSpace(row[i]); cell != "" {
			cells[i] = cell
		} else {
			cells[i] = " "
		}
	}

	line := strings.Join(cells, " | ")
	if maxCols > 0 && len(row) > maxCols {
		line += " | ..."
	}
	return line
}
