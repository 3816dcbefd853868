package tools

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// CSVAnalysisTool performs exploratory data analysis on CSV files: shape,
// per-column types, summary statistics, and value counts.
type CSVAnalysisTool struct {
	maxRows int
}

// NewCSVAnalysisTool creates a CSV analysis tool that analyzes at most the
// first 10,000 rows.
func NewCSVAnalysisTool() *CSVAnalysisTool {
	return &CSVAnalysisTool{maxRows: 10000}
}

func (t *CSVAnalysisTool) Name() string { return "analyze_csv" }

func (t *CSVAnalysisTool) Description() string {
	return `Analyze a CSV data file. Performs EDA including: shape, column types, summary statistics, missing values.
Args: {"path": "/path/to/file.csv", "goal": "optional analysis objective"}`
}

func (t *CSVAnalysisTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("analyze_csv requires a 'path' argument")
	}
	goal, _ := args["goal"].(string)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", path)
	}

	records, err := readCSV(path)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "Empty CSV file.", nil
	}

	headers := records[0]
	data := records[1:]
	if t.maxRows > 0 && len(data) > t.maxRows {
		data = data[:t.maxRows]
	}

	table := columnsOf(headers, data)

	var report strings.Builder
	fmt.Fprintf(&report, "# CSV Analysis: %s\n\n", path)
	if goal != "" {
		fmt.Fprintf(&report, "**Analysis Goal**: %s\n\n", goal)
	}
	writeShapeSection(&report, headers, records, data)
	writeColumnsSection(&report, headers, table)
	writeNumericSection(&report, headers, table)
	writeCategoricalSection(&report, headers, table)

	return report.String(), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return records, nil
}

// columnsOf transposes row-major data into one slice of values per header.
func columnsOf(headers []string, data [][]string) [][]string {
	table := make([][]string, len(headers))
	for i := range headers {
		table[i] = make([]string, len(data))
		for j, row := range data {
			if i < len(row) {
				table[i][j] = row[i]
			}
		}
	}
	return table
}

func writeShapeSection(report *strings.Builder, headers []string, records, data [][]string) {
	report.WriteString("## Shape\n")
	fmt.Fprintf(report, "- Rows: %d (showing first %d)\n", len(records)-1, len(data))
	fmt.Fprintf(report, "- Columns: %d\n\n", len(headers))
}

func writeColumnsSection(report *strings.Builder, headers []string, table [][]string) {
	report.WriteString("## Columns\n")
	report.WriteString("| Column | Type | Non-Null | Missing | Sample Values |\n")
	report.WriteString("|--------|------|----------|---------|---------------|\n")

	for i, header := range headers {
		colType, nonNull, missing := analyzeColumn(table[i])
		fmt.Fprintf(report, "| %s | %s | %d | %d | %s |\n",
			header, colType, nonNull, missing, getSampleValues(table[i], 3))
	}
	report.WriteString("\n")
}

func writeNumericSection(report *strings.Builder, headers []string, table [][]string) {
	report.WriteString("## Summary Statistics (Numeric Columns)\n")
	found := false
	for i, header := range headers {
		if !isNumericColumn(table[i]) {
			continue
		}
		found = true
		s := computeNumericStats(table[i])
		fmt.Fprintf(report, "### %s\n", header)
		fmt.Fprintf(report, "- Count: %d\n", s.count)
		fmt.Fprintf(report, "- Mean: %.4f\n", s.mean)
		fmt.Fprintf(report, "- Std: %.4f\n", s.std)
		fmt.Fprintf(report, "- Min: %.4f\n", s.min)
		fmt.Fprintf(report, "- 25%%: %.4f\n", s.q25)
		fmt.Fprintf(report, "- 50%% (Median): %.4f\n", s.median)
		fmt.Fprintf(report, "- 75%%: %.4f\n", s.q75)
		fmt.Fprintf(report, "- Max: %.4f\n\n", s.max)
	}
	if !found {
		report.WriteString("No numeric columns detected.\n\n")
	}
}

func writeCategoricalSection(report *strings.Builder, headers []string, table [][]string) {
	report.WriteString("## Categorical Column Value Counts\n")
	found := false
	for i, header := range headers {
		if isNumericColumn(table[i]) {
			continue
		}
		found = true
		fmt.Fprintf(report, "### %s\n", header)
		for _, vc := range getValueCounts(table[i], 10) {
			fmt.Fprintf(report, "- %s: %d\n", vc.value, vc.count)
		}
		report.WriteString("\n")
	}
	if !found {
		report.WriteString("No categorical columns detected.\n\n")
	}
}

func analyzeColumn(col []string) (colType string, nonNull, missing int) {
	for _, val := range col {
		if val == "" {
			missing++
		} else {
			nonNull++
		}
	}
	if isNumericColumn(col) {
		colType = "numeric"
	} else {
		colType = "string"
	}
	return
}

// isNumericColumn treats a column as numeric when more than 80% of its
// non-empty values parse as floats.
func isNumericColumn(col []string) bool {
	numeric, total := 0, 0
	for _, val := range col {
		if val == "" {
			continue
		}
		total++
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			numeric++
		}
	}
	if total == 0 {
		return false
	}
	return float64(numeric)/float64(total) > 0.8
}

func getSampleValues(col []string, n int) string {
	seen := make(map[string]bool)
	var samples []string
	for _, val := range col {
		if val == "" || seen[val] {
			continue
		}
		seen[val] = true
		samples = append(samples, val)
		if len(samples) >= n {
			break
		}
	}
	return strings.Join(samples, ", ")
}

type numericStats struct {
	count  int
	mean   float64
	std    float64
	min    float64
	q25    float64
	median float64
	q75    float64
	max    float64
}

func computeNumericStats(col []string) numericStats {
	var values []float64
	for _, val := range col {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return numericStats{}
	}

	mean, _ := stats.Mean(values)
	std, _ := stats.StandardDeviation(values)
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	median, _ := stats.Median(values)
	q25, _ := stats.Percentile(values, 25)
	q75, _ := stats.Percentile(values, 75)

	return numericStats{
		count:  len(values),
		mean:   mean,
		std:    std,
		min:    min,
		q25:    q25,
		median: median,
		q75:    q75,
		max:    max,
	}
}

type valueCount struct {
	value string
	count int
}

func getValueCounts(col []string, limit int) []valueCount {
	counts := make(map[string]int)
	for _, val := range col {
		if val != "" {
			counts[val]++
		}
	}

	result := make([]valueCount, 0, len(counts))
	for v, c := range counts {
		result = append(result, valueCount{value: v, count: c})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].count > result[j].count })

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
