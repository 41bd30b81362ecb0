// Package ingest parses delimited text and spreadsheet-shaped input
// into the normalized row model consumed by classification and name
// resolution. Malformed lines degrade to row-level errors; a batch only
// fails wholesale when no usable rows remain.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/kmerritt/scorecard/internal/types"
)

// ErrNoRows signals a batch with zero usable rows
var ErrNoRows = errors.New("no usable rows in input")

// headerKeywords mark a first line as a header when any of them appears
// case-insensitively.
var headerKeywords = []string{
	"agent", "name", "date", "quality",
	"aht", "handle", "srr", "save", "retention",
	"voc", "voice", "customer",
}

// Result is the outcome of one ingestion. Errors and Warnings are
// row-scoped, human-readable, and never abort the batch on their own.
type Result struct {
	Rows      []types.RawRow `json:"rows"`
	HadHeader bool           `json:"hadHeader"`
	Header    []string       `json:"header,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// IngestText parses delimited text. The delimiter is tab when the first
// line contains one, comma otherwise; comma splitting honors
// double-quoted fields with doubled-quote escapes.
func IngestText(text string) (Result, error) {
	var result Result

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	delimiter := ','
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.ContainsRune(line, '\t') {
			delimiter = '\t'
		}
		break
	}

	first := true
	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}

		cells, err := splitLine(line, delimiter)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			first = false
			continue
		}

		if first {
			first = false
			if looksLikeHeader(cells) {
				result.HadHeader = true
				result.Header = cells
				result.Warnings = append(result.Warnings, fmt.Sprintf("line %d treated as header", lineNo))
				continue
			}
		}

		normalizeDateCells(cells, lineNo, &result)
		result.Rows = append(result.Rows, types.RawRow{Index: lineNo, Cells: cells})
	}

	if len(result.Rows) == 0 {
		return result, fmt.Errorf("%w: %d errors", ErrNoRows, len(result.Errors))
	}
	return result, nil
}

// IngestGrid parses spreadsheet-shaped input: rows of already-split
// cells. Delimiter detection is skipped; everything else follows
// IngestText.
func IngestGrid(grid [][]string) (Result, error) {
	var result Result

	first := true
	for i, row := range grid {
		rowNo := i + 1
		if isBlankRow(row) {
			continue
		}

		cells := make([]string, len(row))
		copy(cells, row)

		if first {
			first = false
			if looksLikeHeader(cells) {
				result.HadHeader = true
				result.Header = cells
				result.Warnings = append(result.Warnings, fmt.Sprintf("row %d treated as header", rowNo))
				continue
			}
		}

		normalizeDateCells(cells, rowNo, &result)
		result.Rows = append(result.Rows, types.RawRow{Index: rowNo, Cells: cells})
	}

	if len(result.Rows) == 0 {
		return result, fmt.Errorf("%w: %d errors", ErrNoRows, len(result.Errors))
	}
	return result, nil
}

// Cell returns the cell at position idx of a row, tolerating ragged
// rows: a missing trailing cell reads as absent, not as an error.
func Cell(row types.RawRow, idx int) (string, bool) {
	if idx < 0 || idx >= len(row.Cells) {
		return "", false
	}
	return row.Cells[idx], true
}

func splitLine(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	cells, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("malformed line: %w", err)
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells, nil
}

func looksLikeHeader(cells []string) bool {
	for _, cell := range cells {
		lower := strings.ToLower(cell)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// normalizeDateCells rewrites date-looking cells to YYYY-MM-DD in
// place. An unparseable date keeps its original value and adds a
// row-level warning.
func normalizeDateCells(cells []string, lineNo int, result *Result) {
	for i, cell := range cells {
		if !dateLike.MatchString(cell) {
			continue
		}
		normalized, err := NormalizeDate(cell)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		cells[i] = normalized
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
