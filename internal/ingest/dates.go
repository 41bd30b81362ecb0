package ingest

import (
	"fmt"
	"regexp"
	"time"
)

// dateLike matches cells worth attempting date normalization on:
// two separators with digit groups, e.g. 3/14/2025 or 2025-03-14.
var dateLike = regexp.MustCompile(`^\d{1,4}[-/]\d{1,2}[-/]\d{1,4}$`)

// isoDate matches an already-normalized YYYY-MM-DD value
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// genericLayouts are tried in order when a date cell fits neither the
// ISO form nor the positional US forms.
var genericLayouts = []string{
	"2006/01/02",
	"1/2/2006",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
	time.RFC3339,
}

// NormalizeDate converts a date cell to YYYY-MM-DD. Values already in
// that form pass through; MM/DD/YYYY and MM-DD-YYYY are reinterpreted
// by position; anything else goes through generic parsing. The error
// carries the original value so callers can keep it with a warning.
func NormalizeDate(cell string) (string, error) {
	if isoDate.MatchString(cell) {
		if _, err := time.Parse("2006-01-02", cell); err == nil {
			return cell, nil
		}
	}

	for _, layout := range []string{"01/02/2006", "01-02-2006"} {
		if t, err := time.Parse(layout, cell); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	return "", fmt.Errorf("unparseable date %q", cell)
}
