package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestIngestTabDelimitedWithHeader(t *testing.T) {
	text := strings.Join([]string{
		"Agent Name\tDate\tQuality\tAHT\tSRR\tVOC",
		"John Smith\t2025-01-15\t92\t480\t85\t90",
		"",
		"Maria Garcia\t2025-01-15\t88\t510\t80\t87",
		"Mike Jones\t2025-01-15\t95\t450\t90\t93",
	}, "\n")

	result, err := IngestText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HadHeader {
		t.Error("expected header to be detected")
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}
	if len(result.Header) != 6 {
		t.Errorf("expected 6 header columns, got %d", len(result.Header))
	}
	if result.Rows[0].Cells[0] != "John Smith" {
		t.Errorf("unexpected first cell: %q", result.Rows[0].Cells[0])
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a header warning")
	}
}

func TestIngestCommaQuoted(t *testing.T) {
	result, err := IngestText(`"Smith, John",2025-01-01,90`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	cells := result.Rows[0].Cells
	if len(cells) != 3 {
		t.Fatalf("expected 3 cells, got %d: %v", len(cells), cells)
	}
	if cells[0] != "Smith, John" {
		t.Errorf("embedded comma split incorrectly: %q", cells[0])
	}
	if cells[1] != "2025-01-01" {
		t.Errorf("expected date passthrough, got %q", cells[1])
	}
}

func TestIngestDoubledQuoteEscape(t *testing.T) {
	result, err := IngestText(`"Robert ""Bob"" Lee",88`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rows[0].Cells[0] != `Robert "Bob" Lee` {
		t.Errorf("doubled quote not unescaped: %q", result.Rows[0].Cells[0])
	}
}

func TestIngestDateNormalization(t *testing.T) {
	text := strings.Join([]string{
		"John Smith,03/14/2025,90",
		"Maria Garcia,03-15-2025,85",
		"Mike Jones,2025/03/16,88",
		"Sarah Connor,99/99/9999,70",
	}, "\n")

	result, err := IngestText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Rows[0].Cells[1]; got != "2025-03-14" {
		t.Errorf("MM/DD/YYYY: got %q", got)
	}
	if got := result.Rows[1].Cells[1]; got != "2025-03-15" {
		t.Errorf("MM-DD-YYYY: got %q", got)
	}
	if got := result.Rows[2].Cells[1]; got != "2025-03-16" {
		t.Errorf("generic: got %q", got)
	}
	// Unparseable date keeps original value with a warning
	if got := result.Rows[3].Cells[1]; got != "99/99/9999" {
		t.Errorf("unparseable date rewritten: %q", got)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "99/99/9999") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected warning about unparseable date, got %v", result.Warnings)
	}
}

func TestIngestMalformedLineContinues(t *testing.T) {
	text := strings.Join([]string{
		"John Smith,90",
		`"unterminated,80`,
		"Maria Garcia,85",
	}, "\n")

	result, err := IngestText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "line 2") {
		t.Errorf("error should name line 2: %q", result.Errors[0])
	}
}

func TestIngestZeroRowsFails(t *testing.T) {
	_, err := IngestText("\n\n  \n")
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	_, err = IngestText(`"bad` + "\n" + `"also bad`)
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows for all-malformed input, got %v", err)
	}
}

func TestIngestGrid(t *testing.T) {
	grid := [][]string{
		{"Agent", "Date", "Quality"},
		{"John Smith", "01/15/2025", "92"},
		{"", "", ""},
		{"Maria Garcia", "2025-01-15"},
	}

	result, err := IngestGrid(grid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HadHeader {
		t.Error("expected header detection on grid input")
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Cells[1] != "2025-01-15" {
		t.Errorf("grid date not normalized: %q", result.Rows[0].Cells[1])
	}

	// Ragged row: missing trailing cell reads as absent
	if _, ok := Cell(result.Rows[1], 2); ok {
		t.Error("expected missing trailing cell to be absent")
	}
	if v, ok := Cell(result.Rows[1], 0); !ok || v != "Maria Garcia" {
		t.Errorf("Cell(0) = %q, %v", v, ok)
	}
}
