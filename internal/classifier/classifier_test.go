package classifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/types"
)

func TestHeuristicKeywordScoring(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		headers  []string
		want     types.ReportType
		wantConf int
	}{
		{"quality file name", "Quality_Report_Jan.csv", []string{"Agent", "Score"}, types.ReportQuality, 70},
		{"aht header", "upload.csv", []string{"Agent", "AHT"}, types.ReportHandleTime, 70},
		{"handling time", "handling time week 3.csv", nil, types.ReportHandleTime, 70},
		{"srr header", "data.csv", []string{"Agent", "SRR"}, types.ReportRetentionRate, 70},
		{"save keyword", "save rates.csv", nil, types.ReportRetentionRate, 70},
		{"voc header", "upload.csv", []string{"Agent", "VOC Score"}, types.ReportCustomerVoice, 70},
		{"hold", "hold times.csv", nil, types.ReportHoldTime, 70},
		{"audit", "audit_march.csv", nil, types.ReportAudit, 70},
		{"no hit", "mystery.csv", []string{"Col1", "Col2"}, types.ReportUnknown, 50},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := h.Classify(context.Background(), tt.fileName, tt.headers, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if batch.ReportType != tt.want {
				t.Errorf("expected %s, got %s", tt.want, batch.ReportType)
			}
			if batch.Confidence != tt.wantConf {
				t.Errorf("expected confidence %d, got %d", tt.wantConf, batch.Confidence)
			}
		})
	}
}

func TestHeuristicColumnDiscovery(t *testing.T) {
	h := NewHeuristic()
	headers := []string{"Agent Name", "Date", "Quality"}
	rows := [][]string{
		{"John Smith", "2025-01-15", "92"},
		{"Maria Garcia", "2025-01-16", "88"},
		{"John Smith", "2025-01-14", "90"},
		{"", "2025-01-17", "85"},
	}

	batch, err := h.Classify(context.Background(), "quality.csv", headers, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.DetectedColumns["Agent Name"] != "agent_name" {
		t.Errorf("agent column not detected: %v", batch.DetectedColumns)
	}
	if batch.DetectedColumns["Date"] != "date" {
		t.Errorf("date column not detected: %v", batch.DetectedColumns)
	}
	if len(batch.AgentsFound) != 2 {
		t.Errorf("expected 2 distinct agents, got %v", batch.AgentsFound)
	}

	// Sample-order range, not min/max: 2025-01-14 is the true minimum
	// but 2025-01-15 was observed first
	if len(batch.DateRange) != 2 || batch.DateRange[0] != "2025-01-15" || batch.DateRange[1] != "2025-01-17" {
		t.Errorf("unexpected date range: %v", batch.DateRange)
	}
}

func TestHeuristicEmptyAgentColumnIssue(t *testing.T) {
	h := NewHeuristic()
	batch, err := h.Classify(context.Background(), "quality.csv",
		[]string{"Agent", "Quality"},
		[][]string{{"", "90"}, {"", "85"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Issues) == 0 {
		t.Fatal("expected an issue for empty agent column")
	}
}

func TestHeuristicUnparseableDateIssue(t *testing.T) {
	h := NewHeuristic()
	batch, err := h.Classify(context.Background(), "quality.csv",
		[]string{"Agent", "Date"},
		[][]string{{"John Smith", "not-a-date"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, issue := range batch.Issues {
		if strings.Contains(issue, "not-a-date") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unparseable date issue, got %v", batch.Issues)
	}
}

// fakeDoer returns a canned response or error
type fakeDoer struct {
	status int
	body   string
	err    error
}

func (f *fakeDoer) Do(*http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
	}, nil
}

func TestRemoteClassifyValidResponse(t *testing.T) {
	r := NewRemote("http://classifier.local/v1/classify", &fakeDoer{
		status: http.StatusOK,
		body:   `{"reportType":"quality","confidence":88,"detectedColumns":{"Agent":"agent_name"}}`,
	})

	batch, err := r.Classify(context.Background(), "q.csv", []string{"Agent"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.ReportType != types.ReportQuality || batch.Confidence != 88 {
		t.Errorf("unexpected batch: %+v", batch)
	}
}

func TestRemoteClassifyInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		doer *fakeDoer
	}{
		{"transport error", &fakeDoer{err: errors.New("connection refused")}},
		{"bad status", &fakeDoer{status: http.StatusBadGateway, body: "upstream down"}},
		{"unparseable body", &fakeDoer{status: http.StatusOK, body: "not json"}},
		{"missing report type", &fakeDoer{status: http.StatusOK, body: `{"confidence":70}`}},
		{"bad report type", &fakeDoer{status: http.StatusOK, body: `{"reportType":"bogus","confidence":70}`}},
		{"confidence out of range", &fakeDoer{status: http.StatusOK, body: `{"reportType":"quality","confidence":150}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRemote("http://classifier.local/v1/classify", tt.doer)
			if _, err := r.Classify(context.Background(), "q.csv", nil, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFallbackDegradesToHeuristic(t *testing.T) {
	remote := NewRemote("http://classifier.local/v1/classify", &fakeDoer{err: errors.New("connection refused")})
	f := NewFallback(remote, NewHeuristic(), zerolog.Nop())

	batch, err := f.Classify(context.Background(), "audit_week.csv", []string{"Agent", "Score"}, nil)
	if err != nil {
		t.Fatalf("fallback must always produce a result, got %v", err)
	}
	if batch.ReportType != types.ReportAudit {
		t.Errorf("expected audit from heuristic, got %s", batch.ReportType)
	}
	if batch.Confidence != 70 {
		t.Errorf("expected heuristic confidence 70, got %d", batch.Confidence)
	}
}

func TestFallbackPrefersRemote(t *testing.T) {
	remote := NewRemote("http://classifier.local/v1/classify", &fakeDoer{
		status: http.StatusOK,
		body:   `{"reportType":"hold_time","confidence":93}`,
	})
	f := NewFallback(remote, NewHeuristic(), zerolog.Nop())

	batch, err := f.Classify(context.Background(), "quality.csv", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.ReportType != types.ReportHoldTime || batch.Confidence != 93 {
		t.Errorf("remote result not used: %+v", batch)
	}
}
