// Package classifier assigns a report-type label to an uploaded batch.
// The remote implementation delegates to an external classification
// service; the heuristic implementation is the deterministic fallback
// that keeps classification available when that service is not.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmerritt/scorecard/internal/ingest"
	"github.com/kmerritt/scorecard/internal/types"
)

// Classifier labels a report from its file name, headers and sample
// rows. Implementations must always be paired behind Fallback so a
// classification result is always produced.
type Classifier interface {
	Classify(ctx context.Context, fileName string, headers []string, sampleRows [][]string) (types.ClassifiedBatch, error)
}

// typeKeywords map report types to their trigger keywords. Order
// matters: the first type with a hit wins.
var typeKeywords = []struct {
	reportType types.ReportType
	keywords   []string
}{
	{types.ReportQuality, []string{"quality"}},
	{types.ReportHandleTime, []string{"aht", "handling time", "handle time"}},
	{types.ReportRetentionRate, []string{"srr", "save"}},
	{types.ReportCustomerVoice, []string{"voc", "voice"}},
	{types.ReportHoldTime, []string{"hold"}},
	{types.ReportAudit, []string{"audit"}},
}

var agentColumnKeywords = []string{"agent", "name", "employee"}

// Heuristic is the deterministic keyword classifier
type Heuristic struct{}

// NewHeuristic creates the fallback classifier
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Classify scores each report type by substring match against the file
// name and headers. First hit wins at confidence 70; no hit yields
// unknown at 50. It never returns an error.
func (h *Heuristic) Classify(_ context.Context, fileName string, headers []string, sampleRows [][]string) (types.ClassifiedBatch, error) {
	haystack := strings.ToLower(fileName)
	for _, header := range headers {
		haystack += " " + strings.ToLower(header)
	}

	batch := types.ClassifiedBatch{
		ReportType:      types.ReportUnknown,
		Confidence:      50,
		DetectedColumns: map[string]string{},
	}
	for _, tk := range typeKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(haystack, kw) {
				batch.ReportType = tk.reportType
				batch.Confidence = 70
				break
			}
		}
		if batch.ReportType != types.ReportUnknown {
			break
		}
	}

	discoverColumns(&batch, headers, sampleRows)
	return batch, nil
}

// discoverColumns finds the agent-name and date columns and fills
// AgentsFound, DateRange and structural Issues.
func discoverColumns(batch *types.ClassifiedBatch, headers []string, sampleRows [][]string) {
	agentCol, dateCol := -1, -1
	for i, header := range headers {
		lower := strings.ToLower(header)
		if agentCol < 0 {
			for _, kw := range agentColumnKeywords {
				if strings.Contains(lower, kw) {
					agentCol = i
					batch.DetectedColumns[header] = "agent_name"
					break
				}
			}
		}
		if dateCol < 0 && strings.Contains(lower, "date") {
			dateCol = i
			batch.DetectedColumns[header] = "date"
		}
	}

	if agentCol >= 0 {
		seen := map[string]bool{}
		for _, row := range sampleRows {
			if agentCol >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[agentCol])
			if value == "" || seen[value] {
				continue
			}
			seen[value] = true
			batch.AgentsFound = append(batch.AgentsFound, value)
		}
		if len(batch.AgentsFound) == 0 && len(sampleRows) > 0 {
			batch.Issues = append(batch.Issues, fmt.Sprintf("agent column %q is empty", headers[agentCol]))
		}
	}

	if dateCol >= 0 {
		// First and last observed values in sample order. This is a
		// best-effort range, not a sort-verified min/max.
		var first, last string
		for _, row := range sampleRows {
			if dateCol >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[dateCol])
			if value == "" {
				continue
			}
			if _, err := ingest.NormalizeDate(value); err != nil {
				batch.Issues = append(batch.Issues, err.Error())
				continue
			}
			if first == "" {
				first = value
			}
			last = value
		}
		if first != "" {
			batch.DateRange = []string{first, last}
		}
	}
}
