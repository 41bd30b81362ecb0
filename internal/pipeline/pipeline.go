// Package pipeline runs one uploaded report through ingestion,
// classification, name resolution and metric merging, accumulating
// row-level problems instead of aborting the batch.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/classifier"
	"github.com/kmerritt/scorecard/internal/entsync"
	"github.com/kmerritt/scorecard/internal/ingest"
	"github.com/kmerritt/scorecard/internal/merge"
	"github.com/kmerritt/scorecard/internal/resolver"
	"github.com/kmerritt/scorecard/internal/types"
)

// sampleRowLimit caps how many rows are handed to the classifier
const sampleRowLimit = 10

// Upload is one report to process. Text carries delimited input; Grid
// carries spreadsheet-shaped input and is used when Text is empty. The
// roster is fetched by the caller; the pipeline never queries it.
type Upload struct {
	FileName string
	Text     string
	Grid     [][]string
	Roster   []types.Agent
}

// Summary is the per-upload pipeline result. Suggestions carries the
// ranked candidates for names that could not be matched with acceptable
// confidence, for the human-review UI.
type Summary struct {
	RecordsProcessed int                           `json:"recordsProcessed"`
	ReportType       types.ReportType              `json:"reportType"`
	Confidence       int                           `json:"confidence"`
	Errors           []string                      `json:"errors"`
	Warnings         []string                      `json:"warnings"`
	Suggestions      map[string][]types.Suggestion `json:"suggestions,omitempty"`
}

// Pipeline wires the ingestion stages together
type Pipeline struct {
	classifier classifier.Classifier
	resolver   *resolver.Resolver
	merger     *merge.Engine
	syncer     *entsync.Engine
	logger     zerolog.Logger
}

// New creates a pipeline. syncer may be nil to disable KPI-observation
// side effects (tests).
func New(c classifier.Classifier, r *resolver.Resolver, m *merge.Engine, s *entsync.Engine, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		classifier: c,
		resolver:   r,
		merger:     m,
		syncer:     s,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run processes one upload end to end. Row-level failures accumulate in
// the summary; only a batch with zero usable rows returns an error.
func (p *Pipeline) Run(ctx context.Context, upload Upload) (Summary, error) {
	var summary Summary
	summary.Suggestions = map[string][]types.Suggestion{}

	var ingested ingest.Result
	var err error
	if upload.Text != "" {
		ingested, err = ingest.IngestText(upload.Text)
	} else {
		ingested, err = ingest.IngestGrid(upload.Grid)
	}
	summary.Errors = append(summary.Errors, ingested.Errors...)
	summary.Warnings = append(summary.Warnings, ingested.Warnings...)
	if err != nil {
		return summary, err
	}

	samples := make([][]string, 0, sampleRowLimit)
	for _, row := range ingested.Rows {
		if len(samples) == sampleRowLimit {
			break
		}
		samples = append(samples, row.Cells)
	}

	batch, err := p.classifier.Classify(ctx, upload.FileName, ingested.Header, samples)
	if err != nil {
		return summary, fmt.Errorf("classify upload: %w", err)
	}
	summary.ReportType = batch.ReportType
	summary.Confidence = batch.Confidence
	summary.Warnings = append(summary.Warnings, batch.Issues...)

	columns := mapColumns(ingested.Header, batch.ReportType)
	if columns.name < 0 {
		summary.Errors = append(summary.Errors, "no agent name column detected")
		return summary, nil
	}

	// Resolve the distinct names up front so each unique name is
	// matched once
	names := distinctNames(ingested.Rows, columns.name)
	matches, err := p.resolver.ResolveBatch(ctx, names, upload.Roster)
	if err != nil {
		return summary, fmt.Errorf("resolve names: %w", err)
	}

	for _, row := range ingested.Rows {
		p.processRow(ctx, row, columns, matches, &summary)
	}

	p.logger.Info().
		Str("file", upload.FileName).
		Str("report_type", string(summary.ReportType)).
		Int("records", summary.RecordsProcessed).
		Int("errors", len(summary.Errors)).
		Int("warnings", len(summary.Warnings)).
		Msg("upload processed")
	return summary, nil
}

func (p *Pipeline) processRow(ctx context.Context, row types.RawRow, columns columnMap, matches map[string]types.MatchResult, summary *Summary) {
	name, ok := ingest.Cell(row, columns.name)
	if !ok || strings.TrimSpace(name) == "" {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: missing agent name", row.Index))
		return
	}

	match := matches[name]
	if !match.Matched {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("row %d: unresolved agent %q (confidence %d)", row.Index, name, match.Confidence))
		if len(match.Suggestions) > 0 {
			summary.Suggestions[name] = match.Suggestions
		}
		return
	}

	date, ok := ingest.Cell(row, columns.date)
	if !ok || date == "" {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: missing date", row.Index))
		return
	}

	fields, parseErrs := extractFields(row, columns)
	for _, parseErr := range parseErrs {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %s", row.Index, parseErr))
	}
	if !hasAnyField(fields) {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: no metric values", row.Index))
		return
	}

	record, fieldErrs, err := p.merger.Merge(ctx, match.AgentID, date, fields)
	for _, fieldErr := range fieldErrs {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %s", row.Index, fieldErr))
	}
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row.Index, err))
		return
	}
	summary.RecordsProcessed++

	if p.syncer != nil {
		// Best-effort: a sync failure never undoes the merge
		if _, err := p.syncer.KPIObserved(ctx, match.AgentID, date, record); err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("row %d: kpi sync: %v", row.Index, err))
		}
	}
}

// columnMap locates the semantic columns of a batch. Metric columns map
// header index to the field they feed.
type columnMap struct {
	name    int
	date    int
	metrics map[int]metricField
}

type metricField int

const (
	fieldQuality metricField = iota
	fieldHandleTime
	fieldRetention
	fieldCustomerVoice
)

var metricHeaderKeywords = []struct {
	field    metricField
	keywords []string
}{
	{fieldQuality, []string{"quality"}},
	{fieldHandleTime, []string{"aht", "handle"}},
	{fieldRetention, []string{"srr", "save", "retention"}},
	{fieldCustomerVoice, []string{"voc", "voice", "customer"}},
}

// mapColumns resolves column positions from headers, falling back to
// the conventional name,date,value layout for headerless uploads of a
// known report type.
func mapColumns(headers []string, reportType types.ReportType) columnMap {
	columns := columnMap{name: -1, date: -1, metrics: map[int]metricField{}}

	if len(headers) == 0 {
		columns.name = 0
		columns.date = 1
		if field, ok := reportField(reportType); ok {
			columns.metrics[2] = field
		}
		return columns
	}

	for i, header := range headers {
		lower := strings.ToLower(header)
		if columns.name < 0 && (strings.Contains(lower, "agent") || strings.Contains(lower, "name") || strings.Contains(lower, "employee")) {
			columns.name = i
			continue
		}
		if columns.date < 0 && strings.Contains(lower, "date") {
			columns.date = i
			continue
		}
		for _, mk := range metricHeaderKeywords {
			matched := false
			for _, kw := range mk.keywords {
				if strings.Contains(lower, kw) {
					columns.metrics[i] = mk.field
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}
	return columns
}

func reportField(reportType types.ReportType) (metricField, bool) {
	switch reportType {
	case types.ReportQuality:
		return fieldQuality, true
	case types.ReportHandleTime:
		return fieldHandleTime, true
	case types.ReportRetentionRate:
		return fieldRetention, true
	case types.ReportCustomerVoice:
		return fieldCustomerVoice, true
	default:
		return 0, false
	}
}

func extractFields(row types.RawRow, columns columnMap) (types.MetricFields, []string) {
	var fields types.MetricFields
	var parseErrs []string

	for idx, field := range columns.metrics {
		cell, ok := ingest.Cell(row, idx)
		if !ok || strings.TrimSpace(cell) == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(cell), "%"), 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("unparseable metric value %q", cell))
			continue
		}
		v := value
		switch field {
		case fieldQuality:
			fields.Quality = &v
		case fieldHandleTime:
			fields.HandleTimeSeconds = &v
		case fieldRetention:
			fields.RetentionRate = &v
		case fieldCustomerVoice:
			fields.CustomerVoiceScore = &v
		}
	}
	return fields, parseErrs
}

func hasAnyField(fields types.MetricFields) bool {
	return fields.Quality != nil || fields.HandleTimeSeconds != nil ||
		fields.RetentionRate != nil || fields.CustomerVoiceScore != nil
}

func distinctNames(rows []types.RawRow, nameCol int) []string {
	seen := map[string]bool{}
	var names []string
	for _, row := range rows {
		name, ok := ingest.Cell(row, nameCol)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
