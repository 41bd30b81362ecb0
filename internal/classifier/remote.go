package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kmerritt/scorecard/internal/types"
)

// HTTPDoer allows tests to fake HTTP transport
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Remote calls an external text-classification service that returns
// the ClassifiedBatch shape. Any transport, parse or validation failure
// is returned as an error so Fallback can degrade to the heuristic.
type Remote struct {
	endpoint   string
	httpClient HTTPDoer
}

// NewRemote creates a remote classifier client
func NewRemote(endpoint string, httpClient HTTPDoer) *Remote {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Remote{endpoint: endpoint, httpClient: httpClient}
}

type classifyRequest struct {
	FileName   string     `json:"fileName"`
	Headers    []string   `json:"headers"`
	SampleRows [][]string `json:"sampleRows"`
}

// Classify posts the batch shape to the classification service and
// validates the response.
func (r *Remote) Classify(ctx context.Context, fileName string, headers []string, sampleRows [][]string) (types.ClassifiedBatch, error) {
	if strings.TrimSpace(r.endpoint) == "" {
		return types.ClassifiedBatch{}, errors.New("classifier endpoint not configured")
	}

	payload, err := json.Marshal(classifyRequest{
		FileName:   fileName,
		Headers:    headers,
		SampleRows: sampleRows,
	})
	if err != nil {
		return types.ClassifiedBatch{}, fmt.Errorf("marshal classify request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.ClassifiedBatch{}, fmt.Errorf("build classify request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := r.httpClient.Do(request)
	if err != nil {
		return types.ClassifiedBatch{}, fmt.Errorf("classify request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return types.ClassifiedBatch{}, fmt.Errorf("read classify response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return types.ClassifiedBatch{}, fmt.Errorf("classify status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var batch types.ClassifiedBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return types.ClassifiedBatch{}, fmt.Errorf("parse classify response: %w", err)
	}
	if err := validateBatch(batch); err != nil {
		return types.ClassifiedBatch{}, fmt.Errorf("invalid classify response: %w", err)
	}
	return batch, nil
}

func validateBatch(batch types.ClassifiedBatch) error {
	switch batch.ReportType {
	case types.ReportQuality, types.ReportHandleTime, types.ReportRetentionRate,
		types.ReportCustomerVoice, types.ReportHoldTime, types.ReportAudit, types.ReportUnknown:
	default:
		return fmt.Errorf("unknown report type %q", batch.ReportType)
	}
	if batch.Confidence < 0 || batch.Confidence > 100 {
		return fmt.Errorf("confidence %d out of range", batch.Confidence)
	}
	return nil
}
