package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/cache"
	"github.com/kmerritt/scorecard/internal/ingest"
	"github.com/kmerritt/scorecard/internal/metrics"
	"github.com/kmerritt/scorecard/internal/pipeline"
	"github.com/kmerritt/scorecard/internal/websocket"
)

// UploadRequest is the POST body for a report upload. Exactly one of
// Text or Grid should carry data.
type UploadRequest struct {
	FileName string     `json:"fileName"`
	Text     string     `json:"text,omitempty"`
	Grid     [][]string `json:"grid,omitempty"`
}

// UploadHandler accepts report uploads and runs them through the
// processing pipeline
type UploadHandler struct {
	pipeline *pipeline.Pipeline
	roster   *cache.Roster
	hub      *websocket.Hub
	logger   zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler. hub may be nil when no
// dashboard push is wanted.
func NewUploadHandler(p *pipeline.Pipeline, roster *cache.Roster, hub *websocket.Hub, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		pipeline: p,
		roster:   roster,
		hub:      hub,
		logger:   logger.With().Str("component", "upload_handler").Logger(),
	}
}

// HandleUpload handles POST /api/uploads
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Text == "" && len(req.Grid) == 0 {
		http.Error(w, "text or grid is required", http.StatusBadRequest)
		return
	}

	summary, err := h.pipeline.Run(r.Context(), pipeline.Upload{
		FileName: req.FileName,
		Text:     req.Text,
		Grid:     req.Grid,
		Roster:   h.roster.Active(),
	})
	if err != nil {
		metrics.Get().RecordUploadError()
		if errors.Is(err, ingest.ErrNoRows) {
			http.Error(w, "no usable rows in upload", http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error().Err(err).Str("file", req.FileName).Msg("upload processing failed")
		http.Error(w, "failed to process upload", http.StatusInternalServerError)
		return
	}

	metrics.Get().RecordUpload(summary.ReportType, summary.RecordsProcessed, len(summary.Errors))
	metrics.Get().RecordHTTPRequest("/api/uploads", http.StatusOK, time.Since(start))

	if h.hub != nil {
		h.hub.BroadcastUploadProcessed(summary)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
