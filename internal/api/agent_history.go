package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/alerts"
	"github.com/kmerritt/scorecard/internal/entsync"
	"github.com/kmerritt/scorecard/internal/storage"
	"github.com/kmerritt/scorecard/internal/types"
)

// AgentHistoryHandler provides REST endpoints for per-agent data
type AgentHistoryHandler struct {
	store  storage.Store
	engine *entsync.Engine
	logger zerolog.Logger
}

// NewAgentHistoryHandler creates a new AgentHistoryHandler
func NewAgentHistoryHandler(store storage.Store, engine *entsync.Engine, logger zerolog.Logger) *AgentHistoryHandler {
	return &AgentHistoryHandler{
		store:  store,
		engine: engine,
		logger: logger.With().Str("component", "agent_history_handler").Logger(),
	}
}

// GetMetrics returns the daily metric records for the given agent
// GET /api/agents/{agentId}/metrics
func (h *AgentHistoryHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	records, err := h.store.ListMetricRecords(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to list metric records")
		http.Error(w, "failed to retrieve metrics", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.MetricRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetSessions returns the coaching sessions for the given agent
// GET /api/agents/{agentId}/sessions
func (h *AgentHistoryHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	sessions, err := h.store.ListSessionsByAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to list sessions")
		http.Error(w, "failed to retrieve sessions", http.StatusInternalServerError)
		return
	}

	if sessions == nil {
		sessions = []types.CoachingSession{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// GetAudits returns the audits for the given agent
// GET /api/agents/{agentId}/audits
func (h *AgentHistoryHandler) GetAudits(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	audits, err := h.store.ListAuditsByAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to list audits")
		http.Error(w, "failed to retrieve audits", http.StatusInternalServerError)
		return
	}

	if audits == nil {
		audits = []types.Audit{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(audits)
}

// GetAttendance returns the synthesized leave-day records for the agent
// GET /api/agents/{agentId}/attendance
func (h *AgentHistoryHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	records, err := h.store.ListAttendanceByAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to list attendance")
		http.Error(w, "failed to retrieve attendance", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.AttendanceRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetAlerts evaluates metric threshold rules over the agent's stored
// records
// GET /api/agents/{agentId}/alerts
func (h *AgentHistoryHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	records, err := h.store.ListMetricRecords(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to list metric records")
		http.Error(w, "failed to evaluate alerts", http.StatusInternalServerError)
		return
	}

	result := alerts.CheckMetricAlerts(records)
	if result == nil {
		result = []alerts.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetAvailability answers whether the agent is on leave and which
// sessions fall inside the horizon
// GET /api/agents/{agentId}/availability?date=YYYY-MM-DD&horizon=14
func (h *AgentHistoryHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	horizon := 14
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "horizon must be a positive integer", http.StatusBadRequest)
			return
		}
		horizon = parsed
	}

	availability, err := h.engine.Availability(r.Context(), agentID, date, horizon)
	if err != nil {
		h.logger.Error().Err(err).
			Str("agent_id", agentID).
			Str("date", date).
			Msg("failed to compute availability")
		http.Error(w, "failed to compute availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(availability)
}
