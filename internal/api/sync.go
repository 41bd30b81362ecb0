package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/cache"
	"github.com/kmerritt/scorecard/internal/entsync"
	"github.com/kmerritt/scorecard/internal/metrics"
	"github.com/kmerritt/scorecard/internal/storage"
	"github.com/kmerritt/scorecard/internal/types"
	"github.com/kmerritt/scorecard/internal/websocket"
)

// SyncHandler exposes the entity endpoints whose writes trigger the
// cross-entity sync engine
type SyncHandler struct {
	store    storage.Store
	engine   *entsync.Engine
	outcomes *cache.OutcomeCache
	hub      *websocket.Hub
	logger   zerolog.Logger
}

// NewSyncHandler creates a new SyncHandler. hub may be nil.
func NewSyncHandler(store storage.Store, engine *entsync.Engine, outcomes *cache.OutcomeCache, hub *websocket.Hub, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		store:    store,
		engine:   engine,
		outcomes: outcomes,
		hub:      hub,
		logger:   logger.With().Str("component", "sync_handler").Logger(),
	}
}

// HandleLeave handles POST /api/leaves: stores the leave and, when the
// status is approved, runs the approval sync. A leave moving out of the
// approved state runs the reversal sync instead.
func (h *SyncHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	var leave types.LeaveRecord
	if err := json.NewDecoder(r.Body).Decode(&leave); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if leave.AgentID == "" || leave.StartDate == "" || leave.EndDate == "" {
		http.Error(w, "agentId, startDate and endDate are required", http.StatusBadRequest)
		return
	}
	if leave.ID == "" {
		leave.ID = uuid.New().String()
	}
	if leave.Status == "" {
		leave.Status = types.LeaveRequested
	}

	previous, err := h.store.ListLeaveByAgent(r.Context(), leave.AgentID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list leave")
		http.Error(w, "failed to store leave", http.StatusInternalServerError)
		return
	}
	wasApproved := false
	for _, p := range previous {
		if p.ID == leave.ID && p.Status == types.LeaveApproved {
			wasApproved = true
			break
		}
	}

	if err := h.store.PutLeave(r.Context(), leave); err != nil {
		h.logger.Error().Err(err).Str("leave_id", leave.ID).Msg("failed to store leave")
		http.Error(w, "failed to store leave", http.StatusInternalServerError)
		return
	}

	var outcome types.SyncOutcome
	switch {
	case leave.Status == types.LeaveApproved:
		outcome, err = h.engine.LeaveApproved(r.Context(), leave)
	case wasApproved:
		outcome, err = h.engine.LeaveReversed(r.Context(), leave)
	default:
		h.respond(w, http.StatusOK, map[string]interface{}{"leave": leave})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("leave_id", leave.ID).Msg("leave sync failed")
		http.Error(w, "leave stored but sync failed", http.StatusInternalServerError)
		return
	}
	h.recordOutcome(outcome)

	h.respond(w, http.StatusOK, map[string]interface{}{"leave": leave, "outcome": outcome})
}

// HandleAudit handles POST /api/audits: stores the audit and runs the
// low-score coaching check.
func (h *SyncHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	var audit types.Audit
	if err := json.NewDecoder(r.Body).Decode(&audit); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if audit.AgentID == "" || audit.Date == "" {
		http.Error(w, "agentId and date are required", http.StatusBadRequest)
		return
	}
	if audit.Score < 0 || audit.Score > 100 {
		http.Error(w, "score must be 0-100", http.StatusBadRequest)
		return
	}
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}

	if err := h.store.PutAudit(r.Context(), audit); err != nil {
		h.logger.Error().Err(err).Str("audit_id", audit.ID).Msg("failed to store audit")
		http.Error(w, "failed to store audit", http.StatusInternalServerError)
		return
	}

	outcome, err := h.engine.AuditScored(r.Context(), audit)
	if err != nil {
		h.logger.Error().Err(err).Str("audit_id", audit.ID).Msg("audit sync failed")
		http.Error(w, "audit stored but sync failed", http.StatusInternalServerError)
		return
	}
	h.recordOutcome(outcome)

	h.respond(w, http.StatusOK, map[string]interface{}{"audit": audit, "outcome": outcome})
}

// HandleSession handles POST /api/sessions: stores or updates a
// coaching session.
func (h *SyncHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	var session types.CoachingSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if session.AgentID == "" || session.ScheduledDate == "" {
		http.Error(w, "agentId and scheduledDate are required", http.StatusBadRequest)
		return
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = types.SessionScheduled
	}

	if err := h.store.PutSession(r.Context(), session); err != nil {
		h.logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to store session")
		http.Error(w, "failed to store session", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{"session": session})
}

// HandleRecentOutcomes handles GET /api/sync/outcomes?limit=N
func (h *SyncHandler) HandleRecentOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.outcomes.Recent(limit))
}

func (h *SyncHandler) recordOutcome(outcome types.SyncOutcome) {
	h.outcomes.Add(outcome)
	metrics.Get().RecordSyncEvent(outcome.SuggestCoaching, outcome.SessionsFlagged, outcome.AttendanceCreated)
	if h.hub != nil {
		h.hub.BroadcastSyncOutcome(outcome.AgentID, outcome)
	}
}

func (h *SyncHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
