package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/alerts"
	"github.com/kmerritt/scorecard/internal/cache"
	"github.com/kmerritt/scorecard/internal/classifier"
	"github.com/kmerritt/scorecard/internal/entsync"
	"github.com/kmerritt/scorecard/internal/merge"
	"github.com/kmerritt/scorecard/internal/pipeline"
	"github.com/kmerritt/scorecard/internal/resolver"
	"github.com/kmerritt/scorecard/internal/storage"
	"github.com/kmerritt/scorecard/internal/types"
)

type testEnv struct {
	store  *storage.MemoryStore
	roster *cache.Roster
	router *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	store := storage.NewMemoryStore()
	engine := entsync.New(store, logger)
	res := resolver.New(resolver.Config{}, resolver.DefaultNicknames(), logger)
	p := pipeline.New(classifier.NewHeuristic(), res, merge.New(store, logger), engine, logger)

	roster := cache.NewRoster()
	roster.Replace([]types.Agent{
		{ID: "a-1", CanonicalName: "John Smith", Status: types.AgentActive},
		{ID: "a-2", CanonicalName: "Michael Jones", Status: types.AgentActive},
	})

	outcomes := cache.NewOutcomeCache()

	uploads := NewUploadHandler(p, roster, nil, logger)
	rosterHandler := NewRosterHandler(roster, res, logger)
	syncHandler := NewSyncHandler(store, engine, outcomes, nil, logger)
	history := NewAgentHistoryHandler(store, engine, logger)

	r := chi.NewRouter()
	r.Post("/api/uploads", uploads.HandleUpload)
	r.Post("/internal/agents/roster", rosterHandler.HandleReplace)
	r.Get("/api/agents", rosterHandler.HandleList)
	r.Post("/api/resolve", rosterHandler.HandleResolve)
	r.Post("/api/leaves", syncHandler.HandleLeave)
	r.Post("/api/audits", syncHandler.HandleAudit)
	r.Post("/api/sessions", syncHandler.HandleSession)
	r.Get("/api/sync/outcomes", syncHandler.HandleRecentOutcomes)
	r.Route("/api/agents/{agentId}", func(r chi.Router) {
		r.Get("/metrics", history.GetMetrics)
		r.Get("/sessions", history.GetSessions)
		r.Get("/audits", history.GetAudits)
		r.Get("/attendance", history.GetAttendance)
		r.Get("/alerts", history.GetAlerts)
		r.Get("/availability", history.GetAvailability)
	})

	return &testEnv{store: store, roster: roster, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/uploads", UploadRequest{
		FileName: "quality.tsv",
		Text:     "Agent\tDate\tQuality\nJohn Smith\t2025-01-15\t92",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var summary pipeline.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.RecordsProcessed != 1 {
		t.Errorf("records = %d, want 1 (errors %v)", summary.RecordsProcessed, summary.Errors)
	}
	if summary.ReportType != types.ReportQuality {
		t.Errorf("report type = %q, want quality", summary.ReportType)
	}

	record, err := env.store.GetMetricRecord(context.Background(), "a-1", "2025-01-15")
	if err != nil {
		t.Fatalf("merged record missing: %v", err)
	}
	if record.Quality == nil || *record.Quality != 92 {
		t.Errorf("quality = %v, want 92", record.Quality)
	}
}

func TestUploadEndpointRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/uploads", UploadRequest{FileName: "x.csv"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/uploads", UploadRequest{FileName: "x.csv", Text: "  \n "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestRosterReplaceEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/internal/agents/roster", []types.Agent{
		{ID: "b-1", CanonicalName: "Amy Wong", Status: types.AgentActive},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]int
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["registered"] != 1 {
		t.Errorf("registered = %d, want 1", resp["registered"])
	}

	rec = env.do(t, http.MethodGet, "/api/agents", nil)
	var agents []types.Agent
	json.Unmarshal(rec.Body.Bytes(), &agents)
	if len(agents) != 1 || agents[0].ID != "b-1" {
		t.Errorf("unexpected roster: %v", agents)
	}
}

func TestResolvePreviewEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/resolve", ResolveRequest{Names: []string{"Mike Jones", "Zzz"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var results map[string]types.MatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if !results["Mike Jones"].Matched || results["Mike Jones"].AgentID != "a-2" {
		t.Errorf("nickname should match a-2, got %+v", results["Mike Jones"])
	}
	if results["Zzz"].Matched {
		t.Errorf("expected no match for Zzz")
	}
}

func TestLeaveApprovalTriggersSync(t *testing.T) {
	env := newTestEnv(t)

	// A scheduled session inside the leave span
	rec := env.do(t, http.MethodPost, "/api/sessions", types.CoachingSession{
		ID:            "s-1",
		AgentID:       "a-1",
		ScheduledDate: "2025-03-10",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/leaves", types.LeaveRecord{
		ID:        "l-1",
		AgentID:   "a-1",
		StartDate: "2025-03-08",
		EndDate:   "2025-03-12",
		Status:    types.LeaveApproved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Outcome types.SyncOutcome `json:"outcome"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Outcome.SessionsFlagged != 1 {
		t.Errorf("sessions flagged = %d, want 1", resp.Outcome.SessionsFlagged)
	}
	if resp.Outcome.AttendanceCreated != 5 {
		t.Errorf("attendance created = %d, want 5", resp.Outcome.AttendanceCreated)
	}

	rec = env.do(t, http.MethodGet, "/api/agents/a-1/attendance", nil)
	var attendance []types.AttendanceRecord
	json.Unmarshal(rec.Body.Bytes(), &attendance)
	if len(attendance) != 5 {
		t.Errorf("attendance records = %d, want 5", len(attendance))
	}

	// Reversal removes the synthesized days again
	rec = env.do(t, http.MethodPost, "/api/leaves", types.LeaveRecord{
		ID:        "l-1",
		AgentID:   "a-1",
		StartDate: "2025-03-08",
		EndDate:   "2025-03-12",
		Status:    types.LeaveDeclined,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reversal status = %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Outcome.AttendanceRemoved != 5 {
		t.Errorf("attendance removed = %d, want 5", resp.Outcome.AttendanceRemoved)
	}
}

func TestLowAuditSuggestsCoaching(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/audits", types.Audit{
		AgentID: "a-1",
		Date:    "2025-04-01",
		Score:   62,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Outcome types.SyncOutcome `json:"outcome"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Outcome.SuggestCoaching {
		t.Errorf("expected coaching suggestion, got %+v", resp.Outcome)
	}

	// The outcome shows up in the recent feed
	rec = env.do(t, http.MethodGet, "/api/sync/outcomes?limit=5", nil)
	var recent []cache.RecordedOutcome
	json.Unmarshal(rec.Body.Bytes(), &recent)
	if len(recent) != 1 || recent[0].Outcome.Trigger != "audit_scored" {
		t.Errorf("unexpected recent outcomes: %v", recent)
	}
}

func TestAuditValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/audits", types.Audit{AgentID: "a-1", Date: "2025-04-01", Score: 150})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/audits", types.Audit{Date: "2025-04-01", Score: 50})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/uploads", UploadRequest{
		FileName: "quality.tsv",
		Text:     "Agent\tDate\tQuality\nJohn Smith\t2025-01-15\t55",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/agents/a-1/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var result []alerts.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(result) != 1 || result[0].Rule != "quality_low" || result[0].Severity != alerts.SeverityCritical {
		t.Errorf("unexpected alerts: %+v", result)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/leaves", types.LeaveRecord{
		ID:        "l-2",
		AgentID:   "a-1",
		StartDate: "2025-05-01",
		EndDate:   "2025-05-03",
		Status:    types.LeaveApproved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/agents/a-1/availability?date=2025-05-02&horizon=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var availability types.Availability
	json.Unmarshal(rec.Body.Bytes(), &availability)
	if !availability.OnLeave {
		t.Errorf("expected agent on leave, got %+v", availability)
	}
	if availability.ReturnDate != "2025-05-04" {
		t.Errorf("return date = %q, want 2025-05-04", availability.ReturnDate)
	}
}
