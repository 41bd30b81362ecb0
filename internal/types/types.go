package types

// AgentStatus represents whether an agent is part of the active roster
type AgentStatus string

const (
	AgentActive   AgentStatus = "active"
	AgentInactive AgentStatus = "inactive"
)

// Agent is the canonical identity record for a call-center agent.
// Identity is immutable once created; CanonicalName is the source of
// truth for name matching.
type Agent struct {
	ID            string      `json:"id"`
	CanonicalName string      `json:"canonicalName"`
	Status        AgentStatus `json:"status"`
}

// RawRow is one parsed line of an uploaded report. Cells keep their
// original column order; Index is the 1-based position in the source
// (header excluded).
type RawRow struct {
	Index int      `json:"index"`
	Cells []string `json:"cells"`
}

// ReportType labels what kind of performance report a batch contains
type ReportType string

const (
	ReportQuality       ReportType = "quality"
	ReportHandleTime    ReportType = "handle_time"
	ReportRetentionRate ReportType = "retention_rate"
	ReportCustomerVoice ReportType = "customer_voice"
	ReportHoldTime      ReportType = "hold_time"
	ReportAudit         ReportType = "audit"
	ReportUnknown       ReportType = "unknown"
)

// ClassifiedBatch is the result of classifying one uploaded report.
// Confidence is a 0-100 heuristic certainty, not a probability.
// DateRange holds the first and last date values in sample order
// (best-effort, not a verified min/max).
type ClassifiedBatch struct {
	ReportType      ReportType        `json:"reportType"`
	Confidence      int               `json:"confidence"`
	DetectedColumns map[string]string `json:"detectedColumns"` // header -> semantic type
	AgentsFound     []string          `json:"agentsFound"`
	DateRange       []string          `json:"dateRange"` // [first, last] or empty
	Issues          []string          `json:"issues"`
}

// Suggestion is one ranked candidate for an unresolved name
type Suggestion struct {
	AgentID       string `json:"agentId"`
	CanonicalName string `json:"canonicalName"`
	Distance      int    `json:"distance"`
	Confidence    int    `json:"confidence"`
}

// MatchResult is the outcome of resolving a free-text name against the
// roster. Never mutated after creation. Suggestions is populated only
// when the input could not be matched with acceptable confidence.
type MatchResult struct {
	Matched     bool         `json:"matched"`
	AgentID     string       `json:"agentId,omitempty"`
	Confidence  int          `json:"confidence"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// MetricFields carries the independently nullable per-day metrics.
// A nil pointer means "not observed in this upload" and never
// overwrites a stored value.
type MetricFields struct {
	Quality            *float64 `json:"quality,omitempty"`            // 0-100
	HandleTimeSeconds  *float64 `json:"handleTimeSeconds,omitempty"`  // >= 0, lower is better
	RetentionRate      *float64 `json:"retentionRate,omitempty"`      // 0-100 (SRR)
	CustomerVoiceScore *float64 `json:"customerVoiceScore,omitempty"` // 0-100 (VOC)
}

// MetricRecord is the per-agent per-day metric row, keyed by
// (AgentID, Date). Revision supports conditional upserts: a store
// rejects a write whose revision does not match the stored row.
type MetricRecord struct {
	AgentID  string `json:"agentId"`
	Date     string `json:"date"` // YYYY-MM-DD
	Revision int64  `json:"revision"`
	MetricFields
}

// LeaveStatus is the lifecycle of a leave request
type LeaveStatus string

const (
	LeaveRequested LeaveStatus = "requested"
	LeaveApproved  LeaveStatus = "approved"
	LeaveDeclined  LeaveStatus = "declined"
)

// LeaveRecord is an agent's leave request spanning StartDate..EndDate
// inclusive, dates in YYYY-MM-DD.
type LeaveRecord struct {
	ID        string      `json:"id"`
	AgentID   string      `json:"agentId"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	Status    LeaveStatus `json:"status"`
}

// SessionStatus is the lifecycle of a coaching session
type SessionStatus string

const (
	SessionScheduled       SessionStatus = "scheduled"
	SessionNeedsReschedule SessionStatus = "needs_reschedule"
	SessionCompleted       SessionStatus = "completed"
	SessionFollowUpNeeded  SessionStatus = "follow_up_needed"
	SessionCancelled       SessionStatus = "cancelled"
)

// Effectiveness tags whether a completed session produced measurable
// improvement
type Effectiveness string

const (
	EffectivenessUnset         Effectiveness = ""
	EffectivenessEffective     Effectiveness = "effective"
	EffectivenessNeedsFollowUp Effectiveness = "needs_follow_up"
)

// CoachingSession is one scheduled coaching interaction. Derived
// status/effectiveness transitions are owned by the sync engine;
// user-initiated ones by the caller.
type CoachingSession struct {
	ID            string        `json:"id"`
	AgentID       string        `json:"agentId"`
	ScheduledDate string        `json:"scheduledDate"` // YYYY-MM-DD
	Status        SessionStatus `json:"status"`
	Effectiveness Effectiveness `json:"effectiveness,omitempty"`
}

// Audit is a scored quality audit for one agent on one day. Read-only
// input to the sync engine.
type Audit struct {
	ID      string  `json:"id"`
	AgentID string  `json:"agentId"`
	Date    string  `json:"date"`
	Score   float64 `json:"score"` // 0-100
}

// AttendanceRecord marks one leave day synthesized when a leave request
// is approved. Removed again if the leave is reversed. SourceLeaveID
// ties the record to the leave that caused it so reversal is exact.
type AttendanceRecord struct {
	AgentID       string `json:"agentId"`
	Date          string `json:"date"`
	SourceLeaveID string `json:"sourceLeaveId"`
}

// SyncOutcome reports what one sync-engine reaction changed. Ephemeral,
// used for audit logging and dashboard display, never persisted as
// domain state.
type SyncOutcome struct {
	Trigger           string   `json:"trigger"`
	AgentID           string   `json:"agentId"`
	SessionsFlagged   int      `json:"sessionsFlagged,omitempty"`
	AttendanceCreated int      `json:"attendanceCreated,omitempty"`
	AttendanceRemoved int      `json:"attendanceRemoved,omitempty"`
	SessionsTagged    int      `json:"sessionsTagged,omitempty"`
	SuggestCoaching   bool     `json:"suggestCoaching,omitempty"`
	Reasons           []string `json:"reasons,omitempty"`
}

// Availability answers the sync engine's availability query: whether
// the agent is on approved leave "today", when they return, and which
// sessions fall inside the horizon.
type Availability struct {
	AgentID          string            `json:"agentId"`
	OnLeave          bool              `json:"onLeave"`
	ReturnDate       string            `json:"returnDate,omitempty"`
	UpcomingSessions []CoachingSession `json:"upcomingSessions"`
}
