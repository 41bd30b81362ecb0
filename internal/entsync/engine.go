// Package entsync re-derives the consistency that leave, audit and KPI
// state transitions imply on coaching schedules and effectiveness tags.
// Every reaction is idempotent and best-effort: a failure here never
// rolls back the entity change that triggered it.
package entsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/storage"
	"github.com/kmerritt/scorecard/internal/types"
)

const (
	coachingLookbackDays    = 7
	effectivenessWindowDays = 30
	snapshotOffsetDays      = 7
	lowAuditThreshold       = 70.0
	effectiveImprovement    = 10.0
)

// Engine applies cross-entity sync reactions against the store
type Engine struct {
	store  storage.Store
	logger zerolog.Logger
}

// New creates a sync engine
func New(store storage.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "entsync").Logger(),
	}
}

// LeaveApproved reacts to a leave entering the approved state: every
// scheduled coaching session inside the span is flagged for reschedule
// and one attendance record per spanned day is synthesized. Re-running
// with the same leave changes nothing.
func (e *Engine) LeaveApproved(ctx context.Context, leave types.LeaveRecord) (types.SyncOutcome, error) {
	outcome := types.SyncOutcome{Trigger: "leave_approved", AgentID: leave.AgentID}
	if leave.Status != types.LeaveApproved {
		return outcome, fmt.Errorf("leave %s is %s, not approved", leave.ID, leave.Status)
	}
	span, err := datesBetween(leave.StartDate, leave.EndDate)
	if err != nil {
		return outcome, err
	}

	sessions, err := e.store.ListSessionsByAgent(ctx, leave.AgentID)
	if err != nil {
		return outcome, fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		if session.Status != types.SessionScheduled {
			continue
		}
		if session.ScheduledDate < leave.StartDate || session.ScheduledDate > leave.EndDate {
			continue
		}
		session.Status = types.SessionNeedsReschedule
		if err := e.store.PutSession(ctx, session); err != nil {
			return outcome, fmt.Errorf("flag session %s: %w", session.ID, err)
		}
		outcome.SessionsFlagged++
		outcome.Reasons = append(outcome.Reasons, fmt.Sprintf("session %s on %s needs reschedule", session.ID, session.ScheduledDate))
	}

	existing, err := e.store.ListAttendanceByAgent(ctx, leave.AgentID)
	if err != nil {
		return outcome, fmt.Errorf("list attendance: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, record := range existing {
		present[record.Date] = true
	}
	for _, date := range span {
		if present[date] {
			continue
		}
		record := types.AttendanceRecord{AgentID: leave.AgentID, Date: date, SourceLeaveID: leave.ID}
		if err := e.store.PutAttendance(ctx, record); err != nil {
			return outcome, fmt.Errorf("put attendance %s: %w", date, err)
		}
		outcome.AttendanceCreated++
	}

	e.logger.Info().
		Str("agent_id", leave.AgentID).
		Str("leave_id", leave.ID).
		Int("sessions_flagged", outcome.SessionsFlagged).
		Int("attendance_created", outcome.AttendanceCreated).
		Msg("leave approval synced")
	return outcome, nil
}

// LeaveReversed reacts to an approved leave being declined or deleted:
// the attendance records it synthesized are removed. Sessions it pushed
// to needs_reschedule are left for manual handling, since a human may
// already have acted on the flag.
func (e *Engine) LeaveReversed(ctx context.Context, leave types.LeaveRecord) (types.SyncOutcome, error) {
	outcome := types.SyncOutcome{Trigger: "leave_reversed", AgentID: leave.AgentID}

	removed, err := e.store.DeleteAttendanceByLeave(ctx, leave.AgentID, leave.ID)
	if err != nil {
		return outcome, fmt.Errorf("remove attendance for leave %s: %w", leave.ID, err)
	}
	outcome.AttendanceRemoved = removed
	outcome.Reasons = append(outcome.Reasons, "flagged sessions kept for manual review")

	e.logger.Info().
		Str("agent_id", leave.AgentID).
		Str("leave_id", leave.ID).
		Int("attendance_removed", removed).
		Msg("leave reversal synced")
	return outcome, nil
}

// AuditScored reacts to a scored audit. A score below 70 produces an
// advisory coaching suggestion unless a scheduled session already
// exists within the last 7 days; the engine signals, it never creates
// sessions itself.
func (e *Engine) AuditScored(ctx context.Context, audit types.Audit) (types.SyncOutcome, error) {
	outcome := types.SyncOutcome{Trigger: "audit_scored", AgentID: audit.AgentID}
	if audit.Score >= lowAuditThreshold {
		return outcome, nil
	}

	windowStart, err := addDays(audit.Date, -coachingLookbackDays)
	if err != nil {
		return outcome, err
	}

	sessions, err := e.store.ListSessionsByAgent(ctx, audit.AgentID)
	if err != nil {
		return outcome, fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		if session.Status != types.SessionScheduled {
			continue
		}
		if session.ScheduledDate >= windowStart && session.ScheduledDate <= audit.Date {
			outcome.SuggestCoaching = false
			outcome.Reasons = append(outcome.Reasons, "Coaching already planned")
			return outcome, nil
		}
	}

	outcome.SuggestCoaching = true
	outcome.Reasons = append(outcome.Reasons, fmt.Sprintf("Low audit score: %g%%", audit.Score))
	return outcome, nil
}

// KPIObserved reacts to a new metric observation: recent completed
// coaching sessions still lacking an effectiveness tag are evaluated by
// comparing the snapshot from 7 days before the session to the new
// data. Sessions with an average improvement inside (0, 10] stay
// untagged and are re-evaluated on the next observation.
func (e *Engine) KPIObserved(ctx context.Context, agentID, date string, record types.MetricRecord) (types.SyncOutcome, error) {
	outcome := types.SyncOutcome{Trigger: "kpi_observed", AgentID: agentID}

	windowStart, err := addDays(date, -effectivenessWindowDays)
	if err != nil {
		return outcome, err
	}

	sessions, err := e.store.ListSessionsByAgent(ctx, agentID)
	if err != nil {
		return outcome, fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		if session.Status != types.SessionCompleted || session.Effectiveness != types.EffectivenessUnset {
			continue
		}
		if session.ScheduledDate < windowStart || session.ScheduledDate > date {
			continue
		}

		snapshotDate, err := addDays(session.ScheduledDate, -snapshotOffsetDays)
		if err != nil {
			return outcome, err
		}
		before, err := e.store.GetMetricRecord(ctx, agentID, snapshotDate)
		if err != nil {
			// No baseline snapshot: insufficient signal, keep untagged
			continue
		}

		improvement, ok := improvementScore(before, record)
		if !ok {
			continue
		}

		switch {
		case improvement > effectiveImprovement:
			session.Effectiveness = types.EffectivenessEffective
		case improvement < 0:
			session.Effectiveness = types.EffectivenessNeedsFollowUp
			session.Status = types.SessionFollowUpNeeded
		default:
			continue
		}
		if err := e.store.PutSession(ctx, session); err != nil {
			return outcome, fmt.Errorf("tag session %s: %w", session.ID, err)
		}
		outcome.SessionsTagged++
		outcome.Reasons = append(outcome.Reasons,
			fmt.Sprintf("session %s tagged %s (improvement %.1f)", session.ID, session.Effectiveness, improvement))
	}

	return outcome, nil
}

// Availability reports whether the agent is on approved leave today,
// when they return, and which sessions are scheduled within the
// horizon. Pure read, no side effects.
func (e *Engine) Availability(ctx context.Context, agentID, today string, horizonDays int) (types.Availability, error) {
	availability := types.Availability{AgentID: agentID, UpcomingSessions: []types.CoachingSession{}}

	horizonEnd, err := addDays(today, horizonDays)
	if err != nil {
		return availability, err
	}

	leaves, err := e.store.ListLeaveByAgent(ctx, agentID)
	if err != nil {
		return availability, fmt.Errorf("list leave: %w", err)
	}
	for _, leave := range leaves {
		if leave.Status != types.LeaveApproved {
			continue
		}
		if today >= leave.StartDate && today <= leave.EndDate {
			availability.OnLeave = true
			returnDate, err := addDays(leave.EndDate, 1)
			if err != nil {
				return availability, err
			}
			availability.ReturnDate = returnDate
			break
		}
	}

	sessions, err := e.store.ListSessionsByAgent(ctx, agentID)
	if err != nil {
		return availability, fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		if session.Status != types.SessionScheduled {
			continue
		}
		if session.ScheduledDate >= today && session.ScheduledDate <= horizonEnd {
			availability.UpcomingSessions = append(availability.UpcomingSessions, session)
		}
	}

	return availability, nil
}

// improvementScore averages per-field improvement across fields present
// on both sides. Handle time inverts the delta since lower is better.
func improvementScore(before types.MetricRecord, after types.MetricRecord) (float64, bool) {
	var total float64
	var count int

	delta := func(b, a *float64) {
		if b == nil || a == nil {
			return
		}
		total += *a - *b
		count++
	}
	delta(before.Quality, after.Quality)
	delta(before.RetentionRate, after.RetentionRate)
	delta(before.CustomerVoiceScore, after.CustomerVoiceScore)

	if before.HandleTimeSeconds != nil && after.HandleTimeSeconds != nil && *before.HandleTimeSeconds != 0 {
		total += (*before.HandleTimeSeconds - *after.HandleTimeSeconds) / *before.HandleTimeSeconds * 100
		count++
	}

	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}

func addDays(date string, days int) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.AddDate(0, 0, days).Format("2006-01-02"), nil
}

func datesBetween(start, end string) ([]string, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("leave span ends %s before it starts %s", end, start)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}
