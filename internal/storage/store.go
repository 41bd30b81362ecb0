package storage

import (
	"context"
	"errors"

	"github.com/kmerritt/scorecard/internal/types"
)

// ErrNotFound signals a missing keyed record
var ErrNotFound = errors.New("record not found")

// ErrConflict signals a revision mismatch on a conditional upsert: the
// row changed between the caller's read and write.
var ErrConflict = errors.New("write conflict")

// Store is the persistence collaborator. Implementations must enforce
// MetricRecord uniqueness on (AgentID, Date) and reject a
// PutMetricRecord whose Revision does not match the stored row; that
// revision check is the basis of the merge engine's conflict retries.
type Store interface {
	// GetMetricRecord returns the row for (agentID, date) or ErrNotFound
	GetMetricRecord(ctx context.Context, agentID, date string) (types.MetricRecord, error)
	// PutMetricRecord writes a row. record.Revision must equal the
	// stored revision (0 for a new row); the stored revision is then
	// incremented. A mismatch returns ErrConflict.
	PutMetricRecord(ctx context.Context, record types.MetricRecord) error
	ListMetricRecords(ctx context.Context, agentID string) ([]types.MetricRecord, error)

	PutLeave(ctx context.Context, leave types.LeaveRecord) error
	ListLeaveByAgent(ctx context.Context, agentID string) ([]types.LeaveRecord, error)

	PutSession(ctx context.Context, session types.CoachingSession) error
	ListSessionsByAgent(ctx context.Context, agentID string) ([]types.CoachingSession, error)

	PutAudit(ctx context.Context, audit types.Audit) error
	ListAuditsByAgent(ctx context.Context, agentID string) ([]types.Audit, error)

	PutAttendance(ctx context.Context, record types.AttendanceRecord) error
	ListAttendanceByAgent(ctx context.Context, agentID string) ([]types.AttendanceRecord, error)
	// DeleteAttendanceByLeave removes the attendance rows a leave
	// synthesized and reports how many were deleted
	DeleteAttendanceByLeave(ctx context.Context, agentID, leaveID string) (int, error)
}
