package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kmerritt/scorecard/internal/types"
)

// MemoryStore is the in-process Store used by tests and by deployments
// without storage infrastructure. Writes hold a single mutex, which is
// enough here: per-key write serialization for metric rows is enforced
// by the revision check, same as the real stores.
type MemoryStore struct {
	mu         sync.RWMutex
	metrics    map[string]types.MetricRecord // agentID|date
	leave      map[string]types.LeaveRecord
	sessions   map[string]types.CoachingSession
	audits     map[string]types.Audit
	attendance map[string]types.AttendanceRecord // agentID|date
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metrics:    make(map[string]types.MetricRecord),
		leave:      make(map[string]types.LeaveRecord),
		sessions:   make(map[string]types.CoachingSession),
		audits:     make(map[string]types.Audit),
		attendance: make(map[string]types.AttendanceRecord),
	}
}

func metricKey(agentID, date string) string { return agentID + "|" + date }

func (s *MemoryStore) GetMetricRecord(_ context.Context, agentID, date string) (types.MetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.metrics[metricKey(agentID, date)]
	if !ok {
		return types.MetricRecord{}, fmt.Errorf("metric record %s/%s: %w", agentID, date, ErrNotFound)
	}
	return record, nil
}

func (s *MemoryStore) PutMetricRecord(_ context.Context, record types.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := metricKey(record.AgentID, record.Date)
	existing, ok := s.metrics[key]
	if !ok {
		if record.Revision != 0 {
			return fmt.Errorf("metric record %s: expected revision %d, row absent: %w", key, record.Revision, ErrConflict)
		}
	} else if existing.Revision != record.Revision {
		return fmt.Errorf("metric record %s: expected revision %d, stored %d: %w", key, record.Revision, existing.Revision, ErrConflict)
	}

	record.Revision++
	s.metrics[key] = record
	return nil
}

func (s *MemoryStore) ListMetricRecords(_ context.Context, agentID string) ([]types.MetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []types.MetricRecord
	for _, record := range s.metrics {
		if record.AgentID == agentID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

func (s *MemoryStore) PutLeave(_ context.Context, leave types.LeaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leave[leave.ID] = leave
	return nil
}

func (s *MemoryStore) ListLeaveByAgent(_ context.Context, agentID string) ([]types.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []types.LeaveRecord
	for _, leave := range s.leave {
		if leave.AgentID == agentID {
			records = append(records, leave)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartDate < records[j].StartDate })
	return records, nil
}

func (s *MemoryStore) PutSession(_ context.Context, session types.CoachingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) ListSessionsByAgent(_ context.Context, agentID string) ([]types.CoachingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []types.CoachingSession
	for _, session := range s.sessions {
		if session.AgentID == agentID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ScheduledDate < sessions[j].ScheduledDate })
	return sessions, nil
}

func (s *MemoryStore) PutAudit(_ context.Context, audit types.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[audit.ID] = audit
	return nil
}

func (s *MemoryStore) ListAuditsByAgent(_ context.Context, agentID string) ([]types.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var audits []types.Audit
	for _, audit := range s.audits {
		if audit.AgentID == agentID {
			audits = append(audits, audit)
		}
	}
	sort.Slice(audits, func(i, j int) bool { return audits[i].Date < audits[j].Date })
	return audits, nil
}

func (s *MemoryStore) PutAttendance(_ context.Context, record types.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[metricKey(record.AgentID, record.Date)] = record
	return nil
}

func (s *MemoryStore) ListAttendanceByAgent(_ context.Context, agentID string) ([]types.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []types.AttendanceRecord
	for _, record := range s.attendance {
		if record.AgentID == agentID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

func (s *MemoryStore) DeleteAttendanceByLeave(_ context.Context, agentID, leaveID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, record := range s.attendance {
		if record.AgentID == agentID && record.SourceLeaveID == leaveID {
			delete(s.attendance, key)
			deleted++
		}
	}
	return deleted, nil
}
