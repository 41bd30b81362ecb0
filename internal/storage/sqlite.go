package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/kmerritt/scorecard/internal/types"
)

const createMetricRecordsSQL = `
CREATE TABLE IF NOT EXISTS metric_records (
	agent_id TEXT NOT NULL,
	date TEXT NOT NULL,
	revision INTEGER NOT NULL,
	quality REAL,
	handle_time_seconds REAL,
	retention_rate REAL,
	customer_voice_score REAL,
	PRIMARY KEY (agent_id, date)
)`

const createLeaveSQL = `
CREATE TABLE IF NOT EXISTS leave_records (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	status TEXT NOT NULL
)`

const createSessionsSQL = `
CREATE TABLE IF NOT EXISTS coaching_sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	scheduled_date TEXT NOT NULL,
	status TEXT NOT NULL,
	effectiveness TEXT NOT NULL DEFAULT ''
)`

const createAuditsSQL = `
CREATE TABLE IF NOT EXISTS audits (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	date TEXT NOT NULL,
	score REAL NOT NULL
)`

const createAttendanceSQL = `
CREATE TABLE IF NOT EXISTS attendance_records (
	agent_id TEXT NOT NULL,
	date TEXT NOT NULL,
	source_leave_id TEXT NOT NULL,
	PRIMARY KEY (agent_id, date)
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_leave_agent ON leave_records(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_agent ON coaching_sessions(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_agent ON audits(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_leave ON attendance_records(source_leave_id)`,
}

// SQLiteStore implements Store on a local SQLite file. The primary key
// on (agent_id, date) is the uniqueness constraint behind metric upsert
// idempotence; the revision column turns each write into a conditional
// update.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// runs schema migration.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	for _, stmt := range append([]string{
		createMetricRecordsSQL, createLeaveSQL, createSessionsSQL, createAuditsSQL, createAttendanceSQL,
	}, createIndexesSQL...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}

	logger.Info().Str("path", path).Msg("SQLite store initialized")
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) GetMetricRecord(ctx context.Context, agentID, date string) (types.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT agent_id, date, revision, quality, handle_time_seconds, retention_rate, customer_voice_score
		 FROM metric_records WHERE agent_id = ? AND date = ?`, agentID, date)

	record, err := scanMetricRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.MetricRecord{}, fmt.Errorf("metric record %s/%s: %w", agentID, date, ErrNotFound)
	}
	if err != nil {
		return types.MetricRecord{}, fmt.Errorf("query metric record: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) PutMetricRecord(ctx context.Context, record types.MetricRecord) error {
	if record.Revision == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO metric_records (agent_id, date, revision, quality, handle_time_seconds, retention_rate, customer_voice_score)
			 VALUES (?, ?, 1, ?, ?, ?, ?)`,
			record.AgentID, record.Date,
			nullable(record.Quality), nullable(record.HandleTimeSeconds),
			nullable(record.RetentionRate), nullable(record.CustomerVoiceScore))
		if err != nil {
			// A concurrent insert trips the primary key
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("insert metric record %s/%s: %w", record.AgentID, record.Date, ErrConflict)
			}
			return fmt.Errorf("insert metric record %s/%s: %w", record.AgentID, record.Date, err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE metric_records
		 SET revision = revision + 1, quality = ?, handle_time_seconds = ?, retention_rate = ?, customer_voice_score = ?
		 WHERE agent_id = ? AND date = ? AND revision = ?`,
		nullable(record.Quality), nullable(record.HandleTimeSeconds),
		nullable(record.RetentionRate), nullable(record.CustomerVoiceScore),
		record.AgentID, record.Date, record.Revision)
	if err != nil {
		return fmt.Errorf("update metric record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update metric record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("metric record %s/%s revision %d stale: %w", record.AgentID, record.Date, record.Revision, ErrConflict)
	}
	return nil
}

func (s *SQLiteStore) ListMetricRecords(ctx context.Context, agentID string) ([]types.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, date, revision, quality, handle_time_seconds, retention_rate, customer_voice_score
		 FROM metric_records WHERE agent_id = ? ORDER BY date`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list metric records: %w", err)
	}
	defer rows.Close()

	var records []types.MetricRecord
	for rows.Next() {
		record, err := scanMetricRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) PutLeave(ctx context.Context, leave types.LeaveRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leave_records (id, agent_id, start_date, end_date, status) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id, start_date = excluded.start_date,
		 end_date = excluded.end_date, status = excluded.status`,
		leave.ID, leave.AgentID, leave.StartDate, leave.EndDate, string(leave.Status))
	if err != nil {
		return fmt.Errorf("put leave %s: %w", leave.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListLeaveByAgent(ctx context.Context, agentID string) ([]types.LeaveRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, start_date, end_date, status FROM leave_records WHERE agent_id = ? ORDER BY start_date`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list leave: %w", err)
	}
	defer rows.Close()

	var records []types.LeaveRecord
	for rows.Next() {
		var leave types.LeaveRecord
		var status string
		if err := rows.Scan(&leave.ID, &leave.AgentID, &leave.StartDate, &leave.EndDate, &status); err != nil {
			return nil, fmt.Errorf("scan leave: %w", err)
		}
		leave.Status = types.LeaveStatus(status)
		records = append(records, leave)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) PutSession(ctx context.Context, session types.CoachingSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coaching_sessions (id, agent_id, scheduled_date, status, effectiveness) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id, scheduled_date = excluded.scheduled_date,
		 status = excluded.status, effectiveness = excluded.effectiveness`,
		session.ID, session.AgentID, session.ScheduledDate, string(session.Status), string(session.Effectiveness))
	if err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListSessionsByAgent(ctx context.Context, agentID string) ([]types.CoachingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, scheduled_date, status, effectiveness FROM coaching_sessions WHERE agent_id = ? ORDER BY scheduled_date`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []types.CoachingSession
	for rows.Next() {
		var session types.CoachingSession
		var status, effectiveness string
		if err := rows.Scan(&session.ID, &session.AgentID, &session.ScheduledDate, &status, &effectiveness); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.Status = types.SessionStatus(status)
		session.Effectiveness = types.Effectiveness(effectiveness)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) PutAudit(ctx context.Context, audit types.Audit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audits (id, agent_id, date, score) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id, date = excluded.date, score = excluded.score`,
		audit.ID, audit.AgentID, audit.Date, audit.Score)
	if err != nil {
		return fmt.Errorf("put audit %s: %w", audit.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListAuditsByAgent(ctx context.Context, agentID string) ([]types.Audit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, date, score FROM audits WHERE agent_id = ? ORDER BY date`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var audits []types.Audit
	for rows.Next() {
		var audit types.Audit
		if err := rows.Scan(&audit.ID, &audit.AgentID, &audit.Date, &audit.Score); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

func (s *SQLiteStore) PutAttendance(ctx context.Context, record types.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance_records (agent_id, date, source_leave_id) VALUES (?, ?, ?)
		 ON CONFLICT(agent_id, date) DO UPDATE SET source_leave_id = excluded.source_leave_id`,
		record.AgentID, record.Date, record.SourceLeaveID)
	if err != nil {
		return fmt.Errorf("put attendance %s/%s: %w", record.AgentID, record.Date, err)
	}
	return nil
}

func (s *SQLiteStore) ListAttendanceByAgent(ctx context.Context, agentID string) ([]types.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, date, source_leave_id FROM attendance_records WHERE agent_id = ? ORDER BY date`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []types.AttendanceRecord
	for rows.Next() {
		var record types.AttendanceRecord
		if err := rows.Scan(&record.AgentID, &record.Date, &record.SourceLeaveID); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) DeleteAttendanceByLeave(ctx context.Context, agentID, leaveID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM attendance_records WHERE agent_id = ? AND source_leave_id = ?`, agentID, leaveID)
	if err != nil {
		return 0, fmt.Errorf("delete attendance for leave %s: %w", leaveID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance for leave %s: %w", leaveID, err)
	}
	return int(affected), nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanMetricRecord(s scanner) (types.MetricRecord, error) {
	var record types.MetricRecord
	var quality, aht, srr, voc sql.NullFloat64
	if err := s.Scan(&record.AgentID, &record.Date, &record.Revision, &quality, &aht, &srr, &voc); err != nil {
		return types.MetricRecord{}, err
	}
	record.Quality = fromNullable(quality)
	record.HandleTimeSeconds = fromNullable(aht)
	record.RetentionRate = fromNullable(srr)
	record.CustomerVoiceScore = fromNullable(voc)
	return record, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
