// Package merge owns all writes to per-agent per-day metric records.
// Upserts are idempotent, preserve fields the incoming upload did not
// observe, and serialize writers per (agentID, date) key.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/metrics"
	"github.com/kmerritt/scorecard/internal/storage"
	"github.com/kmerritt/scorecard/internal/types"
)

// ErrConflict is returned when the bounded retry budget is exhausted by
// concurrent writers racing on the same key.
var ErrConflict = errors.New("metric merge conflict")

// maxAttempts bounds transparent retries on storage write conflicts
const maxAttempts = 3

// Engine merges partial metric observations into the record store
type Engine struct {
	store  storage.Store
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a merge engine backed by store
func New(store storage.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "merge").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing writers for one (agentID, date)
// key. Unrelated keys proceed independently; a single global lock would
// serialize uploads for different agents for no reason.
func (e *Engine) keyLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// Merge upserts fields into the record for (agentID, date). Each field
// merges independently: an incoming non-nil value replaces the stored
// one, an incoming nil never clobbers a stored value. Out-of-range
// fields are rejected individually and reported in fieldErrors without
// blocking the valid fields of the same row.
func (e *Engine) Merge(ctx context.Context, agentID, date string, fields types.MetricFields) (types.MetricRecord, []string, error) {
	if agentID == "" {
		return types.MetricRecord{}, nil, errors.New("agentID is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return types.MetricRecord{}, nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}

	valid, fieldErrors := validateFields(fields)

	key := agentID + "|" + date
	lock := e.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record, err := e.store.GetMetricRecord(ctx, agentID, date)
		if errors.Is(err, storage.ErrNotFound) {
			record = types.MetricRecord{AgentID: agentID, Date: date}
		} else if err != nil {
			return types.MetricRecord{}, fieldErrors, fmt.Errorf("read metric record: %w", err)
		}

		if !applyFields(&record, valid) {
			// Nothing to write: every incoming field was nil or
			// identical to the stored value. Idempotent replays land
			// here without touching storage.
			return record, fieldErrors, nil
		}

		err = e.store.PutMetricRecord(ctx, record)
		if err == nil {
			record.Revision++
			metrics.Get().RecordMerge()
			e.logger.Debug().
				Str("agent_id", agentID).
				Str("date", date).
				Int("attempt", attempt).
				Msg("metric record merged")
			return record, fieldErrors, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return types.MetricRecord{}, fieldErrors, fmt.Errorf("write metric record: %w", err)
		}
		lastErr = err
		metrics.Get().RecordMergeConflict()
		e.logger.Debug().
			Str("agent_id", agentID).
			Str("date", date).
			Int("attempt", attempt).
			Msg("metric merge retry after write conflict")
	}

	return types.MetricRecord{}, fieldErrors, fmt.Errorf("%w for %s/%s after %d attempts: %v", ErrConflict, agentID, date, maxAttempts, lastErr)
}

// validateFields checks each field's range independently. Invalid
// fields are dropped from the returned set and described in the error
// list.
func validateFields(fields types.MetricFields) (types.MetricFields, []string) {
	var fieldErrors []string

	checkPercent := func(name string, v *float64) *float64 {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > 100 {
			fieldErrors = append(fieldErrors, fmt.Sprintf("%s %.2f out of range [0,100]", name, *v))
			return nil
		}
		return v
	}

	valid := types.MetricFields{
		Quality:            checkPercent("quality", fields.Quality),
		RetentionRate:      checkPercent("retentionRate", fields.RetentionRate),
		CustomerVoiceScore: checkPercent("customerVoiceScore", fields.CustomerVoiceScore),
	}
	if fields.HandleTimeSeconds != nil {
		if *fields.HandleTimeSeconds < 0 {
			fieldErrors = append(fieldErrors, fmt.Sprintf("handleTimeSeconds %.2f must be >= 0", *fields.HandleTimeSeconds))
		} else {
			valid.HandleTimeSeconds = fields.HandleTimeSeconds
		}
	}
	return valid, fieldErrors
}

// applyFields merges incoming non-nil values into record and reports
// whether anything actually changed.
func applyFields(record *types.MetricRecord, incoming types.MetricFields) bool {
	changed := false
	merge := func(dst **float64, src *float64) {
		if src == nil {
			return
		}
		if *dst != nil && **dst == *src {
			return
		}
		v := *src
		*dst = &v
		changed = true
	}
	merge(&record.Quality, incoming.Quality)
	merge(&record.HandleTimeSeconds, incoming.HandleTimeSeconds)
	merge(&record.RetentionRate, incoming.RetentionRate)
	merge(&record.CustomerVoiceScore, incoming.CustomerVoiceScore)
	return changed
}
