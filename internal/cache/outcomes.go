package cache

import (
	"sync"
	"time"

	"github.com/kmerritt/scorecard/internal/types"
)

// defaultOutcomeCapacity bounds the recent-outcome buffer
const defaultOutcomeCapacity = 200

// RecordedOutcome is one sync-engine reaction with its observed time
type RecordedOutcome struct {
	Outcome    types.SyncOutcome `json:"outcome"`
	ObservedAt time.Time         `json:"observedAt"`
}

// OutcomeCache keeps the most recent sync outcomes in memory for the
// dashboard's activity feed. Oldest entries fall off when the buffer is
// full.
type OutcomeCache struct {
	outcomes []RecordedOutcome
	capacity int
	mu       sync.RWMutex
}

// NewOutcomeCache creates a cache with the default capacity
func NewOutcomeCache() *OutcomeCache {
	return &OutcomeCache{
		outcomes: make([]RecordedOutcome, 0, defaultOutcomeCapacity),
		capacity: defaultOutcomeCapacity,
	}
}

// Add appends an outcome, evicting the oldest entry when full
func (c *OutcomeCache) Add(outcome types.SyncOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.outcomes) >= c.capacity {
		c.outcomes = c.outcomes[1:]
	}
	c.outcomes = append(c.outcomes, RecordedOutcome{
		Outcome:    outcome,
		ObservedAt: time.Now().UTC(),
	})
}

// Recent returns up to n outcomes, newest first
func (c *OutcomeCache) Recent(n int) []RecordedOutcome {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || n > len(c.outcomes) {
		n = len(c.outcomes)
	}
	recent := make([]RecordedOutcome, n)
	for i := 0; i < n; i++ {
		recent[i] = c.outcomes[len(c.outcomes)-1-i]
	}
	return recent
}

// Size returns the current number of cached outcomes
func (c *OutcomeCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.outcomes)
}
