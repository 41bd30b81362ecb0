package ticker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/cache"
	"github.com/kmerritt/scorecard/internal/metrics"
	"github.com/kmerritt/scorecard/internal/websocket"
)

// StatsMessage is the periodic dashboard heartbeat sent to clients
type StatsMessage struct {
	Timestamp     string `json:"timestamp"`
	ServerTime    int64  `json:"serverTime"`
	RosterCount   int    `json:"rosterCount"`
	UploadsTotal  int64  `json:"uploadsTotal"`
	RecordsMerged int64  `json:"recordsMerged"`
	ActiveClients int    `json:"activeClients"`
}

// Ticker periodically broadcasts processing stats to the hub
type Ticker struct {
	hub      *websocket.Hub
	roster   *cache.Roster
	interval time.Duration
	logger   zerolog.Logger
}

// NewTicker creates a new Ticker
func NewTicker(hub *websocket.Hub, roster *cache.Roster, interval time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		hub:      hub,
		roster:   roster,
		interval: interval,
		logger:   logger,
	}
}

// Start begins broadcasting stats updates
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case now := <-ticker.C:
			m := metrics.Get()
			message := StatsMessage{
				Timestamp:     now.Format(time.RFC3339),
				ServerTime:    now.Unix(),
				RosterCount:   t.roster.Count(),
				UploadsTotal:  m.GetUploadsTotal(),
				RecordsMerged: m.GetRecordsMergedTotal(),
				ActiveClients: t.hub.ClientCount(),
			}

			data, err := json.Marshal(message)
			if err != nil {
				t.logger.Error().Err(err).Msg("failed to marshal stats message")
				continue
			}

			t.hub.Broadcast(data)
			t.logger.Debug().
				Str("timestamp", message.Timestamp).
				Int("clients", t.hub.ClientCount()).
				Msg("broadcasted stats update")
		}
	}
}
