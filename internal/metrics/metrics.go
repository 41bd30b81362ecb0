package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kmerritt/scorecard/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Upload pipeline metrics
	UploadsTotal      int64
	UploadErrorsTotal int64
	RowsIngestedTotal int64
	RowsRejectedTotal int64

	// Resolution metrics
	NamesResolvedTotal   int64
	NamesUnresolvedTotal int64

	// Merge metrics
	RecordsMergedTotal  int64
	MergeConflictsTotal int64

	// Sync engine metrics
	SyncEventsTotal        int64
	CoachingSuggestedTotal int64
	SessionsFlaggedTotal   int64
	AttendanceCreatedTotal int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	activeConnections            int64

	// Classification breakdown
	batchesByReportType map[types.ReportType]int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			batchesByReportType:  make(map[types.ReportType]int64),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordUpload records one processed upload with its row counts
func (m *Metrics) RecordUpload(reportType types.ReportType, ingested, rejected int) {
	m.mu.Lock()
	m.UploadsTotal++
	m.RowsIngestedTotal += int64(ingested)
	m.RowsRejectedTotal += int64(rejected)
	m.batchesByReportType[reportType]++
	m.mu.Unlock()
}

// RecordUploadError increments the failed upload counter
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	m.UploadErrorsTotal++
	m.mu.Unlock()
}

// RecordResolution records the outcome of one name resolution
func (m *Metrics) RecordResolution(matched bool) {
	m.mu.Lock()
	if matched {
		m.NamesResolvedTotal++
	} else {
		m.NamesUnresolvedTotal++
	}
	m.mu.Unlock()
}

// RecordMerge increments the merged record counter
func (m *Metrics) RecordMerge() {
	m.mu.Lock()
	m.RecordsMergedTotal++
	m.mu.Unlock()
}

// RecordMergeConflict increments the merge conflict counter
func (m *Metrics) RecordMergeConflict() {
	m.mu.Lock()
	m.MergeConflictsTotal++
	m.mu.Unlock()
}

// RecordSyncEvent records one sync engine reaction
func (m *Metrics) RecordSyncEvent(suggestedCoaching bool, sessionsFlagged, attendanceCreated int) {
	m.mu.Lock()
	m.SyncEventsTotal++
	if suggestedCoaching {
		m.CoachingSuggestedTotal++
	}
	m.SessionsFlaggedTotal += int64(sessionsFlagged)
	m.AttendanceCreatedTotal += int64(attendanceCreated)
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetUploadsTotal returns the processed upload count
func (m *Metrics) GetUploadsTotal() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.UploadsTotal
}

// GetRecordsMergedTotal returns the merged record count
func (m *Metrics) GetRecordsMergedTotal() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RecordsMergedTotal
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("scorecard_uptime_seconds", time.Since(m.startTime).Seconds())

		// Upload pipeline metrics
		write("scorecard_uploads_total", m.UploadsTotal)
		write("scorecard_upload_errors_total", m.UploadErrorsTotal)
		write("scorecard_rows_ingested_total", m.RowsIngestedTotal)
		write("scorecard_rows_rejected_total", m.RowsRejectedTotal)

		// Resolution metrics
		write("scorecard_names_resolved_total", m.NamesResolvedTotal)
		write("scorecard_names_unresolved_total", m.NamesUnresolvedTotal)

		// Merge metrics
		write("scorecard_records_merged_total", m.RecordsMergedTotal)
		write("scorecard_merge_conflicts_total", m.MergeConflictsTotal)

		// Sync engine metrics
		write("scorecard_sync_events_total", m.SyncEventsTotal)
		write("scorecard_coaching_suggested_total", m.CoachingSuggestedTotal)
		write("scorecard_sessions_flagged_total", m.SessionsFlaggedTotal)
		write("scorecard_attendance_created_total", m.AttendanceCreatedTotal)

		// WebSocket metrics
		write("scorecard_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("scorecard_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("scorecard_websocket_active_connections", m.activeConnections)

		// Classification breakdown
		for reportType, count := range m.batchesByReportType {
			write("scorecard_batches_by_report_type", count, "report_type", string(reportType))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("scorecard_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
