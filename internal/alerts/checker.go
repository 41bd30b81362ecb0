package alerts

import (
	"fmt"

	"github.com/kmerritt/scorecard/internal/types"
)

// Severity grades how urgent an alert is
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one threshold violation on a stored metric record
type Alert struct {
	AgentID  string   `json:"agentId"`
	Date     string   `json:"date"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Thresholds below/above which metric values raise alerts
const (
	qualityWarning   = 75.0
	qualityCritical  = 60.0
	handleTimeLimit  = 600.0
	retentionWarning = 70.0
	voiceWarning     = 60.0
)

// CheckMetricAlerts evaluates alert rules over a slice of metric
// records. Nil fields never alert.
func CheckMetricAlerts(records []types.MetricRecord) []Alert {
	var alerts []Alert
	for _, record := range records {
		if record.Quality != nil {
			switch {
			case *record.Quality < qualityCritical:
				alerts = append(alerts, newAlert(record, "quality_low", SeverityCritical,
					fmt.Sprintf("quality %.1f below %.0f", *record.Quality, qualityCritical)))
			case *record.Quality < qualityWarning:
				alerts = append(alerts, newAlert(record, "quality_low", SeverityWarning,
					fmt.Sprintf("quality %.1f below %.0f", *record.Quality, qualityWarning)))
			}
		}

		if record.HandleTimeSeconds != nil && *record.HandleTimeSeconds > handleTimeLimit {
			alerts = append(alerts, newAlert(record, "aht_high", SeverityWarning,
				fmt.Sprintf("handle time %.0fs above %.0fs", *record.HandleTimeSeconds, handleTimeLimit)))
		}

		if record.RetentionRate != nil && *record.RetentionRate < retentionWarning {
			alerts = append(alerts, newAlert(record, "srr_low", SeverityWarning,
				fmt.Sprintf("retention rate %.1f below %.0f", *record.RetentionRate, retentionWarning)))
		}

		if record.CustomerVoiceScore != nil && *record.CustomerVoiceScore < voiceWarning {
			alerts = append(alerts, newAlert(record, "voc_low", SeverityWarning,
				fmt.Sprintf("customer voice %.1f below %.0f", *record.CustomerVoiceScore, voiceWarning)))
		}
	}
	return alerts
}

func newAlert(record types.MetricRecord, rule string, severity Severity, message string) Alert {
	return Alert{
		AgentID:  record.AgentID,
		Date:     record.Date,
		Rule:     rule,
		Severity: severity,
		Message:  message,
	}
}
