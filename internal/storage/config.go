package storage

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Mode selects the storage backend
type Mode string

const (
	ModeMemory Mode = "memory"
	ModeSQLite Mode = "sqlite"
	ModeDynamo Mode = "dynamo"
)

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
)

// Config holds storage configuration
type Config struct {
	Mode       Mode
	SQLitePath string
	Dynamo     DynamoConfig
}

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode            DynamoMode
	Endpoint        string // for local mode
	Region          string
	MetricsTable    string
	LeaveTable      string
	SessionsTable   string
	AuditsTable     string
	AttendanceTable string
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("STORE_MODE", "memory"))
	if mode != ModeSQLite && mode != ModeDynamo {
		mode = ModeMemory
	}

	dynamoMode := DynamoMode(getEnv("DYNAMO_MODE", "local"))
	if dynamoMode != DynamoModeAWS {
		dynamoMode = DynamoModeLocal
	}

	return Config{
		Mode:       mode,
		SQLitePath: getEnv("SQLITE_PATH", "scorecard.db"),
		Dynamo: DynamoConfig{
			Mode:            dynamoMode,
			Endpoint:        getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:          getEnv("DYNAMO_REGION", "eu-central-1"),
			MetricsTable:    getEnv("DYNAMO_METRICS_TABLE", "scorecard-metric-records"),
			LeaveTable:      getEnv("DYNAMO_LEAVE_TABLE", "scorecard-leave-records"),
			SessionsTable:   getEnv("DYNAMO_SESSIONS_TABLE", "scorecard-coaching-sessions"),
			AuditsTable:     getEnv("DYNAMO_AUDITS_TABLE", "scorecard-audits"),
			AttendanceTable: getEnv("DYNAMO_ATTENDANCE_TABLE", "scorecard-attendance"),
		},
	}
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case ModeDynamo:
		return NewDynamoStore(ctx, cfg.Dynamo, logger)
	default:
		logger.Info().Msg("using in-memory store (STORE_MODE=memory)")
		return NewMemoryStore(), nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
