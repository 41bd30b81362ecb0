package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/types"
)

// DynamoStore implements Store using AWS DynamoDB. Metric rows are
// keyed (AgentID, Date); the revision condition on PutItem provides the
// conditional-upsert semantics the merge engine relies on.
type DynamoStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoStore creates a DynamoDB-backed store
func NewDynamoStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without
		// LoadDefaultConfig. LoadDefaultConfig probes the EC2 IMDS
		// endpoint which hangs when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoStore) GetMetricRecord(ctx context.Context, agentID, date string) (types.MetricRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.MetricsTable),
		Key: map[string]dbtypes.AttributeValue{
			"AgentID": &dbtypes.AttributeValueMemberS{Value: agentID},
			"Date":    &dbtypes.AttributeValueMemberS{Value: date},
		},
	})
	if err != nil {
		return types.MetricRecord{}, fmt.Errorf("failed to get metric record: %w", err)
	}
	if result.Item == nil {
		return types.MetricRecord{}, fmt.Errorf("metric record %s/%s: %w", agentID, date, ErrNotFound)
	}

	var record types.MetricRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return types.MetricRecord{}, fmt.Errorf("failed to unmarshal metric record: %w", err)
	}
	return record, nil
}

func (s *DynamoStore) PutMetricRecord(ctx context.Context, record types.MetricRecord) error {
	expected := record.Revision
	record.Revision++

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal metric record: %w", err)
	}

	var cond expression.ConditionBuilder
	if expected == 0 {
		cond = expression.AttributeNotExists(expression.Name("AgentID"))
	} else {
		cond = expression.Name("Revision").Equal(expression.Value(expected))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.config.MetricsTable),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var checkFailed *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &checkFailed) {
			return fmt.Errorf("metric record %s/%s revision %d stale: %w", record.AgentID, record.Date, expected, ErrConflict)
		}
		return fmt.Errorf("failed to put metric record: %w", err)
	}
	return nil
}

func (s *DynamoStore) ListMetricRecords(ctx context.Context, agentID string) ([]types.MetricRecord, error) {
	var records []types.MetricRecord
	if err := s.queryByAgent(ctx, s.config.MetricsTable, agentID, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *DynamoStore) PutLeave(ctx context.Context, leave types.LeaveRecord) error {
	return s.putItem(ctx, s.config.LeaveTable, leave)
}

func (s *DynamoStore) ListLeaveByAgent(ctx context.Context, agentID string) ([]types.LeaveRecord, error) {
	var records []types.LeaveRecord
	if err := s.queryByAgent(ctx, s.config.LeaveTable, agentID, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *DynamoStore) PutSession(ctx context.Context, session types.CoachingSession) error {
	return s.putItem(ctx, s.config.SessionsTable, session)
}

func (s *DynamoStore) ListSessionsByAgent(ctx context.Context, agentID string) ([]types.CoachingSession, error) {
	var sessions []types.CoachingSession
	if err := s.queryByAgent(ctx, s.config.SessionsTable, agentID, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *DynamoStore) PutAudit(ctx context.Context, audit types.Audit) error {
	return s.putItem(ctx, s.config.AuditsTable, audit)
}

func (s *DynamoStore) ListAuditsByAgent(ctx context.Context, agentID string) ([]types.Audit, error) {
	var audits []types.Audit
	if err := s.queryByAgent(ctx, s.config.AuditsTable, agentID, &audits); err != nil {
		return nil, err
	}
	return audits, nil
}

func (s *DynamoStore) PutAttendance(ctx context.Context, record types.AttendanceRecord) error {
	return s.putItem(ctx, s.config.AttendanceTable, record)
}

func (s *DynamoStore) ListAttendanceByAgent(ctx context.Context, agentID string) ([]types.AttendanceRecord, error) {
	var records []types.AttendanceRecord
	if err := s.queryByAgent(ctx, s.config.AttendanceTable, agentID, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *DynamoStore) DeleteAttendanceByLeave(ctx context.Context, agentID, leaveID string) (int, error) {
	var records []types.AttendanceRecord
	if err := s.queryByAgent(ctx, s.config.AttendanceTable, agentID, &records); err != nil {
		return 0, err
	}

	deleted := 0
	for _, record := range records {
		if record.SourceLeaveID != leaveID {
			continue
		}
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.config.AttendanceTable),
			Key: map[string]dbtypes.AttributeValue{
				"AgentID": &dbtypes.AttributeValueMemberS{Value: record.AgentID},
				"Date":    &dbtypes.AttributeValueMemberS{Value: record.Date},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete attendance record: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *DynamoStore) putItem(ctx context.Context, tableName string, value any) error {
	item, err := attributevalue.MarshalMap(value)
	if err != nil {
		return fmt.Errorf("failed to marshal item for %s: %w", tableName, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item to %s: %w", tableName, err)
	}
	return nil
}

func (s *DynamoStore) queryByAgent(ctx context.Context, tableName, agentID string, out any) error {
	keyCond := expression.Key("AgentID").Equal(expression.Value(agentID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", tableName, err)
	}

	if err := attributevalue.UnmarshalListOfMaps(result.Items, out); err != nil {
		return fmt.Errorf("failed to unmarshal items from %s: %w", tableName, err)
	}
	return nil
}
