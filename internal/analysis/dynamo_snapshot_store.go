package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

const snapshotTTL = 30 * 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type snapshotField struct {
	FieldName        string `dynamodbav:"fieldName"`
	IsVisible        bool   `dynamodbav:"isVisible"`
	IsRequired       bool   `dynamodbav:"isRequired"`
	VisibilityReason string `dynamodbav:"visibilityReason"`
	RuleID           string `dynamodbav:"ruleId,omitempty"`
	RecommendationID string `dynamodbav:"recommendationId,omitempty"`
}

// snapshotRecord is one DynamoDB item per session, keyed by sessionId.
type snapshotRecord struct {
	SessionID string          `dynamodbav:"sessionId"`
	Fields    []snapshotField `dynamodbav:"fields"`
	UpdatedAt string          `dynamodbav:"updatedAt"`
	ExpiresAt int64           `dynamodbav:"expiresAt,omitempty"`
}

// DynamoSnapshotStore keeps visibility snapshots in a DynamoDB table.
type DynamoSnapshotStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ SnapshotStore = (*DynamoSnapshotStore)(nil)

// NewDynamoSnapshotStore builds a store backed by the provided DynamoDB client.
func NewDynamoSnapshotStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoSnapshotStore {
	if client == nil {
		panic("analysis: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("analysis: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoSnapshotStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// ReplaceSnapshot overwrites the session's item with the new visibility.
func (s *DynamoSnapshotStore) ReplaceSnapshot(ctx context.Context, sessionID string, visibility disclosure.Visibility) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}
	now := time.Now().UTC()
	record := snapshotRecord{
		SessionID: sessionID,
		Fields:    toSnapshotFields(visibility),
		UpdatedAt: now.Format(time.RFC3339Nano),
		ExpiresAt: now.Add(snapshotTTL).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("analysis: failed to marshal snapshot: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("analysis: failed to persist snapshot: %w", err)
	}
	return nil
}

// GetSnapshot fetches the session's stored visibility.
func (s *DynamoSnapshotStore) GetSnapshot(ctx context.Context, sessionID string) (disclosure.Visibility, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: failed to fetch snapshot: %w", err)
	}
	if out.Item == nil {
		return nil, ErrSnapshotNotFound
	}

	var record snapshotRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("analysis: failed to decode snapshot: %w", err)
	}

	visibility := make(disclosure.Visibility, len(record.Fields))
	for _, f := range record.Fields {
		visibility[f.FieldName] = disclosure.FieldVisibility{
			FieldName:        f.FieldName,
			IsVisible:        f.IsVisible,
			IsRequired:       f.IsRequired,
			VisibilityReason: disclosure.Reason(f.VisibilityReason),
			RuleID:           f.RuleID,
			RecommendationID: f.RecommendationID,
		}
	}
	return visibility, nil
}

func toSnapshotFields(visibility disclosure.Visibility) []snapshotField {
	fields := make([]snapshotField, 0, len(visibility))
	for name, state := range visibility {
		fields = append(fields, snapshotField{
			FieldName:        name,
			IsVisible:        state.IsVisible,
			IsRequired:       state.IsRequired,
			VisibilityReason: string(state.VisibilityReason),
			RuleID:           state.RuleID,
			RecommendationID: state.RecommendationID,
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].FieldName < fields[j].FieldName })
	return fields
}
