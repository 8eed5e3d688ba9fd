package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"legalmeet-agent/internal/domain"
)

const (
	pkPrefix       = "SENDER#"
	skConversation = "CONVERSATION"
	dynamoTTL      = 24 * time.Hour // native table TTL, backstop for the sweep
)

// dynamodbAPI is the minimal DynamoDB interface required by Dynamo.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Dynamo keeps one item per sender holding the whole transcript. The
// table's TTL attribute lets DynamoDB expire idle conversations on its
// own; EvictStale additionally sweeps by last activity for callers that
// need deterministic eviction.
type Dynamo struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamo creates a DynamoDB-backed store.
func NewDynamo(api dynamodbAPI, tableName string) (*Dynamo, error) {
	if api == nil {
		return nil, errors.New("store: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("store: table name must not be empty")
	}
	return &Dynamo{api: api, tableName: tableName}, nil
}

func senderPK(senderID string) string {
	return pkPrefix + senderID
}

// Get implements Store.
func (d *Dynamo) Get(ctx context.Context, senderID string) (*domain.Conversation, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: senderPK(senderID)},
			"SK": &types.AttributeValueMemberS{Value: skConversation},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("store: dynamo get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	conv, err := itemToConversation(out.Item)
	if err != nil {
		return nil, fmt.Errorf("store: dynamo decode: %w", err)
	}
	return conv, nil
}

// Put implements Store.
func (d *Dynamo) Put(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil || conv.SenderID == "" {
		return errors.New("store: dynamo put: sender id is required")
	}
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      conversationItem(conv),
	})
	if err != nil {
		return fmt.Errorf("store: dynamo put: %w", err)
	}
	return nil
}

// Delete implements Store.
func (d *Dynamo) Delete(ctx context.Context, senderID string) error {
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: senderPK(senderID)},
			"SK": &types.AttributeValueMemberS{Value: skConversation},
		},
	})
	if err != nil {
		return fmt.Errorf("store: dynamo delete: %w", err)
	}
	return nil
}

// EvictStale implements Store by scanning for items whose lastActivity
// is older than the cutoff and deleting them one by one.
func (d *Dynamo) EvictStale(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl).Unix()

	in := &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("lastActivity < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff, 10)},
		},
		ProjectionExpression: aws.String("PK, SK"),
	}

	removed := 0
	for {
		out, err := d.api.Scan(ctx, in)
		if err != nil {
			return removed, fmt.Errorf("store: dynamo scan stale: %w", err)
		}
		for _, item := range out.Items {
			_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(d.tableName),
				Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				},
			})
			if err != nil {
				return removed, fmt.Errorf("store: dynamo delete stale: %w", err)
			}
			removed++
		}
		if len(out.LastEvaluatedKey) == 0 {
			return removed, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Close implements Store. The SDK client has no resources to release.
func (d *Dynamo) Close() error {
	return nil
}

func conversationItem(conv *domain.Conversation) map[string]types.AttributeValue {
	turns := make([]types.AttributeValue, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		turns = append(turns, &types.AttributeValueMemberM{
			Value: map[string]types.AttributeValue{
				"role":    &types.AttributeValueMemberS{Value: t.Role},
				"content": &types.AttributeValueMemberS{Value: t.Content},
				"ts":      &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Timestamp.Unix(), 10)},
			},
		})
	}
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: senderPK(conv.SenderID)},
		"SK":           &types.AttributeValueMemberS{Value: skConversation},
		"senderId":     &types.AttributeValueMemberS{Value: conv.SenderID},
		"turns":        &types.AttributeValueMemberL{Value: turns},
		"handoffSent":  &types.AttributeValueMemberBOOL{Value: conv.HandoffSent},
		"lastActivity": &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.LastActivity.Unix(), 10)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.LastActivity.Add(dynamoTTL).Unix(), 10)},
	}
}

func itemToConversation(item map[string]types.AttributeValue) (*domain.Conversation, error) {
	senderID, err := strAttr(item, "senderId")
	if err != nil {
		return nil, err
	}
	lastActivity, err := intAttr(item, "lastActivity")
	if err != nil {
		return nil, err
	}

	conv := &domain.Conversation{
		SenderID:     senderID,
		LastActivity: time.Unix(lastActivity, 0).UTC(),
	}

	if v, ok := item["handoffSent"]; ok {
		b, ok := v.(*types.AttributeValueMemberBOOL)
		if !ok {
			return nil, errors.New(`store: attribute "handoffSent" is not a bool`)
		}
		conv.HandoffSent = b.Value
	}

	rawTurns, ok := item["turns"]
	if !ok {
		return conv, nil
	}
	list, ok := rawTurns.(*types.AttributeValueMemberL)
	if !ok {
		return nil, errors.New(`store: attribute "turns" is not a list`)
	}
	for _, entry := range list.Value {
		m, ok := entry.(*types.AttributeValueMemberM)
		if !ok {
			return nil, errors.New("store: turn entry is not a map")
		}
		role, err := strAttr(m.Value, "role")
		if err != nil {
			return nil, err
		}
		content, err := strAttr(m.Value, "content")
		if err != nil {
			return nil, err
		}
		ts, err := intAttr(m.Value, "ts")
		if err != nil {
			return nil, err
		}
		conv.Turns = append(conv.Turns, domain.Turn{
			Role:      role,
			Content:   content,
			Timestamp: time.Unix(ts, 0).UTC(),
		})
	}
	return conv, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("store: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("store: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("store: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("store: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("store: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
