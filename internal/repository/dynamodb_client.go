package repository

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

	"voice-relay/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
	// DynamoDB caps a transaction at 100 items.
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client archives ended-call transcripts to a DynamoDB table. Archived calls
// are write-once audit records; live sessions are never rebuilt from them.
// The relay only writes through ArchiveCall. GetCall and GetTranscript are the
// read side for operator tooling and must decode whatever ArchiveCall writes.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// callPK returns the DynamoDB partition key for a call.
func callPK(callID string) string {
	return "CALL#" + callID
}

// turnSK returns the zero-padded sort key for the i-th turn so lexical order
// matches transcript order.
func turnSK(i int) string {
	return fmt.Sprintf("%s%05d", skPrefixTurn, i)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// ArchiveCall writes the meta record and every turn of an ended call. Turns
// beyond one transaction are written in further transactions.
func (c *Client) ArchiveCall(ctx context.Context, rec domain.CallRecord, turns []domain.Turn) error {
	if strings.TrimSpace(rec.CallID) == "" {
		return errors.New("repository: ArchiveCall: call id is required")
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = c.now()
	}
	rec.Turns = len(turns)
	ttl := c.ttlValue()

	items := make([]types.TransactWriteItem, 0, len(turns)+1)
	items = append(items, c.put(metaItem(rec, ttl), true))
	for i, t := range turns {
		items = append(items, c.put(turnItem(rec.CallID, i, t, ttl), true))
	}

	for start := 0; start < len(items); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(items) {
			end = len(items)
		}
		if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		}); err != nil {
			return fmt.Errorf("repository: ArchiveCall: %w", err)
		}
	}
	return nil
}

func (c *Client) put(item map[string]types.AttributeValue, onlyNew bool) types.TransactWriteItem {
	p := &types.Put{
		TableName: aws.String(c.tableName),
		Item:      item,
	}
	if onlyNew {
		p.ConditionExpression = aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	}
	return types.TransactWriteItem{Put: p}
}

// GetCall returns the archived meta record for callID; found is false when
// the call was never archived.
func (c *Client) GetCall(ctx context.Context, callID string) (rec domain.CallRecord, found bool, err error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: callPK(callID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.CallRecord{}, false, fmt.Errorf("repository: GetCall get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.CallRecord{}, false, nil
	}
	rec, err = itemToCallRecord(out.Item)
	if err != nil {
		return domain.CallRecord{}, false, fmt.Errorf("repository: GetCall decode: %w", err)
	}
	return rec, true, nil
}

// GetTranscript returns the archived turns of callID in transcript order.
func (c *Client) GetTranscript(ctx context.Context, callID string) ([]domain.Turn, error) {
	var (
		turns []domain.Turn
		start map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: callPK(callID)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: GetTranscript query: %w", err)
		}
		for _, item := range out.Items {
			t, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: GetTranscript unmarshal: %w", err)
			}
			turns = append(turns, t)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return turns, nil
		}
		start = out.LastEvaluatedKey
	}
}

func metaItem(rec domain.CallRecord, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: callPK(rec.CallID)},
		"SK":          &types.AttributeValueMemberS{Value: skMeta},
		"callId":      &types.AttributeValueMemberS{Value: rec.CallID},
		"endedAt":     &types.AttributeValueMemberS{Value: rec.EndedAt.UTC().Format(time.RFC3339)},
		"endedReason": &types.AttributeValueMemberS{Value: rec.EndedReason},
		"turns":       &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Turns)},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func turnItem(callID string, i int, t domain.Turn, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: callPK(callID)},
		"SK":      &types.AttributeValueMemberS{Value: turnSK(i)},
		"callId":  &types.AttributeValueMemberS{Value: callID},
		"role":    &types.AttributeValueMemberS{Value: string(t.Role)},
		"content": &types.AttributeValueMemberS{Value: t.Content},
		"ttl":     &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToTurn converts a DynamoDB attribute map to a Turn.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Turn{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Turn{}, err
	}
	return domain.Turn{Role: domain.Role(role), Content: content}, nil
}

func itemToCallRecord(item map[string]types.AttributeValue) (domain.CallRecord, error) {
	callID, err := strAttr(item, "callId")
	if err != nil {
		return domain.CallRecord{}, err
	}
	turns, err := intAttr(item, "turns")
	if err != nil {
		return domain.CallRecord{}, err
	}
	rec := domain.CallRecord{CallID: callID, Turns: turns}
	rec.EndedReason, _ = strAttr(item, "endedReason") // allow empty
	if ended, err := strAttr(item, "endedAt"); err == nil {
		if ts, err := time.Parse(time.RFC3339, ended); err == nil {
			rec.EndedAt = ts
		}
	}
	return rec, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
