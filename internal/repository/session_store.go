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

	"drivethru-bot/internal/domain"
)

const (
	skState     = "STATE#"
	ttlDuration = 30 * 24 * time.Hour // idle sessions fall out via table TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client stores one session record per conversation in a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessPK returns the DynamoDB partition key for a conversation session.
func sessPK(conversationID string) string {
	return "SESS#" + conversationID
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// GetSession reads the session record for a conversation. The read is
// consistent so a turn always sees the previous turn's write.
func (c *Client) GetSession(ctx context.Context, conversationID string) (domain.SessionRecord, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skState},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.SessionRecord{}, false, nil
	}

	rec, err := itemToRecord(out.Item)
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("repository: GetSession unmarshal: %w", err)
	}
	return rec, true, nil
}

// PutSession writes the record, bumping its revision. The write is
// conditional on the revision the caller read, so two overlapping turns for
// the same conversation cannot both win; the loser gets
// domain.ErrConversationConflict.
func (c *Client) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	if rec.Session.ConversationID == "" {
		return errors.New("repository: PutSession: conversation id is required")
	}

	next := rec
	next.Revision = rec.Revision + 1
	next.TTL = ttlValue()

	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      recordItem(next),
	}
	if rec.Revision == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK) OR revision = :rev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":rev": &types.AttributeValueMemberN{Value: "0"},
		}
	} else {
		in.ConditionExpression = aws.String("revision = :rev")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":rev": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Revision, 10)},
		}
	}

	if _, err := c.api.PutItem(ctx, in); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("repository: PutSession: %w", domain.ErrConversationConflict)
		}
		return fmt.Errorf("repository: PutSession: %w", err)
	}
	return nil
}

func recordItem(rec domain.SessionRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: sessPK(rec.Session.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: skState},
		"conversationId": &types.AttributeValueMemberS{Value: rec.Session.ConversationID},
		"sequence":       &types.AttributeValueMemberS{Value: string(rec.Session.ActiveSequence)},
		"cursor":         &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Session.Cursor)},
		"status":         &types.AttributeValueMemberS{Value: string(rec.Session.Status)},
		"intent":         &types.AttributeValueMemberS{Value: string(rec.Profile.Intent)},
		"firstName":      &types.AttributeValueMemberS{Value: rec.Profile.FirstName},
		"lastName":       &types.AttributeValueMemberS{Value: rec.Profile.LastName},
		"address":        &types.AttributeValueMemberS{Value: rec.Profile.Address},
		"phoneLastFour":  &types.AttributeValueMemberS{Value: rec.Profile.PhoneLastFour},
		"revision":       &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Revision, 10)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}

// itemToRecord converts a DynamoDB attribute map to a SessionRecord.
func itemToRecord(item map[string]types.AttributeValue) (domain.SessionRecord, error) {
	conversationID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.SessionRecord{}, err
	}
	sequence, err := strAttr(item, "sequence")
	if err != nil {
		return domain.SessionRecord{}, err
	}
	cursor, err := intAttr(item, "cursor")
	if err != nil {
		return domain.SessionRecord{}, err
	}
	status, err := strAttr(item, "status")
	if err != nil {
		return domain.SessionRecord{}, err
	}
	revision, err := int64Attr(item, "revision")
	if err != nil {
		return domain.SessionRecord{}, err
	}

	intent, _ := strAttr(item, "intent")       // allow empty
	firstName, _ := strAttr(item, "firstName") // allow empty
	lastName, _ := strAttr(item, "lastName")   // allow empty
	address, _ := strAttr(item, "address")     // allow empty
	phone, _ := strAttr(item, "phoneLastFour") // allow empty
	expires, _ := int64Attr(item, "ttl")       // allow missing

	return domain.SessionRecord{
		Session: domain.ConversationSession{
			ConversationID: conversationID,
			ActiveSequence: domain.SequenceID(sequence),
			Cursor:         cursor,
			Status:         domain.SessionStatus(status),
		},
		Profile: domain.UserProfile{
			Intent:        domain.Intent(intent),
			FirstName:     firstName,
			LastName:      lastName,
			Address:       address,
			PhoneLastFour: phone,
		},
		Revision: revision,
		TTL:      expires,
	}, nil
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
	n, err := int64Attr(item, key)
	return int(n), err
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
