package mcpserver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

// CallStatus is the lifecycle state of a call.
type CallStatus string

const (
	CallStatusOpen   CallStatus = "open"
	CallStatusClosed CallStatus = "closed"
)

// ErrCallClosed is returned when writing to a call that has ended.
var ErrCallClosed = errors.New("call is closed")

// CallItem is the DynamoDB record for a call session.
type CallItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	GSI1PK     string   `dynamodbav:"GSI1PK"`
	GSI1SK     string   `dynamodbav:"GSI1SK"`
	CallID     string   `dynamodbav:"callId"`
	Mode       string   `dynamodbav:"mode"`
	Topic      string   `dynamodbav:"topic,omitempty"`
	Brief      string   `dynamodbav:"brief,omitempty"`
	PersonaIDs []string `dynamodbav:"personaIds"`
	Status     string   `dynamodbav:"status"`
	TurnCount  int      `dynamodbav:"turnCount"`
	CreatedAt  string   `dynamodbav:"createdAt"`
	ClosedAt   string   `dynamodbav:"closedAt,omitempty"`
}

// TurnItem records one utterance and the responses it got.
type TurnItem struct {
	PK            string   `dynamodbav:"PK"`
	SK            string   `dynamodbav:"SK"`
	TurnID        string   `dynamodbav:"turnId"`
	Utterance     string   `dynamodbav:"utterance"`
	ResponsesJSON string   `dynamodbav:"responsesJson"`
	AudioURLs     []string `dynamodbav:"audioUrls,omitempty"`
	CreatedAt     string   `dynamodbav:"createdAt"`
}

// CallStore persists call sessions and their turns.
type CallStore interface {
	CreateCall(ctx context.Context, item CallItem) error
	GetCall(ctx context.Context, id string) (*CallItem, error)
	AppendTurn(ctx context.Context, callID string, turn TurnItem) error
	ListTurns(ctx context.Context, callID string) ([]TurnItem, error)
	CloseCall(ctx context.Context, id string) error
}

// DynamoAPI is the part of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store handles DynamoDB operations for calls.
type Store struct {
	client    DynamoAPI
	tableName string
}

// NewStore creates a DynamoDB store.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// NewID generates a ULID for a new call or turn.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

func callPK(id string) string { return "CALL#" + id }

func callKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: callPK(id)},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// NewCallItem fills in keys and timestamps for a new open call.
func NewCallItem(id, mode, topic, brief string, personaIDs []string) CallItem {
	now := time.Now().UTC().Format(time.RFC3339)
	return CallItem{
		PK:         callPK(id),
		SK:         "METADATA",
		GSI1PK:     "CALLS",
		GSI1SK:     now + "#" + id,
		CallID:     id,
		Mode:       mode,
		Topic:      topic,
		Brief:      brief,
		PersonaIDs: personaIDs,
		Status:     string(CallStatusOpen),
		CreatedAt:  now,
	}
}

// NewTurnItem fills in keys for a turn of callID.
func NewTurnItem(callID, turnID, utterance, responsesJSON string, audioURLs []string) TurnItem {
	return TurnItem{
		PK:            callPK(callID),
		SK:            "TURN#" + turnID,
		TurnID:        turnID,
		Utterance:     utterance,
		ResponsesJSON: responsesJSON,
		AudioURLs:     audioURLs,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}

// CreateCall inserts a new call record.
func (s *Store) CreateCall(ctx context.Context, item CallItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal call item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put call item: %w", err)
	}
	return nil
}

// GetCall retrieves a call by ID. A missing call returns nil, nil.
func (s *Store) GetCall(ctx context.Context, id string) (*CallItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       callKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item CallItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal call: %w", err)
	}
	return &item, nil
}

// AppendTurn bumps the call's turn count and stores the turn. It fails with
// ErrCallClosed once the call has ended.
func (s *Store) AppendTurn(ctx context.Context, callID string, turn TurnItem) error {
	av, err := attributevalue.MarshalMap(turn)
	if err != nil {
		return fmt.Errorf("marshal turn item: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 callKey(callID),
		UpdateExpression:    aws.String("SET turnCount = turnCount + :one"),
		ConditionExpression: aws.String("#status = :open"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  &types.AttributeValueMemberN{Value: strconv.Itoa(1)},
			":open": &types.AttributeValueMemberS{Value: string(CallStatusOpen)},
		},
	})
	if err := conditional(err, "update turn count"); err != nil {
		return err
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put turn item: %w", err)
	}
	return nil
}

// ListTurns returns the turns of a call in the order they were spoken.
func (s *Store) ListTurns(ctx context.Context, callID string) ([]TurnItem, error) {
	var (
		turns []TurnItem
		start map[string]types.AttributeValue
	)
	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :turn)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":   &types.AttributeValueMemberS{Value: callPK(callID)},
				":turn": &types.AttributeValueMemberS{Value: "TURN#"},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("list turns: %w", err)
		}

		var page []TurnItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal turns: %w", err)
		}
		turns = append(turns, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return turns, nil
		}
		start = result.LastEvaluatedKey
	}
}

// CloseCall marks an open call as closed.
func (s *Store) CloseCall(ctx context.Context, id string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 callKey(id),
		UpdateExpression:    aws.String("SET #status = :closed, closedAt = :now"),
		ConditionExpression: aws.String("#status = :open"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":closed": &types.AttributeValueMemberS{Value: string(CallStatusClosed)},
			":open":   &types.AttributeValueMemberS{Value: string(CallStatusOpen)},
			":now":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	return conditional(err, "close call")
}

func conditional(err error, op string) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrCallClosed
	}
	return fmt.Errorf("%s: %w", op, err)
}
