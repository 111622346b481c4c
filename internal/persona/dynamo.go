package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Item is the DynamoDB record for a persona. The full record is kept as JSON
// so schema changes in the extraction pipeline don't need a migration.
type Item struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK"`
	GSI1SK      string `dynamodbav:"GSI1SK"`
	PersonaID   string `dynamodbav:"personaId"`
	Name        string `dynamodbav:"name"`
	Location    string `dynamodbav:"location,omitempty"`
	PersonaJSON string `dynamodbav:"personaJson"`
	UpdatedAt   string `dynamodbav:"updatedAt"`
}

const (
	personaSK     = "PROFILE"
	personasIndex = "PERSONAS"
)

func personaPK(id string) string { return "PERSONA#" + id }

// DynamoStore reads and writes personas in a single-table layout.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// NewDynamoStore creates a DynamoDB-backed persona store.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Get(ctx context.Context, id string) (Persona, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: personaPK(id)},
			"SK": &types.AttributeValueMemberS{Value: personaSK},
		},
	})
	if err != nil {
		return Persona{}, fmt.Errorf("get persona: %w", err)
	}
	if result.Item == nil {
		return Persona{}, ErrNotFound
	}

	var item Item
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return Persona{}, fmt.Errorf("unmarshal persona item: %w", err)
	}
	return item.decode()
}

// List returns every persona via GSI1, ordered by name.
func (s *DynamoStore) List(ctx context.Context) ([]Persona, error) {
	var (
		out       []Persona
		startKey  map[string]types.AttributeValue
		firstPage = true
	)
	for firstPage || startKey != nil {
		firstPage = false
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			IndexName:              aws.String("GSI1"),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: personasIndex},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("list personas: %w", err)
		}

		var items []Item
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal persona list: %w", err)
		}
		for _, item := range items {
			p, err := item.decode()
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		startKey = result.LastEvaluatedKey
	}
	return out, nil
}

// Put writes or replaces a persona record.
func (s *DynamoStore) Put(ctx context.Context, p Persona) error {
	if p.ID == "" {
		return fmt.Errorf("put persona: id is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}

	item := Item{
		PK:          personaPK(p.ID),
		SK:          personaSK,
		GSI1PK:      personasIndex,
		GSI1SK:      p.Name + "#" + p.ID,
		PersonaID:   p.ID,
		Name:        p.Name,
		Location:    p.Location,
		PersonaJSON: string(raw),
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal persona item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put persona item: %w", err)
	}
	return nil
}

func (item Item) decode() (Persona, error) {
	var p Persona
	if err := json.Unmarshal([]byte(item.PersonaJSON), &p); err != nil {
		return Persona{}, fmt.Errorf("decode persona %s: %w", item.PersonaID, err)
	}
	if p.ID == "" {
		p.ID = item.PersonaID
	}
	return p, nil
}
