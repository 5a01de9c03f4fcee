package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/swap357/cirunner/pkg/types"
)

type stateItem struct {
	PK        string                       `dynamodbav:"PK"`
	SK        string                       `dynamodbav:"SK"`
	Stages    map[string]types.StageRecord `dynamodbav:"stages"`
	UpdatedAt string                       `dynamodbav:"updatedAt"`
}

// Load reads the document item (strongly consistent). A missing item yields
// an empty document.
func (p *DynamoDBProvider) Load(ctx context.Context) (types.StateDocument, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &p.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: statePK(p.namespace)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: documentSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get state: %w", err)
	}
	if out.Item == nil {
		return types.StateDocument{}, nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal state item: %w", err)
	}
	doc := types.StateDocument{}
	for k, v := range item.Stages {
		doc[k] = v
	}
	return doc, nil
}

// Save replaces the document item with a single PutItem.
func (p *DynamoDBProvider) Save(ctx context.Context, doc types.StateDocument) error {
	item := stateItem{
		PK:        statePK(p.namespace),
		SK:        documentSK(),
		Stages:    map[string]types.StageRecord(doc.Clone()),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal state item: %w", err)
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &p.tableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put state: %w", err)
	}
	return nil
}
