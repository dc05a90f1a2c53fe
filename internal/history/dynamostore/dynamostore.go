// Package dynamostore records run history to a DynamoDB table, for
// deployments where the CLI driver runs somewhere a local SQLite file
// isn't appropriate (a read-only container, multiple driver instances
// sharing one history).
package dynamostore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"vela-lang/internal/history"
)

// Store is a history.Store backed by a DynamoDB table. The table must
// have a partition key named "id" of type S.
type Store struct {
	client *dynamodb.Client
	table  string
}

// Open loads AWS config from the environment (shared config files,
// env vars, or the container's role) and returns a Store targeting
// table.
func Open(ctx context.Context, table string) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Store{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

type item struct {
	ID           string `dynamodbav:"id"`
	Source       string `dynamodbav:"source"`
	Output       string `dynamodbav:"output"`
	Failed       bool   `dynamodbav:"failed"`
	ErrorMessage string `dynamodbav:"error_message"`
	DurationMs   int64  `dynamodbav:"duration_ms"`
	CreatedAt    string `dynamodbav:"created_at"`
}

func (s *Store) Append(ctx context.Context, rec history.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	it := item{
		ID:           rec.ID,
		Source:       rec.Source,
		Output:       rec.Output,
		Failed:       rec.Failed,
		ErrorMessage: rec.ErrorMessage,
		DurationMs:   rec.Duration.Milliseconds(),
		CreatedAt:    createdAt.Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put history record: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
