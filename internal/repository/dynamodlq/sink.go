// Package dynamodlq implements ingest.DeadLetterSink against DynamoDB,
// following the same PK/SK/TTL item shape the rest of the module uses for
// durable side storage.
package dynamodlq

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/timing-intelligence/internal/timing/ingest"
)

// retention is how long a dead-lettered record is kept before DynamoDB
// expires it.
const retention = 90 * 24 * time.Hour

// item is the DynamoDB row shape for one dead-lettered message.
type item struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	Error         string `dynamodbav:"Error"`
	OriginalKey   string `dynamodbav:"OriginalKey"`
	OriginalValue string `dynamodbav:"OriginalValue"`
	Partition     string `dynamodbav:"Partition"`
	Offset        string `dynamodbav:"Offset"`
	IngestedAt    string `dynamodbav:"IngestedAt"`
	TTL           int64  `dynamodbav:"TTL"`
}

// Sink implements ingest.DeadLetterSink against a DynamoDB table.
type Sink struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

// NewSink constructs a DynamoDB-backed dead-letter sink.
func NewSink(client *dynamodb.Client, tableName string) *Sink {
	return &Sink{client: client, tableName: tableName, now: func() time.Time { return time.Now().UTC() }}
}

var _ ingest.DeadLetterSink = (*Sink)(nil)

func buildItem(rec ingest.DeadLetterRecord, now time.Time) item {
	return item{
		PK:            fmt.Sprintf("DLQ#%s#%s", rec.Partition, rec.Offset),
		SK:            now.Format("2006-01-02T15:04:05.000000000Z"),
		Error:         rec.Error,
		OriginalKey:   rec.OriginalKey,
		OriginalValue: rec.OriginalValue,
		Partition:     rec.Partition,
		Offset:        rec.Offset,
		IngestedAt:    rec.IngestedAt,
		TTL:           now.Add(retention).Unix(),
	}
}

func (s *Sink) Send(ctx context.Context, rec ingest.DeadLetterRecord) error {
	it := buildItem(rec, s.now())

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal dead-letter item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put dead-letter item: %w", err)
	}
	return nil
}
