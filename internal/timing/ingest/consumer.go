package ingest

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Consumer long-polls one SQS queue and drives each message through a
// Pipeline. It acknowledges (deletes) a message only after Process returns
// nil, matching the pipeline's commit-after-insert idempotence boundary.
type Consumer struct {
	sqsClient *sqs.Client
	queueURL  string
	pipeline  *Pipeline
	done      chan struct{}
}

// NewConsumer constructs a Consumer. One Consumer should run per log
// partition; within a partition, messages are processed strictly serially.
func NewConsumer(sqsClient *sqs.Client, queueURL string, pipeline *Pipeline) *Consumer {
	return &Consumer{sqsClient: sqsClient, queueURL: queueURL, pipeline: pipeline, done: make(chan struct{})}
}

// Start begins polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	log.Printf("ingest consumer started (queue=%s)", c.queueURL)
	go c.poll(ctx)
}

// Stop signals the poll loop to exit.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ingest receive error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			ack := Ack{Offset: aws.ToString(msg.MessageId)}
			if _, err := c.pipeline.Process(ctx, []byte(aws.ToString(msg.Body)), ack); err != nil {
				log.Printf("ingest process error: %v", err)
				continue // leave the message for redelivery
			}
			c.delete(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) delete(ctx context.Context, handle *string) {
	if _, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		log.Printf("ingest delete error: %v", err)
	}
}
