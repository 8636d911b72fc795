package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/complyscan/complyscan/internal/logger"
)

// SQSQueue implements Queue on an SQS queue. The SQS visibility timeout
// is the lease; ApproximateReceiveCount is the attempt counter.
type SQSQueue struct {
	Client     *sqs.Client
	QueueURL   string
	Visibility time.Duration
}

func NewSQSQueue(client *sqs.Client, queueURL string, visibility time.Duration) *SQSQueue {
	return &SQSQueue{Client: client, QueueURL: queueURL, Visibility: visibility}
}

type jobMessage struct {
	ScanID string `json:"scan_id"`
}

func (q *SQSQueue) Enqueue(ctx context.Context, jobID string) error {
	body, err := json.Marshal(jobMessage{ScanID: jobID})
	if err != nil {
		return err
	}
	_, err = q.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}

func (q *SQSQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		out, err := q.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.QueueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(q.Visibility.Seconds()),
			AttributeNames: []types.QueueAttributeName{
				types.QueueAttributeName("ApproximateReceiveCount"),
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("receive message: %w", err)
		}
		if len(out.Messages) == 0 {
			continue
		}

		msg := out.Messages[0]
		var payload jobMessage
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &payload); err != nil || payload.ScanID == "" {
			logger.GetSugaredLogger().Warnf("dropping malformed queue message: %v", err)
			q.delete(ctx, msg.ReceiptHandle)
			continue
		}

		attempt := 1
		if raw, ok := msg.Attributes["ApproximateReceiveCount"]; ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				attempt = n
			}
		}

		handle := msg.ReceiptHandle
		return &Delivery{
			JobID:   payload.ScanID,
			Attempt: attempt,
			ack: func(ctx context.Context) error {
				return q.delete(ctx, handle)
			},
			// No explicit nack: the message stays invisible until the
			// visibility timeout lapses, which is the retry backoff.
			nack: func(context.Context) error { return nil },
		}, nil
	}
}

func (q *SQSQueue) delete(ctx context.Context, handle *string) error {
	_, err := q.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.QueueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
