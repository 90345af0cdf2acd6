package progress

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const attrEventType = "interaction_type"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries progress events over SQS. For FIFO queues (URL ending
// in ".fifo") events are grouped by session so one session's projections
// never run out of order.
type SQSQueue struct {
	client sqsAPI
	url    *string
	fifo   bool
}

// NewSQSQueue panics when the client or URL is missing.
func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("progress: sqs client is required")
	}
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		panic("progress: sqs queue url is required")
	}
	return &SQSQueue{
		client: client,
		url:    aws.String(queueURL),
		fifo:   strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send publishes an encoded Event.
func (q *SQSQueue) Send(ctx context.Context, body string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    q.url,
		MessageBody: aws.String(body),
	}

	evt, decodeErr := DecodeEvent(body)
	if decodeErr == nil && evt.InteractionType != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			attrEventType: {DataType: aws.String("String"), StringValue: aws.String(evt.InteractionType)},
		}
	}
	if q.fifo {
		if decodeErr != nil {
			return fmt.Errorf("progress: fifo queue needs a session id: %w", decodeErr)
		}
		input.MessageGroupId = aws.String(evt.SessionID)
		if evt.ID != "" {
			input.MessageDeduplicationId = aws.String(evt.ID)
		}
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("progress: sqs send: %w", err)
	}
	return nil
}

// Receive long-polls for up to maxMessages events.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    q.url,
		MaxNumberOfMessages:         int32(maxMessages),
		WaitTimeSeconds:             int32(waitSeconds),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("progress: sqs receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	batch := make([]queueMessage, len(out.Messages))
	for i, m := range out.Messages {
		batch[i] = queueMessage{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  receiveCount(m.Attributes),
		}
	}
	return batch, nil
}

// Delete acknowledges a message. An empty handle is ignored.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      q.url,
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("progress: sqs delete: %w", err)
	}
	return nil
}

func receiveCount(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
