package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	defaultWaitTime   = 10 * time.Second
	maxSQSWaitSeconds = 20
)

// SQSConfig configures the SQS-backed queue gateway.
type SQSConfig struct {
	QueueURL string
	WaitTime time.Duration
}

// SQSGateway reads transcode jobs from an SQS queue using long polling.
type SQSGateway struct {
	client   *sqs.Client
	queueURL string
	waitTime time.Duration
}

// NewSQSGateway wraps the provided SQS client.
func NewSQSGateway(client *sqs.Client, cfg SQSConfig) (*SQSGateway, error) {
	queueURL := strings.TrimSpace(cfg.QueueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("sqs queue url required")
	}
	waitTime := cfg.WaitTime
	if waitTime <= 0 {
		waitTime = defaultWaitTime
	}
	if waitTime > maxSQSWaitSeconds*time.Second {
		waitTime = maxSQSWaitSeconds * time.Second
	}
	return &SQSGateway{client: client, queueURL: queueURL, waitTime: waitTime}, nil
}

func (g *SQSGateway) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	resp, err := g.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(g.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(g.waitTime / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}

	messages := make([]Message, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		messages = append(messages, Message{
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (g *SQSGateway) Delete(ctx context.Context, receiptHandle string) error {
	if strings.TrimSpace(receiptHandle) == "" {
		return ErrReceiptRequired
	}
	_, err := g.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(g.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
