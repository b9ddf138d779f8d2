package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// MaxBatchEntries is the SQS ceiling for SendMessageBatch, DeleteMessageBatch
// and ReceiveMessage.
const MaxBatchEntries = 10

// sqsAPI is the subset of *sqs.Client used here.
type sqsAPI interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// BatchEntry is one message of a SendMessageBatch call. ID must be unique
// within the call.
type BatchEntry struct {
	ID   string
	Body string
}

// FailedEntry reports an entry SQS refused in an otherwise accepted batch.
type FailedEntry struct {
	ID          string
	Code        string
	Message     string
	SenderFault bool
}

// Message is a received SQS message.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// ReceiveOptions tunes long polling on a queue.
type ReceiveOptions struct {
	MaxMessages       int32
	WaitSeconds       int32
	VisibilityTimeout int32
}

// SQSClient sends to and receives from a single queue.
type SQSClient struct {
	api      sqsAPI
	queueURL string
	receive  ReceiveOptions
}

// NewSQSClient creates a client bound to queueURL.
func NewSQSClient(cfg sdkaws.Config, queueURL string, receive ReceiveOptions) *SQSClient {
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL, receive)
}

func newSQSClient(api sqsAPI, queueURL string, receive ReceiveOptions) *SQSClient {
	if receive.MaxMessages <= 0 || receive.MaxMessages > MaxBatchEntries {
		receive.MaxMessages = MaxBatchEntries
	}
	return &SQSClient{api: api, queueURL: queueURL, receive: receive}
}

// SendMessageBatch sends up to MaxBatchEntries messages in one call. A
// transport or request-level failure is returned as an error; entries SQS
// rejected individually are returned as FailedEntry values.
func (c *SQSClient) SendMessageBatch(ctx context.Context, entries []BatchEntry) ([]FailedEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if len(entries) > MaxBatchEntries {
		return nil, fmt.Errorf("batch of %d entries exceeds sqs limit of %d", len(entries), MaxBatchEntries)
	}

	reqEntries := make([]types.SendMessageBatchRequestEntry, 0, len(entries))
	for _, e := range entries {
		reqEntries = append(reqEntries, types.SendMessageBatchRequestEntry{
			Id:          sdkaws.String(e.ID),
			MessageBody: sdkaws.String(e.Body),
		})
	}

	out, err := c.api.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: &c.queueURL,
		Entries:  reqEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send batch: %w", err)
	}

	var failed []FailedEntry
	for _, f := range out.Failed {
		failed = append(failed, FailedEntry{
			ID:          sdkaws.ToString(f.Id),
			Code:        sdkaws.ToString(f.Code),
			Message:     sdkaws.ToString(f.Message),
			SenderFault: f.SenderFault,
		})
	}
	return failed, nil
}

// Receive long-polls the queue for one delivery of up to MaxMessages.
func (c *SQSClient) Receive(ctx context.Context) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.receive.MaxMessages,
		WaitTimeSeconds:     c.receive.WaitSeconds,
		VisibilityTimeout:   c.receive.VisibilityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            sdkaws.ToString(m.MessageId),
			Body:          sdkaws.ToString(m.Body),
			ReceiptHandle: sdkaws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// DeleteMessages acknowledges msgs with one DeleteMessageBatch call.
func (c *SQSClient) DeleteMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > MaxBatchEntries {
		return fmt.Errorf("delete of %d messages exceeds sqs limit of %d", len(msgs), MaxBatchEntries)
	}

	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(msgs))
	for i, m := range msgs {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            sdkaws.String(fmt.Sprintf("%d", i)),
			ReceiptHandle: sdkaws.String(m.ReceiptHandle),
		})
	}

	out, err := c.api.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: &c.queueURL,
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if len(out.Failed) > 0 {
		ids := make([]string, 0, len(out.Failed))
		for _, f := range out.Failed {
			ids = append(ids, sdkaws.ToString(f.Id))
		}
		return fmt.Errorf("failed to delete %d messages (entries %s)", len(out.Failed), strings.Join(ids, ","))
	}
	return nil
}

// DeliveryQueue is what SQSConsumer needs from a queue.
type DeliveryQueue interface {
	Receive(ctx context.Context) ([]Message, error)
	DeleteMessages(ctx context.Context, msgs []Message) error
}

// DeliveryHandler processes one delivery. Returning nil acknowledges every
// message of the delivery; returning an error leaves all of them on the queue
// so they become visible again after the visibility timeout.
type DeliveryHandler func(ctx context.Context, msgs []Message) error

// SQSConsumer polls a queue and hands each delivery to a handler.
type SQSConsumer struct {
	queue           DeliveryQueue
	deliveryTimeout time.Duration
	retryDelay      time.Duration
	logger          *zap.Logger
}

// NewSQSConsumer creates a consumer. deliveryTimeout bounds one handler call
// and should stay below the queue visibility timeout.
func NewSQSConsumer(queue DeliveryQueue, deliveryTimeout time.Duration, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		queue:           queue,
		deliveryTimeout: deliveryTimeout,
		retryDelay:      5 * time.Second,
		logger:          logger,
	}
}

// StartPolling runs until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler DeliveryHandler) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped")
			return ctx.Err()
		default:
		}

		if err := c.PollOnce(ctx, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.Error("SQS receive error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// PollOnce receives one delivery and runs handler on it. Only receive
// failures are returned; handler failures are logged and leave the delivery
// for redelivery.
func (c *SQSConsumer) PollOnce(ctx context.Context, handler DeliveryHandler) error {
	msgs, err := c.queue.Receive(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	hctx := ctx
	if c.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, c.deliveryTimeout)
		defer cancel()
	}

	if err := handler(hctx, msgs); err != nil {
		c.logger.Warn("delivery failed, leaving messages for redelivery",
			zap.Int("messages", len(msgs)),
			zap.Error(err),
		)
		return nil
	}

	if err := c.queue.DeleteMessages(ctx, msgs); err != nil {
		c.logger.Error("failed to acknowledge delivery", zap.Int("messages", len(msgs)), zap.Error(err))
	}
	return nil
}
