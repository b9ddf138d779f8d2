package services

import (
	"context"
	"fmt"
	"strconv"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
)

// BatchSender is the queue side of the publisher. *awspkg.SQSClient
// satisfies it.
type BatchSender interface {
	SendMessageBatch(ctx context.Context, entries []awspkg.BatchEntry) ([]awspkg.FailedEntry, error)
}

// QueuePublisher turns a Batch into one queue send call.
type QueuePublisher struct {
	sender BatchSender
}

func NewQueuePublisher(sender BatchSender) *QueuePublisher {
	return &QueuePublisher{sender: sender}
}

// Publish sends every row of batch in a single call. Entry ids are the rows'
// ordinals within the file, so they are unique within the call and name the
// offending rows in a *PublishError when the queue rejects some or all of
// them.
func (p *QueuePublisher) Publish(ctx context.Context, batch Batch) error {
	if len(batch.Rows) == 0 {
		return nil
	}
	if len(batch.Rows) > awspkg.MaxBatchEntries {
		return fmt.Errorf("batch of %d rows exceeds queue limit of %d", len(batch.Rows), awspkg.MaxBatchEntries)
	}

	entries := make([]awspkg.BatchEntry, len(batch.Rows))
	ids := make([]string, len(batch.Rows))
	for i, row := range batch.Rows {
		body, err := row.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode row %d: %w", batch.Offset+i, err)
		}
		ids[i] = strconv.Itoa(batch.Offset + i)
		entries[i] = awspkg.BatchEntry{ID: ids[i], Body: string(body)}
	}

	failed, err := p.sender.SendMessageBatch(ctx, entries)
	if err != nil {
		return &apperrors.PublishError{Failed: ids, Err: err}
	}
	if len(failed) > 0 {
		perr := &apperrors.PublishError{Failed: make([]string, len(failed))}
		for i, f := range failed {
			perr.Failed[i] = f.ID
		}
		perr.Err = fmt.Errorf("%s: %s", failed[0].Code, failed[0].Message)
		return perr
	}
	return nil
}
