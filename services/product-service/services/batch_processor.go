package services

import (
	"context"
	"errors"
	"fmt"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"

	"go.uber.org/zap"
)

type Committer interface {
	Commit(ctx context.Context, p models.NewProduct) (*models.ProductWithStock, error)
}

type Notifier interface {
	Notify(ctx context.Context, p *models.ProductWithStock) error
}

// CacheInvalidator drops cached reads after the catalog changes.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context) error
}

// DeliveryResult reports what one delivery did.
type DeliveryResult struct {
	// Committed holds products written and announced.
	Committed []models.ProductWithStock
	Skipped   int
	// Failed counts messages that were neither committed nor skipped.
	Failed int
	// Written counts products stored, including one whose announcement failed.
	Written int
}

// BatchProcessor validates, commits and announces the messages of one queue
// delivery, one message at a time.
type BatchProcessor struct {
	committer Committer
	notifier  Notifier
	cache     CacheInvalidator
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
}

// NewBatchProcessor wires the pipeline. cache and metrics may be nil.
func NewBatchProcessor(committer Committer, notifier Notifier, cache CacheInvalidator, metrics *awspkg.MetricsClient, logger *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		committer: committer,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessDelivery handles msgs in order. A message that fails to parse or
// validate is skipped and counted; it never fails the delivery. Any other
// failure is counted and the remaining messages are still processed; the
// first such failure is returned so the whole delivery is redelivered.
// Products committed in that delivery stay committed and will be created
// again on redelivery.
func (p *BatchProcessor) ProcessDelivery(ctx context.Context, msgs []awspkg.Message) (*DeliveryResult, error) {
	result := &DeliveryResult{}
	defer p.finish(ctx, result)

	var firstErr error
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			// out of time; everything left comes back with the redelivery
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		created, err := p.processMessage(ctx, msg)
		if created != nil {
			result.Written++
		}
		if err != nil {
			var verr *apperrors.ValidationError
			if errors.As(err, &verr) {
				result.Skipped++
				p.logger.Warn("skipping invalid catalog item",
					zap.String("message_id", msg.ID),
					zap.String("reason", verr.Reason))
				continue
			}
			result.Failed++
			if apperrors.IsRetryable(err) {
				p.recordFailure(ctx, err)
				p.logger.Error("catalog item failed",
					zap.String("message_id", msg.ID),
					zap.Bool("client_fault", awspkg.IsClientFault(err)),
					zap.Error(err))
			} else {
				// unknown failure kind; still redelivered so nothing is dropped
				p.logger.Error("catalog item failed with unclassified error",
					zap.String("message_id", msg.ID),
					zap.String("error_type", fmt.Sprintf("%T", err)),
					zap.Error(err))
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("message %s: %w", msg.ID, err)
			}
			continue
		}
		result.Committed = append(result.Committed, *created)
	}
	return result, firstErr
}

func (p *BatchProcessor) processMessage(ctx context.Context, msg awspkg.Message) (*models.ProductWithStock, error) {
	parsed := ParseCandidate([]byte(msg.Body))
	if !parsed.Ok() {
		return nil, &apperrors.ValidationError{Reason: parsed.Reason}
	}
	product, err := ValidateCandidate(parsed.Candidate)
	if err != nil {
		return nil, err
	}

	created, err := p.committer.Commit(ctx, product)
	if err != nil {
		return nil, err
	}
	p.logger.Info("product created",
		zap.String("message_id", msg.ID),
		zap.String("product_id", created.ID.String()),
		zap.String("title", created.Title),
		zap.Int("count", created.Count))

	if err := p.notifier.Notify(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

// finish runs after every delivery, successful or not.
func (p *BatchProcessor) finish(ctx context.Context, result *DeliveryResult) {
	if result.Written > 0 && p.cache != nil {
		if err := p.cache.InvalidateProducts(ctx); err != nil {
			p.logger.Warn("failed to invalidate product cache", zap.Error(err))
		}
	}
	if p.metrics.IsEnabled() {
		dims := map[string]string{"Service": "product-service"}
		_ = p.metrics.RecordCount(ctx, awspkg.MetricProductsCreated, result.Written, dims)
		_ = p.metrics.RecordCount(ctx, awspkg.MetricMessagesSkipped, result.Skipped, dims)
	}
}

func (p *BatchProcessor) recordFailure(ctx context.Context, err error) {
	if !p.metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"Service": "product-service"}
	var nerr *apperrors.NotifyError
	if errors.As(err, &nerr) {
		_ = p.metrics.RecordCount(ctx, awspkg.MetricNotifyFailures, 1, dims)
		return
	}
	_ = p.metrics.RecordCount(ctx, awspkg.MetricCommitFailures, 1, dims)
}
