package consumer

import (
	"context"
	"sync"
	"time"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	"github.com/yashrajoria/catalog-import/services/product-service/services"

	"go.uber.org/zap"
)

// DeliveryProcessor is implemented by services.BatchProcessor.
type DeliveryProcessor interface {
	ProcessDelivery(ctx context.Context, msgs []awspkg.Message) (*services.DeliveryResult, error)
}

// CatalogBatchConsumer runs independent pollers on the catalog items queue.
// Each delivery is processed by exactly one poller; deliveries on different
// pollers run concurrently.
type CatalogBatchConsumer struct {
	queue           awspkg.DeliveryQueue
	processor       DeliveryProcessor
	workers         int
	deliveryTimeout time.Duration
	metrics         *awspkg.MetricsClient
	logger          *zap.Logger
}

func NewCatalogBatchConsumer(queue awspkg.DeliveryQueue, processor DeliveryProcessor, workers int, deliveryTimeout time.Duration, metrics *awspkg.MetricsClient, logger *zap.Logger) *CatalogBatchConsumer {
	if workers < 1 {
		workers = 1
	}
	return &CatalogBatchConsumer{
		queue:           queue,
		processor:       processor,
		workers:         workers,
		deliveryTimeout: deliveryTimeout,
		metrics:         metrics,
		logger:          logger,
	}
}

// Start blocks until ctx is cancelled and every poller has returned.
func (c *CatalogBatchConsumer) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log := c.logger.With(zap.Int("worker", worker))
			poller := awspkg.NewSQSConsumer(c.queue, c.deliveryTimeout, log)
			log.Info("catalog batch consumer started")
			_ = poller.StartPolling(ctx, c.HandleDelivery)
		}(i)
	}
	wg.Wait()
	c.logger.Info("catalog batch consumer stopped")
}

// HandleDelivery is the awspkg.DeliveryHandler for one delivery.
func (c *CatalogBatchConsumer) HandleDelivery(ctx context.Context, msgs []awspkg.Message) error {
	start := time.Now()
	result, err := c.processor.ProcessDelivery(ctx, msgs)

	if c.metrics.IsEnabled() {
		_ = c.metrics.RecordLatency(ctx, awspkg.MetricDeliveryLatency, time.Since(start), map[string]string{"Service": "product-service"})
	}
	if err != nil {
		return err
	}
	c.logger.Info("delivery processed",
		zap.Int("messages", len(msgs)),
		zap.Int("committed", len(result.Committed)),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
