package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/import-service/models"
	"go.uber.org/zap"
)

// ObjectOpener streams an uploaded object. *awspkg.S3Client satisfies it.
type ObjectOpener interface {
	OpenObject(ctx context.Context, bucket, key string) (*awspkg.Object, error)
}

// ImportService moves the rows of one uploaded CSV object onto the catalog
// items queue.
type ImportService struct {
	objects   ObjectOpener
	publisher *QueuePublisher
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
}

func NewImportService(objects ObjectOpener, publisher *QueuePublisher, metrics *awspkg.MetricsClient, logger *zap.Logger) *ImportService {
	return &ImportService{
		objects:   objects,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// ImportObject reads bucket/key once, front to back, publishing each batch
// as soon as it is decoded. A failed publish is logged and the file carries
// on with the next batch. A failure to open the object is returned before
// anything is published; a *SourceReadError is returned together with the
// result of the batches published before it.
func (s *ImportService) ImportObject(ctx context.Context, bucket, key string) (*models.ImportResult, error) {
	log := s.logger.With(zap.String("bucket", bucket), zap.String("key", key))
	result := &models.ImportResult{Bucket: bucket, Key: key}
	start := time.Now()

	obj, err := s.objects.OpenObject(ctx, bucket, key)
	if err != nil {
		return result, fmt.Errorf("open %s/%s: %w", bucket, key, err)
	}
	defer obj.Body.Close()

	if obj.ContentType != "" && !isCSVContentType(obj.ContentType) {
		log.Warn("object content type is not csv, decoding anyway", zap.String("content_type", obj.ContentType))
	}

	batcher := NewRecordBatcher(obj.Body, BatchSize)
	var readErr error
	for {
		batch, err := batcher.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}

		result.Batches++
		if err := s.publisher.Publish(ctx, batch); err != nil {
			result.FailedBatches++
			var perr *apperrors.PublishError
			if errors.As(err, &perr) {
				result.FailedEntries = append(result.FailedEntries, perr.Failed...)
			}
			log.Error("batch publish failed",
				zap.Int("batch", result.Batches),
				zap.Int("offset", batch.Offset),
				zap.Error(err))
			continue
		}
		log.Debug("batch published", zap.Int("batch", result.Batches), zap.Int("rows", len(batch.Rows)))
	}

	result.Rows = batcher.Rows()
	result.MalformedRows = batcher.Malformed()
	s.recordMetrics(ctx, result, readErr != nil)

	fields := []zap.Field{
		zap.Int("rows", result.Rows),
		zap.Int("malformed_rows", result.MalformedRows),
		zap.Int("batches", result.Batches),
		zap.Int("failed_batches", result.FailedBatches),
		zap.Strings("failed_entries", result.FailedEntries),
		zap.Duration("elapsed", time.Since(start)),
	}
	if readErr != nil {
		log.Error("csv import stopped: source read failed", append(fields, zap.Error(readErr))...)
		return result, readErr
	}
	log.Info("csv import finished", fields...)
	return result, nil
}

func (s *ImportService) recordMetrics(ctx context.Context, result *models.ImportResult, readFailed bool) {
	if !s.metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"Service": "import-service"}
	_ = s.metrics.RecordCount(ctx, awspkg.MetricCSVRowsQueued, result.Rows-len(result.FailedEntries), dims)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricBatchesPublished, result.Batches-result.FailedBatches, dims)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricBatchesFailed, result.FailedBatches, dims)
	if readFailed {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricSourceReadErrors, 1, dims)
	}
}

func isCSVContentType(ct string) bool {
	switch ct {
	case "text/csv", "application/csv", "text/plain", "application/vnd.ms-excel", "application/octet-stream", "binary/octet-stream":
		return true
	}
	return strings.HasPrefix(ct, "text/csv;")
}
