package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/import-service/models"
	"go.uber.org/zap"
)

// Importer is the part of ImportService the consumer drives.
type Importer interface {
	ImportObject(ctx context.Context, bucket, key string) (*models.ImportResult, error)
}

// UploadEventConsumer turns S3 object-created notifications into imports.
type UploadEventConsumer struct {
	importer Importer
	prefix   string
	logger   *zap.Logger
}

func NewUploadEventConsumer(importer Importer, prefix string, logger *zap.Logger) *UploadEventConsumer {
	return &UploadEventConsumer{importer: importer, prefix: prefix, logger: logger}
}

// HandleDelivery is an awspkg.DeliveryHandler. The upload queue is polled one
// message at a time, so a retry re-imports only the file that failed.
func (c *UploadEventConsumer) HandleDelivery(ctx context.Context, msgs []awspkg.Message) error {
	for _, msg := range msgs {
		if err := c.HandleMessage(ctx, msg); err != nil {
			return fmt.Errorf("message %s: %w", msg.ID, err)
		}
	}
	return nil
}

// HandleMessage imports every matching object named in one notification,
// each on its own. Unparseable bodies and test events are acknowledged. A
// source read failure is logged and acknowledged, because the batches before
// it are already on the queue and a retry would publish them again. A file
// that cannot be opened fails the notification only while nothing from it
// has been published; once another file went out, the open failure is
// logged and the notification is acknowledged.
func (c *UploadEventConsumer) HandleMessage(ctx context.Context, msg awspkg.Message) error {
	log := c.logger.With(zap.String("message_id", msg.ID))

	refs, err := ParseObjectRefs([]byte(msg.Body))
	if err != nil {
		log.Error("dropping unparseable upload event", zap.Error(err))
		return nil
	}

	var (
		published bool
		openErr   error
		unopened  []string
	)
	for _, ref := range refs {
		if !c.matches(ref.Key) {
			log.Info("ignoring object outside import prefix", zap.String("key", ref.Key))
			continue
		}

		result, err := c.importer.ImportObject(ctx, ref.Bucket, ref.Key)
		if err != nil {
			var readErr *apperrors.SourceReadError
			if errors.As(err, &readErr) {
				published = true
				log.Error("import truncated by source read failure",
					zap.String("bucket", ref.Bucket),
					zap.String("key", ref.Key),
					zap.Int("rows_published", result.Rows),
					zap.Error(err))
				continue
			}
			if openErr == nil {
				openErr = fmt.Errorf("import %s: %w", ref.Key, err)
			}
			unopened = append(unopened, ref.Key)
			continue
		}
		published = true
		log.Info("import complete",
			zap.String("key", ref.Key),
			zap.Int("rows", result.Rows),
			zap.Int("failed_batches", result.FailedBatches))
	}

	if openErr == nil {
		return nil
	}
	if !published {
		return openErr
	}
	// a retry would publish the imported files a second time
	log.Error("acknowledging upload event with files that could not be imported",
		zap.Strings("keys", unopened),
		zap.Error(openErr))
	return nil
}

func (c *UploadEventConsumer) matches(key string) bool {
	return strings.HasPrefix(key, c.prefix) && strings.HasSuffix(strings.ToLower(key), ".csv")
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// ParseObjectRefs reads an S3 notification, unwrapping an SNS envelope when
// the bucket publishes through a topic. Object keys arrive form-encoded.
// The s3:TestEvent yields no refs.
func ParseObjectRefs(body []byte) ([]models.ObjectRef, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Type == "Notification" && env.Message != "" {
		body = []byte(env.Message)
	}

	var event models.S3Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode s3 event: %w", err)
	}
	if event.Event == "s3:TestEvent" {
		return nil, nil
	}

	refs := make([]models.ObjectRef, 0, len(event.Records))
	for _, r := range event.Records {
		if !strings.HasPrefix(r.EventName, "ObjectCreated:") {
			continue
		}
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", r.S3.Object.Key, err)
		}
		refs = append(refs, models.ObjectRef{Bucket: r.S3.Bucket.Name, Key: key})
	}
	return refs, nil
}
