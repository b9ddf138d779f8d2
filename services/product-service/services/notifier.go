package services

import (
	"context"
	"encoding/json"
	"fmt"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"
)

// CompletionNotifier announces committed products on an SNS topic.
type CompletionNotifier struct {
	publisher awspkg.SNSPublisher
	topicArn  string
}

func NewCompletionNotifier(publisher awspkg.SNSPublisher, topicArn string) *CompletionNotifier {
	return &CompletionNotifier{publisher: publisher, topicArn: topicArn}
}

// Notify publishes one product.created event. price and count are also sent
// as Number attributes so subscriptions can filter on them.
func (n *CompletionNotifier) Notify(ctx context.Context, p *models.ProductWithStock) error {
	event := models.NotificationEvent{
		Event:       models.EventProductCreated,
		ProductID:   p.ID.String(),
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Count:       p.Count,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return &apperrors.NotifyError{ProductID: event.ProductID, Err: fmt.Errorf("encode event: %w", err)}
	}

	attrs := map[string]awspkg.MessageAttribute{
		"event": awspkg.StringAttribute(models.EventProductCreated),
		"price": awspkg.NumberAttribute(p.Price),
		"count": awspkg.NumberAttribute(float64(p.Count)),
	}
	if err := n.publisher.Publish(ctx, n.topicArn, body, attrs); err != nil {
		return &apperrors.NotifyError{ProductID: event.ProductID, Err: err}
	}
	return nil
}
