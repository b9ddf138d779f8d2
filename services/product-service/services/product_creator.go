package services

import (
	"context"

	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"

	"go.uber.org/zap"
)

// ProductCreator creates a single product outside the queue, with the same
// rules as an imported row.
type ProductCreator struct {
	committer Committer
	notifier  Notifier
	cache     CacheInvalidator
	logger    *zap.Logger
}

// NewProductCreator wires the create path. cache may be nil.
func NewProductCreator(committer Committer, notifier Notifier, cache CacheInvalidator, logger *zap.Logger) *ProductCreator {
	return &ProductCreator{committer: committer, notifier: notifier, cache: cache, logger: logger}
}

// Create parses and validates body, commits it and announces it. A rejected
// body returns *ValidationError. When only the announcement fails the
// created product is returned together with the *NotifyError.
func (pc *ProductCreator) Create(ctx context.Context, body []byte) (*models.ProductWithStock, error) {
	parsed := ParseCandidate(body)
	if !parsed.Ok() {
		return nil, &apperrors.ValidationError{Reason: parsed.Reason}
	}
	product, err := ValidateCandidate(parsed.Candidate)
	if err != nil {
		return nil, err
	}

	created, err := pc.committer.Commit(ctx, product)
	if err != nil {
		return nil, err
	}
	if pc.cache != nil {
		if err := pc.cache.InvalidateProducts(ctx); err != nil {
			pc.logger.Warn("failed to invalidate product cache", zap.Error(err))
		}
	}

	if err := pc.notifier.Notify(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}
