package services

import (
	"context"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"

	"github.com/google/uuid"
)

// CatalogWriter is the write half of repository.CatalogRepo.
type CatalogWriter interface {
	CreateWithStock(ctx context.Context, product models.Product, stock models.Stock) error
}

// CommitWriter creates a product and its stock row together.
type CommitWriter struct {
	repo  CatalogWriter
	newID func() uuid.UUID
}

func NewCommitWriter(repo CatalogWriter) *CommitWriter {
	return &CommitWriter{repo: repo, newID: uuid.New}
}

// Commit assigns a fresh id and writes both rows in one transaction. Any
// store failure comes back as a *CommitError. Every call creates a new
// product, including a retry of a payload that was committed before.
func (w *CommitWriter) Commit(ctx context.Context, p models.NewProduct) (*models.ProductWithStock, error) {
	product := models.Product{
		ID:          w.newID(),
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
	}
	stock := models.Stock{ProductID: product.ID, Count: p.Count}

	if err := w.repo.CreateWithStock(ctx, product, stock); err != nil {
		return nil, &apperrors.CommitError{Code: awspkg.APIErrorCode(err), Err: err}
	}
	return &models.ProductWithStock{Product: product, Count: stock.Count}, nil
}
