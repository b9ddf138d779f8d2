package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/catalog-import/services/product-service/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// CatalogRepo is the products/stocks store used by product-service.
type CatalogRepo interface {
	// CreateWithStock writes product and stock in one transaction. Neither
	// row is written if either key already exists.
	CreateWithStock(ctx context.Context, product models.Product, stock models.Stock) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductWithStock, error)
	List(ctx context.Context) ([]models.ProductWithStock, error)
	EnsureTables(ctx context.Context) error
}
