package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/catalog-import/services/product-service/models"
	"github.com/yashrajoria/catalog-import/services/product-service/repository"

	"github.com/google/uuid"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogReader is the read half of repository.CatalogRepo.
type CatalogReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductWithStock, error)
	List(ctx context.Context) ([]models.ProductWithStock, error)
}

// CatalogService serves the product read API.
type CatalogService struct {
	repo CatalogReader
}

func NewCatalogService(repo CatalogReader) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.ProductWithStock, error) {
	p, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.ProductWithStock, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.ProductWithStock{}
	}
	return products, nil
}
