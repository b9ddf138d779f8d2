package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"
	"github.com/yashrajoria/catalog-import/services/product-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultContextTimeout = 30 * time.Second

// CatalogServiceAPI is what the controller needs from services.CatalogService.
type CatalogServiceAPI interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.ProductWithStock, error)
	ListProducts(ctx context.Context) ([]models.ProductWithStock, error)
}

// ProductCreatorAPI is what the controller needs from services.ProductCreator.
type ProductCreatorAPI interface {
	Create(ctx context.Context, body []byte) (*models.ProductWithStock, error)
}

const maxCreateBodyBytes = 64 << 10

// ProductController serves the product read API.
type ProductController struct {
	service CatalogServiceAPI
	creator ProductCreatorAPI
	cache   *CacheManager
	logger  *zap.Logger
	timeout time.Duration
}

// NewProductController creates a controller. cache may be nil.
func NewProductController(service CatalogServiceAPI, creator ProductCreatorAPI, cache *CacheManager, logger *zap.Logger) *ProductController {
	return &ProductController{
		service: service,
		creator: creator,
		cache:   cache,
		logger:  logger,
		timeout: DefaultContextTimeout,
	}
}

// GetProducts handles GET /products
func (pc *ProductController) GetProducts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pc.timeout)
	defer cancel()

	list, slot, ok := pc.cache.GetProductList(ctx)
	if ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, list)
		return
	}

	list, err := pc.service.ListProducts(ctx)
	if err != nil {
		pc.logger.Error("Failed to list products", zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}
	pc.cache.SetProductList(ctx, slot, list)

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, list)
}

// GetProductByID handles GET /products/:id
func (pc *ProductController) GetProductByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperrors.Respond(c, apperrors.BadRequest("Invalid UUID format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), pc.timeout)
	defer cancel()

	cached, slot, ok := pc.cache.GetProduct(ctx, id.String())
	if ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, cached)
		return
	}

	p, err := pc.service.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			apperrors.Respond(c, apperrors.NotFound("Product not found"))
			return
		}
		pc.logger.Error("Failed to get product", zap.String("product_id", id.String()), zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}
	pc.cache.SetProduct(ctx, slot, p)

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, p)
}

// CreateProduct handles POST /products
func (pc *ProductController) CreateProduct(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCreateBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apperrors.Respond(c, apperrors.BadRequest("Request body too large or unreadable"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), pc.timeout)
	defer cancel()

	p, err := pc.creator.Create(ctx, body)
	if err != nil {
		var verr *apperrors.ValidationError
		var nerr *apperrors.NotifyError
		switch {
		case errors.As(err, &verr):
			apperrors.Respond(c, apperrors.BadRequest(verr.Reason))
			return
		case errors.As(err, &nerr) && p != nil:
			// stored; a retry here would create a second product
			pc.logger.Warn("Product created without notification", zap.String("product_id", p.ID.String()), zap.Error(err))
		default:
			pc.logger.Error("Failed to create product", zap.Error(err))
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
	}

	c.JSON(http.StatusCreated, p)
}
