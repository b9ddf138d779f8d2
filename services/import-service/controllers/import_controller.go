package controllers

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/import-service/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultContextTimeout = 10 * time.Second

// Presigner issues upload URLs. *awspkg.S3Client satisfies it.
type Presigner interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error)
}

// ImportController hands out presigned PUT URLs for CSV uploads.
type ImportController struct {
	presigner Presigner
	bucket    string
	prefix    string
	expires   time.Duration
	logger    *zap.Logger
	timeout   time.Duration
}

func NewImportController(presigner Presigner, bucket, prefix string, expires time.Duration, logger *zap.Logger) *ImportController {
	return &ImportController{
		presigner: presigner,
		bucket:    bucket,
		prefix:    prefix,
		expires:   expires,
		logger:    logger,
		timeout:   DefaultContextTimeout,
	}
}

// ImportProductsFile handles GET /import?name=<file>.csv
func (ic *ImportController) ImportProductsFile(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		apperrors.Respond(c, apperrors.BadRequest("name query parameter is required"))
		return
	}
	// only the base name is kept so uploads always land under the prefix
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !strings.HasSuffix(strings.ToLower(name), ".csv") || name == ".csv" {
		apperrors.Respond(c, apperrors.BadRequest("file name must end with .csv"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	key := ic.prefix + name
	url, err := ic.presigner.PresignPut(ctx, ic.bucket, key, "text/csv", ic.expires)
	if err != nil {
		ic.logger.Error("Failed to presign upload", zap.String("key", key), zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, models.UploadURLResponse{
		UploadURL:        url,
		ExpiresInSeconds: int64(ic.expires / time.Second),
		Key:              key,
		Method:           http.MethodPut,
	})
}
