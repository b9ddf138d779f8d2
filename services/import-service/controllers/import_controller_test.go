package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/catalog-import/services/import-service/models"
	"go.uber.org/zap"
)

type fakePresigner struct {
	key         string
	contentType string
	expires     time.Duration
	err         error
}

func (f *fakePresigner) PresignPut(_ context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	f.key, f.contentType, f.expires = key, contentType, expires
	if f.err != nil {
		return "", f.err
	}
	return "https://" + bucket + ".s3.amazonaws.com/" + key + "?X-Amz-Signature=abc", nil
}

func setupRouter(p Presigner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctrl := NewImportController(p, "import-bucket", "uploaded/", time.Hour, zap.NewNop())
	r.GET("/import", ctrl.ImportProductsFile)
	return r
}

func TestImportProductsFile_Success(t *testing.T) {
	p := &fakePresigner{}
	r := setupRouter(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import?name=products.csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.UploadURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3600), resp.ExpiresInSeconds)
	assert.Equal(t, "uploaded/products.csv", resp.Key)
	assert.Equal(t, "PUT", resp.Method)
	assert.Contains(t, resp.UploadURL, "uploaded/products.csv")
	assert.Equal(t, "text/csv", p.contentType)
	assert.Equal(t, time.Hour, p.expires)
}

func TestImportProductsFile_BadName(t *testing.T) {
	r := setupRouter(&fakePresigner{})

	for _, target := range []string{"/import", "/import?name=", "/import?name=products.xlsx", "/import?name=.csv"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, float64(400), body["code"])
		assert.NotEmpty(t, body["message"])
	}
}

func TestImportProductsFile_StripsDirectories(t *testing.T) {
	p := &fakePresigner{}
	r := setupRouter(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import?name=../../etc/products.csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uploaded/products.csv", p.key)
}

func TestImportProductsFile_PresignFailure(t *testing.T) {
	r := setupRouter(&fakePresigner{err: errors.New("no credentials")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import?name=products.csv", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "no credentials")
}
