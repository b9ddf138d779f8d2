package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/catalog-import/services/import-service/controllers"
)

// RegisterRoutes mounts the upload API. gate runs in front of /import only.
func RegisterRoutes(r *gin.Engine, ic *controllers.ImportController, gate ...gin.HandlerFunc) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	handlers := append(append([]gin.HandlerFunc{}, gate...), ic.ImportProductsFile)
	r.GET("/import", handlers...)
}
