package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/catalog-import/services/product-service/controllers"
)

// RegisterRoutes mounts the product API. gate runs in front of POST /products only.
func RegisterRoutes(r *gin.Engine, pc *controllers.ProductController, gate ...gin.HandlerFunc) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	productRoutes := r.Group("/products")
	{
		productRoutes.GET("", pc.GetProducts)
		productRoutes.GET("/:id", pc.GetProductByID)
		productRoutes.POST("", append(append([]gin.HandlerFunc{}, gate...), pc.CreateProduct)...)
	}
}
