package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ymorita/priceradar/internal/server/handler"
)

func registerPriceRoutes(router *gin.RouterGroup, priceHandler *handler.PriceHandler) {
	router.GET("/price-history", priceHandler.GetHistory)
	router.GET("/health", priceHandler.Health)
}
