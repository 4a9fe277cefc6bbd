package router

import (
	"github.com/gin-gonic/gin"

	"gopherex.com/xmatch/internal/api/handler"
)

func Orders(api *gin.RouterGroup, h *handler.Order) {
	orders := api.Group("/orders")
	{
		orders.POST("", h.Place)
	}
}

func Books(api *gin.RouterGroup, h *handler.Book) {
	books := api.Group("/books")
	{
		books.GET("", h.List)
		books.GET("/:symbol", h.Exists)
		books.GET("/:symbol/depth", h.Depth)
		books.GET("/:symbol/orders/:id", h.Order)
		books.GET("/:symbol/last", h.Last)
	}
}
