package api

import (
	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/handlers"
)

func registerChannelRoutes(api *gin.RouterGroup, handler *handlers.ChannelHandler) {
	group := api.Group("/channels")
	{
		group.GET("", handler.List)
		group.POST("/:topic/connect", handler.Connect)
		group.POST("/:topic/disconnect", handler.Disconnect)
	}
}
