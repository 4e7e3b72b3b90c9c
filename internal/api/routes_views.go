package api

import (
	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/handlers"
)

func registerViewRoutes(api *gin.RouterGroup, handler *handlers.ViewHandler) {
	api.GET("/dashboard", handler.Dashboard)
	api.GET("/jobs", handler.Jobs)
	api.GET("/groups", handler.Groups)
}
