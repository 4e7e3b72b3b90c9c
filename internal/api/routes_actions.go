package api

import (
	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/handlers"
)

func registerActionRoutes(api *gin.RouterGroup, handler *handlers.ActionHandler) {
	api.GET("/actions", handler.List)

	api.POST("/companies/:id/follow", handler.FollowCompany)
	api.POST("/groups/:id/join", handler.JoinGroup)
	api.POST("/jobs/:id/apply", handler.ApplyToJob)
}
