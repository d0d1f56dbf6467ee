package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/handlers"
	"github.com/charlesng35/mentorlink/internal/middleware"
	"github.com/charlesng35/mentorlink/internal/models"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.PATCH("/:id/read", handler.MarkRead)
	}
}

// registerInternalRoutes exposes the dispatcher to other subsystems. Callers authenticate with an
// ADMIN token.
func registerInternalRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/internal", middleware.RequireRole(models.RoleAdmin))
	group.POST("/notifications", handler.Create)
}
