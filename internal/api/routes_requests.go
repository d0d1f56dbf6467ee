package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/handlers"
	"github.com/charlesng35/mentorlink/internal/middleware"
	"github.com/charlesng35/mentorlink/internal/models"
)

func registerRequestRoutes(api *gin.RouterGroup, handler *handlers.RequestHandler) {
	group := api.Group("/requests")
	{
		group.POST("", middleware.RequireRole(models.RoleMentee), handler.Create)
		group.GET("/sent", middleware.RequireRole(models.RoleMentee), handler.ListSent)
		group.GET("/received", middleware.RequireRole(models.RoleMentor), handler.ListReceived)
		group.PATCH("/:id/status", middleware.RequireRole(models.RoleMentor), handler.Respond)
	}
}
