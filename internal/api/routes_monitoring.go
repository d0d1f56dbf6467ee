package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/handlers"
	"github.com/charlesng35/mentorlink/internal/middleware"
	"github.com/charlesng35/mentorlink/internal/models"
)

// registerAdminMonitoringRoutes mounts /api/monitoring for ADMIN callers. Either handler may
// be nil when its feature is disabled.
func registerAdminMonitoringRoutes(api *gin.RouterGroup, summary *handlers.MonitoringHandler, audit *handlers.SecurityHandler) {
	if summary == nil && audit == nil {
		return
	}
	group := api.Group("/monitoring", middleware.RequireRole(models.RoleAdmin))
	if summary != nil {
		group.GET("/summary", summary.Summary)
	}
	if audit != nil {
		group.GET("/security", audit.Audit)
	}
}
