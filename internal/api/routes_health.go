package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/app"
	"github.com/charlesng35/mentorlink/internal/monitoring"
)

type healthProbe func(context.Context) monitoring.HealthReport

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	var manager *monitoring.HealthManager
	if cfg.Monitoring.Health.Enabled && mon != nil {
		manager = mon.Health()
	}
	if manager == nil {
		for _, path := range []string{"/health", "/health/live", "/health/ready"} {
			r.GET(path, healthDisabled)
		}
		return
	}

	r.GET("/health", healthHandler(manager.EvaluateLiveness, false))
	r.GET("/health/live", healthHandler(manager.EvaluateLiveness, true))
	r.GET("/health/ready", healthHandler(manager.EvaluateReadiness, true))
}

// healthHandler answers 200 when the probe succeeds and 503 otherwise. The bare /health
// route omits per-check detail.
func healthHandler(probe healthProbe, detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := probe(c.Request.Context())
		body := gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": time.Now().UTC(),
		}
		if detailed {
			body["checks"] = report.Checks
		}
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
	}
}

func healthDisabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "status": "disabled"})
}
