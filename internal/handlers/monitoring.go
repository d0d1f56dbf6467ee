package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/app"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// MonitoringHandler serves the admin metrics summary.
type MonitoringHandler struct {
	module   *monitoring.Module
	scraping bool
	endpoint string
}

// NewMonitoringHandler returns nil when neither health nor metrics are enabled.
func NewMonitoringHandler(module *monitoring.Module, cfg *app.Config) *MonitoringHandler {
	if module == nil || cfg == nil {
		return nil
	}
	mon := cfg.Monitoring
	if !mon.Health.Enabled && !mon.Prometheus.Enabled {
		return nil
	}
	endpoint := strings.TrimSpace(mon.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return &MonitoringHandler{module: module, scraping: mon.Prometheus.Enabled, endpoint: endpoint}
}

// Summary reports realtime, messaging and maintenance counters for this instance.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"instance": h.module.Instance(),
		"summary":  monitoring.Snapshot(),
		"prometheus": gin.H{
			"enabled":  h.scraping,
			"endpoint": h.endpoint,
		},
	})
}
