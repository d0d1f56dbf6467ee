package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/app"
	iauth "github.com/charlesng35/mentorlink/internal/auth"
	"github.com/charlesng35/mentorlink/internal/handlers"
	"github.com/charlesng35/mentorlink/internal/middleware"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/security"
)

// RouterDeps groups the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Config     *app.Config
	JWT        *iauth.JWTService
	Stack      *Stack
	Monitoring *monitoring.Module
	// Audit serves the admin security audit; nil leaves the route unregistered.
	Audit *security.AuditService
	// RateStore backs per-IP rate limiting; nil disables it.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the REST and websocket routes.
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Stack == nil {
		return nil, fmt.Errorf("service stack must be provided")
	}
	cfg := deps.Config

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	if deps.RateStore != nil && cfg.RateLimit.Requests > 0 {
		r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	registerHealthRoutes(r, cfg, deps.Monitoring)
	registerMetricsRoute(r, cfg, deps.Monitoring)

	realtimeHandler := handlers.NewRealtimeHandler(deps.Stack.Gateway, deps.JWT)
	r.GET("/ws", realtimeHandler.Stream)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerMessageRoutes(api, handlers.NewMessageHandler(deps.Stack.Messages))
	registerConversationRoutes(api, handlers.NewConversationHandler(deps.Stack.Conversations))

	notificationHandler := handlers.NewNotificationHandler(deps.Stack.Notifications, deps.Stack.Dispatcher)
	registerNotificationRoutes(api, notificationHandler)
	registerInternalRoutes(api, notificationHandler)

	registerRequestRoutes(api, handlers.NewRequestHandler(deps.Stack.Requests))
	registerAdminMonitoringRoutes(api,
		handlers.NewMonitoringHandler(deps.Monitoring, cfg),
		handlers.NewSecurityHandler(deps.Audit),
	)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if mon == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(mon.Handler()))
}
