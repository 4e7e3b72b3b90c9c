package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/app"
	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/handlers"
	"github.com/linkfield/clientd/internal/middleware"
	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/internal/notify"
	"github.com/linkfield/clientd/internal/optimistic"
	"github.com/linkfield/clientd/internal/viewcache"
)

// Dependencies collects everything the local API needs. The router owns no
// domain state itself, it only exposes the runtime over HTTP.
type Dependencies struct {
	Config        *app.Config
	Notifications *notify.Store
	Channels      *channel.Manager
	Views         *viewcache.Views
	Actions       *optimistic.Coordinator
	Gateway       handlers.ActionGateway
	Monitoring    *monitoring.Module
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Notifications == nil {
		return nil, fmt.Errorf("notification store must be provided")
	}
	if deps.Channels == nil {
		return nil, fmt.Errorf("channel manager must be provided")
	}
	if deps.Views == nil {
		return nil, fmt.Errorf("view cache must be provided")
	}
	if deps.Actions == nil {
		return nil, fmt.Errorf("action coordinator must be provided")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway client must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, deps.Config, deps.Monitoring)

	statusHandler, err := handlers.NewStatusHandler(deps.Notifications, deps.Channels, deps.Actions)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
	if err != nil {
		return nil, err
	}
	channelHandler, err := handlers.NewChannelHandler(deps.Channels)
	if err != nil {
		return nil, err
	}
	viewHandler, err := handlers.NewViewHandler(deps.Views)
	if err != nil {
		return nil, err
	}
	actionHandler, err := handlers.NewActionHandler(deps.Actions, deps.Views, deps.Gateway)
	if err != nil {
		return nil, err
	}
	monitoringHandler := handlers.NewMonitoringHandler(
		deps.Config.Monitoring.Prometheus.Enabled,
		deps.Config.Monitoring.Prometheus.Endpoint,
	)

	api := r.Group("/api/v1")

	api.GET("/status", statusHandler.Status)

	registerNotificationRoutes(api, notificationHandler)
	registerChannelRoutes(api, channelHandler)
	registerViewRoutes(api, viewHandler)
	registerActionRoutes(api, actionHandler)
	registerMonitoringRoutes(api, monitoringHandler)

	// Metrics endpoint
	if deps.Config.Monitoring.Prometheus.Enabled && deps.Monitoring != nil {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(deps.Monitoring.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
