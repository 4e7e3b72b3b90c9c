package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/api"
	"github.com/linkfield/clientd/internal/app"
	"github.com/linkfield/clientd/internal/app/maintenance"
	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/events"
	"github.com/linkfield/clientd/internal/gateway"
	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/internal/monitoring/checks"
	"github.com/linkfield/clientd/internal/notify"
	"github.com/linkfield/clientd/internal/optimistic"
	"github.com/linkfield/clientd/internal/viewcache"
	"github.com/linkfield/clientd/pkg/logger"
)

// runtimeStack bundles the long-lived components behind the HTTP server.
type runtimeStack struct {
	Gateway       *gateway.Client
	Notifications *notify.Store
	Channels      *channel.Manager
	Events        *events.Registry
	Views         *viewcache.Views
	Actions       *optimistic.Coordinator
	Cleaner       *maintenance.Cleaner
	Monitoring    *monitoring.Module
	Router        *gin.Engine
}

// bootstrapRuntime initialises the gateway client, the in-memory stores, the
// channel manager, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	var token gateway.TokenProvider
	if cfg.Gateway.Token != "" {
		token = gateway.StaticToken(cfg.Gateway.Token)
	}

	stack.Gateway, err = gateway.NewClient(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		Token:          token,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		DialTimeout:    cfg.Gateway.DialTimeout,
		Logger:         logger.WithModule("gateway"),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise gateway client: %w", err)
	}

	transport, err := gateway.NewTransport(cfg.Gateway.WSURL, token,
		gateway.WithTransportLogger(logger.WithModule("gateway.ws")))
	if err != nil {
		return nil, fmt.Errorf("initialise gateway transport: %w", err)
	}

	stack.Notifications = notify.NewStore(
		notify.WithDefaultDuration(cfg.Notifications.DefaultDuration),
		notify.WithLogger(logger.WithModule("notify")),
	)

	stack.Channels, err = channel.NewManager(transport,
		channel.WithBackoff(cfg.Channel.Backoff()),
		channel.WithLogger(logger.WithModule("channel")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise channel manager: %w", err)
	}

	stack.Events, err = events.NewRegistry(stack.Channels,
		events.WithLogger(logger.WithModule("events")))
	if err != nil {
		return nil, fmt.Errorf("initialise event registry: %w", err)
	}

	stack.Views, err = viewcache.NewViews(stack.Gateway,
		viewcache.WithLogger(logger.WithModule("viewcache")))
	if err != nil {
		return nil, fmt.Errorf("initialise view caches: %w", err)
	}
	if err := stack.Views.BindInvalidation(stack.Events); err != nil {
		return nil, fmt.Errorf("bind view invalidation: %w", err)
	}

	stack.Actions, err = optimistic.NewCoordinator(stack.Notifications,
		optimistic.WithLogger(logger.WithModule("optimistic")))
	if err != nil {
		return nil, fmt.Errorf("initialise action coordinator: %w", err)
	}

	if err := bindNotificationPush(stack.Events, stack.Notifications, log); err != nil {
		return nil, fmt.Errorf("bind notification push: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Notifications, stack.Actions, stack.Views,
		maintenance.WithSchedule(cfg.Maintenance.Schedule),
		maintenance.WithNotificationRetention(cfg.Maintenance.NotificationRetention),
		maintenance.WithActionRetention(cfg.Maintenance.ActionRetention),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	health := stack.Monitoring.Health()
	health.Register(checks.Gateway(stack.Gateway))
	health.Register(checks.Channels(stack.Channels))
	health.Register(checks.Maintenance(0))

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		Notifications: stack.Notifications,
		Channels:      stack.Channels,
		Views:         stack.Views,
		Actions:       stack.Actions,
		Gateway:       stack.Gateway,
		Monitoring:    stack.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	connectChannels(stack.Channels, cfg.Channel.Topics, log)

	// First maintenance pass warms the view caches without waiting for the
	// cron schedule. Runs off the startup path so a slow gateway cannot
	// delay the listener.
	go func() {
		if err := stack.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("startup maintenance pass failed", zap.Error(err))
		}
	}()

	success = true
	return stack, nil
}

// Shutdown stops background jobs and tears down connections and timers.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Channels != nil {
		if err := s.Channels.Close(); err != nil {
			log.Warn("channel manager shutdown", zap.Error(err))
		}
	}

	if s.Views != nil {
		s.Views.Close()
	}

	if s.Notifications != nil {
		s.Notifications.Close()
	}
}

func connectChannels(manager *channel.Manager, topics []string, log *zap.Logger) {
	for _, topic := range topics {
		if err := manager.Connect(topic); err != nil {
			log.Warn("channel connect failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// gatewayNotification is the push payload on the notifications topic.
type gatewayNotification struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// bindNotificationPush feeds gateway-pushed notifications into the local store.
func bindNotificationPush(registry *events.Registry, store *notify.Store, log *zap.Logger) error {
	_, err := registry.OnFunc(channel.TopicNotifications, "notification.created", func(evt channel.Event) {
		var payload gatewayNotification
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			log.Warn("undecodable notification push", zap.Error(err))
			return
		}
		if _, err := store.Add(notify.Input{
			Type:    notify.Type(payload.Type),
			Title:   payload.Title,
			Message: payload.Message,
		}); err != nil {
			log.Warn("notification push rejected", zap.Error(err))
		}
	})
	return err
}
