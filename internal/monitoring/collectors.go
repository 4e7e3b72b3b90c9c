package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	notificationsCreated   *prometheus.CounterVec
	notificationsDismissed *prometheus.CounterVec
	channelStatus          *prometheus.GaugeVec
	channelTransitions     *prometheus.CounterVec
	channelReconnects      *prometheus.CounterVec
	channelFailures        *prometheus.CounterVec
	eventsDispatched       *prometheus.CounterVec
	gatewayRequests        *prometheus.CounterVec
	gatewayLatency         *prometheus.HistogramVec
	actionsInFlight        prometheus.Gauge
	actionsStarted         *prometheus.CounterVec
	actionsSettled         *prometheus.CounterVec
	actionDuration         *prometheus.HistogramVec
	apiLatency             *prometheus.HistogramVec
	maintenanceRuns        *prometheus.CounterVec
	maintenanceDuration    *prometheus.HistogramVec
	maintenanceLastRun     *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets

	return &collectors{
		notificationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_created_total",
				Help:      "Notifications added to the store, by type",
			},
			[]string{"type"},
		),
		notificationsDismissed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_dismissed_total",
				Help:      "Notifications removed from the store, by reason",
			},
			[]string{"reason"},
		),
		channelStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "channel_status",
				Help:      "Connection state per topic (0 disconnected, 1 connecting, 2 reconnecting, 3 connected)",
			},
			[]string{"topic"},
		),
		channelTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_transitions_total",
				Help:      "Connection status transitions per topic",
			},
			[]string{"topic", "from", "to"},
		),
		channelReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_reconnects_total",
				Help:      "Reconnect attempts per topic",
			},
			[]string{"topic"},
		),
		channelFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_failures_total",
				Help:      "Channel failures by topic and failure type",
			},
			[]string{"topic", "type"},
		),
		eventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dispatched_total",
				Help:      "Push events dispatched to listeners, per topic",
			},
			[]string{"topic"},
		),
		gatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Gateway REST requests by route and result",
			},
			[]string{"method", "path", "result"},
		),
		gatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Gateway REST request duration",
				Buckets:   buckets,
			},
			[]string{"method", "path"},
		),
		actionsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "actions_in_flight",
				Help:      "Optimistic actions currently awaiting settlement",
			},
		),
		actionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_started_total",
				Help:      "Optimistic actions accepted for a target type",
			},
			[]string{"target"},
		),
		actionsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Settled optimistic actions by target type and result",
			},
			[]string{"target", "result"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Time from optimistic apply to settlement",
				Buckets:   buckets,
			},
			[]string{"result"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "Local API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Timestamp of the last successful maintenance run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.notificationsCreated,
		c.notificationsDismissed,
		c.channelStatus,
		c.channelTransitions,
		c.channelReconnects,
		c.channelFailures,
		c.eventsDispatched,
		c.gatewayRequests,
		c.gatewayLatency,
		c.actionsInFlight,
		c.actionsStarted,
		c.actionsSettled,
		c.actionDuration,
		c.apiLatency,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
