package monitoring

import (
	"strings"
	"time"
)

// RecordNotificationCreated increments the creation counter for the type.
func RecordNotificationCreated(notificationType string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.notificationsCreated.WithLabelValues(normalizeLabel(notificationType)).Inc()
	module.stats.notificationsCreated.Add(1)
}

// RecordNotificationDismissed counts a notification leaving the store.
func RecordNotificationDismissed(reason string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.notificationsDismissed.WithLabelValues(normalizeLabel(reason)).Inc()
	module.stats.notificationsDismissed.Add(1)
}

// channelStatusValue maps a status name onto the gauge encoding.
func channelStatusValue(status string) float64 {
	switch status {
	case "connected":
		return 3
	case "reconnecting":
		return 2
	case "connecting":
		return 1
	default:
		return 0
	}
}

// RecordChannelStatus tracks a connection status transition for a topic.
func RecordChannelStatus(topic, from, to string) {
	module := ensureModule()
	if module == nil {
		return
	}
	topic = normalizePath(topic)
	from = normalizeLabel(from)
	to = normalizeLabel(to)

	module.metrics.channelStatus.WithLabelValues(topic).Set(channelStatusValue(to))
	module.metrics.channelTransitions.WithLabelValues(topic, from, to).Inc()
	module.stats.channelEntry(topic).recordStatus(to)
}

// RecordChannelReconnect counts a reconnect attempt for the topic.
func RecordChannelReconnect(topic string) {
	module := ensureModule()
	if module == nil {
		return
	}
	topic = normalizePath(topic)
	module.metrics.channelReconnects.WithLabelValues(topic).Inc()
	module.stats.channelEntry(topic).reconnects.Add(1)
}

// RecordChannelFailure snapshots a channel failure occurrence.
func RecordChannelFailure(topic, failureType, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	topic = normalizePath(topic)
	failureType = normalizeLabel(failureType)

	module.metrics.channelFailures.WithLabelValues(topic, failureType).Inc()
	module.stats.channelEntry(topic).recordFailure(FailureRecord{
		Topic:    topic,
		Type:     failureType,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// RecordEventDispatched counts one push event delivered on the topic.
func RecordEventDispatched(topic string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.eventsDispatched.WithLabelValues(normalizePath(topic)).Inc()
	module.stats.eventsDispatched.Add(1)
}

// RecordGatewayRequest captures the outcome and latency of one gateway call.
func RecordGatewayRequest(method, path, result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	result = normalizeLabel(result)

	module.metrics.gatewayRequests.WithLabelValues(method, path, result).Inc()
	observeDuration(module.metrics.gatewayLatency.WithLabelValues(method, path), duration)
	module.stats.recordGatewayRequest(result, duration)
}

// RecordActionStarted marks one optimistic action entering flight.
func RecordActionStarted(target string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.actionsStarted.WithLabelValues(normalizeLabel(target)).Inc()
	module.metrics.actionsInFlight.Inc()
	module.stats.recordActionStarted()
}

// RecordActionSettled marks an optimistic action leaving flight with its result.
func RecordActionSettled(target, result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	target = normalizeLabel(target)
	result = normalizeLabel(result)

	module.metrics.actionsSettled.WithLabelValues(target, result).Inc()
	observeDuration(module.metrics.actionDuration.WithLabelValues(result), duration)
	module.metrics.actionsInFlight.Dec()
	module.stats.recordActionSettled(result)
	if module.stats.actionsInFlight.Load() == 0 {
		module.metrics.actionsInFlight.Set(0)
	}
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)

	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

// sanitizePath prepares a URL path for use as a metric label. Routed paths
// keep their template form, slash included, so dashboards can group by route.
func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	return strings.ReplaceAll(path, " ", "_")
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
