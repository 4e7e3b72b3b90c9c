package monitoring

import "time"

// Summary surfaces aggregated runtime counters for the status endpoint.
type Summary struct {
	GeneratedAt   time.Time           `json:"generated_at"`
	Notifications NotificationSummary `json:"notifications"`
	Channels      []ChannelSummary    `json:"channels"`
	Events        EventSummary        `json:"events"`
	Gateway       GatewaySummary      `json:"gateway"`
	Actions       ActionSummary       `json:"actions"`
	Maintenance   MaintenanceSummary  `json:"maintenance"`
}

type NotificationSummary struct {
	Created   uint64 `json:"created"`
	Dismissed uint64 `json:"dismissed"`
}

type ChannelSummary struct {
	Topic       string         `json:"topic"`
	Status      string         `json:"status"`
	ChangedAt   time.Time      `json:"changed_at"`
	Reconnects  uint64         `json:"reconnects"`
	Failures    uint64         `json:"failures"`
	LastFailure *FailureRecord `json:"last_failure,omitempty"`
}

type FailureRecord struct {
	Topic    string    `json:"topic"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type EventSummary struct {
	Dispatched uint64 `json:"dispatched"`
}

type GatewaySummary struct {
	Success               uint64  `json:"success"`
	Failure               uint64  `json:"failure"`
	AverageLatencySeconds float64 `json:"average_latency_seconds"`
}

type ActionSummary struct {
	Started    uint64 `json:"started"`
	Confirmed  uint64 `json:"confirmed"`
	RolledBack uint64 `json:"rolled_back"`
	InFlight   int64  `json:"in_flight"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
