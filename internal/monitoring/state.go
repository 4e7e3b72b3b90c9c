package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	notificationsCreated   atomic.Uint64
	notificationsDismissed atomic.Uint64

	eventsDispatched atomic.Uint64

	gatewaySuccess   atomic.Uint64
	gatewayFailure   atomic.Uint64
	gatewayLatencyNs atomic.Uint64
	gatewayRequests  atomic.Uint64

	actionsStarted    atomic.Uint64
	actionsConfirmed  atomic.Uint64
	actionsRolledBack atomic.Uint64
	actionsInFlight   atomic.Int64

	channels    sync.Map // string -> *channelStats
	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) summary() Summary {
	total := s.gatewayRequests.Load()
	var avgSeconds float64
	if total > 0 {
		avgSeconds = float64(s.gatewayLatencyNs.Load()) / float64(total) / float64(time.Second)
	}

	return Summary{
		GeneratedAt: time.Now(),
		Notifications: NotificationSummary{
			Created:   s.notificationsCreated.Load(),
			Dismissed: s.notificationsDismissed.Load(),
		},
		Channels: s.cloneChannels(),
		Events: EventSummary{
			Dispatched: s.eventsDispatched.Load(),
		},
		Gateway: GatewaySummary{
			Success:               s.gatewaySuccess.Load(),
			Failure:               s.gatewayFailure.Load(),
			AverageLatencySeconds: avgSeconds,
		},
		Actions: ActionSummary{
			Started:    s.actionsStarted.Load(),
			Confirmed:  s.actionsConfirmed.Load(),
			RolledBack: s.actionsRolledBack.Load(),
			InFlight:   s.actionsInFlight.Load(),
		},
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func (s *statStore) cloneChannels() []ChannelSummary {
	summaries := []ChannelSummary{}
	s.channels.Range(func(key, value any) bool {
		topic := key.(string)
		stats := value.(*channelStats)
		summaries = append(summaries, stats.snapshot(topic))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Topic < summaries[j].Topic })
	return summaries
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		job := key.(string)
		stats := value.(*maintenanceStats)
		summaries = append(summaries, stats.snapshot(job))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })
	return summaries
}

func (s *statStore) recordGatewayRequest(result string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	switch result {
	case "success":
		s.gatewaySuccess.Add(1)
	default:
		s.gatewayFailure.Add(1)
	}
	s.gatewayLatencyNs.Add(uint64(duration))
	s.gatewayRequests.Add(1)
}

func (s *statStore) recordActionStarted() {
	s.actionsStarted.Add(1)
	s.actionsInFlight.Add(1)
}

func (s *statStore) recordActionSettled(result string) {
	switch result {
	case "confirmed":
		s.actionsConfirmed.Add(1)
	default:
		s.actionsRolledBack.Add(1)
	}
	if s.actionsInFlight.Add(-1) < 0 {
		s.actionsInFlight.Store(0)
	}
}

func (s *statStore) channelEntry(topic string) *channelStats {
	value, ok := s.channels.Load(topic)
	if ok {
		return value.(*channelStats)
	}
	stats := &channelStats{}
	stats.status.Store("disconnected")
	actual, _ := s.channels.LoadOrStore(topic, stats)
	return actual.(*channelStats)
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	value, ok := s.maintenance.Load(job)
	if ok {
		return value.(*maintenanceStats)
	}
	stats := &maintenanceStats{}
	actual, _ := s.maintenance.LoadOrStore(job, stats)
	return actual.(*maintenanceStats)
}

type channelStats struct {
	status      atomic.Value // string
	changedAt   atomic.Int64 // unix nano
	reconnects  atomic.Uint64
	failures    atomic.Uint64
	lastFailure atomic.Value // *FailureRecord
}

func (c *channelStats) snapshot(topic string) ChannelSummary {
	status, _ := c.status.Load().(string)
	lastFailure, _ := c.lastFailure.Load().(*FailureRecord)

	var changedAt time.Time
	if ns := c.changedAt.Load(); ns > 0 {
		changedAt = time.Unix(0, ns)
	}

	return ChannelSummary{
		Topic:       topic,
		Status:      status,
		ChangedAt:   changedAt,
		Reconnects:  c.reconnects.Load(),
		Failures:    c.failures.Load(),
		LastFailure: lastFailure,
	}
}

func (c *channelStats) recordStatus(status string) {
	c.status.Store(status)
	c.changedAt.Store(time.Now().UnixNano())
}

func (c *channelStats) recordFailure(record FailureRecord) {
	c.failures.Add(1)
	cloned := record
	c.lastFailure.Store(&cloned)
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)
	lastRun := time.Unix(0, m.lastRun.Load())
	lastSuccess := time.Unix(0, m.lastSuccessfulRun.Load())

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           lastRun,
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       lastSuccess,
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	switch result {
	case "success":
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
	default:
		m.consecutiveFailures.Add(1)
		m.consecutiveSuccesses.Store(0)
	}
}
