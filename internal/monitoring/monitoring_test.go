package monitoring_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func TestSummaryAggregatesMetrics(t *testing.T) {
	setupModule(t)

	monitoring.RecordNotificationCreated("success")
	monitoring.RecordNotificationCreated("error")
	monitoring.RecordNotificationDismissed("expired")
	monitoring.RecordChannelStatus("jobs", "disconnected", "connecting")
	monitoring.RecordChannelStatus("jobs", "connecting", "connected")
	monitoring.RecordChannelReconnect("jobs")
	monitoring.RecordChannelFailure("jobs", "read", "connection reset")
	monitoring.RecordEventDispatched("jobs")
	monitoring.RecordGatewayRequest("GET", "/api/v1/jobs", "success", 120*time.Millisecond)
	monitoring.RecordGatewayRequest("POST", "/api/v1/groups/g-1/join", "failure", 80*time.Millisecond)
	monitoring.RecordActionStarted("group")
	monitoring.RecordActionSettled("group", "confirmed", 200*time.Millisecond)
	monitoring.RecordMaintenanceRun("notification_prune", "success", "", time.Second)

	summary := monitoring.Snapshot()
	require.Equal(t, uint64(2), summary.Notifications.Created)
	require.Equal(t, uint64(1), summary.Notifications.Dismissed)
	require.Equal(t, uint64(1), summary.Events.Dispatched)
	require.Equal(t, uint64(1), summary.Gateway.Success)
	require.Equal(t, uint64(1), summary.Gateway.Failure)
	require.Greater(t, summary.Gateway.AverageLatencySeconds, 0.0)
	require.Equal(t, uint64(1), summary.Actions.Started)
	require.Equal(t, uint64(1), summary.Actions.Confirmed)
	require.Equal(t, int64(0), summary.Actions.InFlight)
	require.NotEmpty(t, summary.Maintenance.Jobs)

	require.Len(t, summary.Channels, 1)
	channelSummary := summary.Channels[0]
	require.Equal(t, "jobs", channelSummary.Topic)
	require.Equal(t, "connected", channelSummary.Status)
	require.Equal(t, uint64(1), channelSummary.Reconnects)
	require.Equal(t, uint64(1), channelSummary.Failures)
	require.NotNil(t, channelSummary.LastFailure)
	require.Equal(t, "connection reset", channelSummary.LastFailure.Message)
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	mod := setupModule(t)

	monitoring.RecordNotificationCreated("info")

	recorder := httptest.NewRecorder()
	mod.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, recorder.Code)

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "clientd_notifications_created_total")
}

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.Register(monitoring.NewCheck("gateway", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.Register(monitoring.NewCheck("channels", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerRecoversPanickedCheck(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.Register(monitoring.NewCheck("exploding", func(ctx context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Len(t, report.Checks, 1)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Equal(t, "exploding", report.Checks[0].Component)
	require.Contains(t, report.Checks[0].Details, "probe exploded")
}

func TestMaintenanceCheck(t *testing.T) {
	setupModule(t)

	monitoring.RecordMaintenanceRun("notification_prune", "success", "", time.Second)
	monitoring.RecordMaintenanceRun("action_prune", "failure", "timeout", time.Second)

	check := checks.Maintenance(0)
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.NotEmpty(t, result.Details)
}

type stubChannelObserver struct {
	infos []channel.Info
}

func (s *stubChannelObserver) Infos() []channel.Info { return s.infos }

func TestChannelsCheck(t *testing.T) {
	check := checks.Channels(&stubChannelObserver{infos: []channel.Info{
		{Topic: "dashboard", Status: channel.StatusConnected},
		{Topic: "jobs", Status: channel.StatusReconnecting, Attempts: 3},
	}})
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "jobs")

	check = checks.Channels(&stubChannelObserver{infos: []channel.Info{
		{Topic: "dashboard", Status: channel.StatusDisconnected},
	}})
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)

	check = checks.Channels(&stubChannelObserver{})
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	check = checks.Channels(nil)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

func TestGatewayCheck(t *testing.T) {
	check := checks.Gateway(&stubPinger{})
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	check = checks.Gateway(&stubPinger{err: errors.New("connection refused")})
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "connection refused")

	check = checks.Gateway(nil)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}
