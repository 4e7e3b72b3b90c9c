package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/linkfield/clientd/internal/app"
	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/gateway"
	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/internal/notify"
	"github.com/linkfield/clientd/internal/optimistic"
	"github.com/linkfield/clientd/internal/viewcache"
)

type stubConn struct {
	closed chan struct{}
}

func newStubConn() *stubConn {
	return &stubConn{closed: make(chan struct{})}
}

func (c *stubConn) ReadMessage() ([]byte, error) {
	<-c.closed
	return nil, errors.New("use of closed connection")
}

func (c *stubConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type stubTransport struct{}

func (stubTransport) Dial(ctx context.Context, topic string) (channel.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStubConn(), nil
}

type stubFetcher struct{}

func (stubFetcher) Dashboard(ctx context.Context) (gateway.DashboardSummary, error) {
	return gateway.DashboardSummary{Connections: 12, FollowedCompanies: 4}, nil
}

func (stubFetcher) Jobs(ctx context.Context) ([]gateway.JobPosting, error) {
	return []gateway.JobPosting{{ID: "j-1", Title: "Site Reliability Engineer"}}, nil
}

func (stubFetcher) Groups(ctx context.Context) ([]gateway.PeerGroup, error) {
	return []gateway.PeerGroup{{ID: "g-1", Name: "Gophers"}}, nil
}

type stubActions struct{}

func (stubActions) FollowCompany(ctx context.Context, id string) (json.RawMessage, error) {
	return json.RawMessage(`{"company_id":"` + id + `"}`), nil
}

func (stubActions) JoinGroup(ctx context.Context, id string) (json.RawMessage, error) {
	return json.RawMessage(`{"group_id":"` + id + `"}`), nil
}

func (stubActions) ApplyToJob(ctx context.Context, id string) (json.RawMessage, error) {
	return json.RawMessage(`{"job_id":"` + id + `"}`), nil
}

func newTestRouter(t *testing.T, mutate func(cfg *app.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	store := notify.NewStore()
	t.Cleanup(store.Close)

	manager, err := channel.NewManager(stubTransport{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	views, err := viewcache.NewViews(stubFetcher{})
	require.NoError(t, err)
	t.Cleanup(views.Close)

	coordinator, err := optimistic.NewCoordinator(store)
	require.NoError(t, err)

	mon, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mon)

	router, err := NewRouter(Dependencies{
		Config:        cfg,
		Notifications: store,
		Channels:      manager,
		Views:         views,
		Actions:       coordinator,
		Gateway:       stubActions{},
		Monitoring:    mon,
	})
	require.NoError(t, err)
	return router
}

func TestRouterCoreRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	paths := []string{
		"/healthz",
		"/api/v1/status",
		"/api/v1/notifications",
		"/api/v1/channels",
		"/api/v1/dashboard",
		"/api/v1/jobs",
		"/api/v1/groups",
		"/api/v1/actions",
		"/api/v1/monitoring/summary",
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(rec, req)
		require.Equalf(t, http.StatusOK, rec.Code, "GET %s: %s", path, rec.Body.String())
	}
}

func TestRouterActionRoute(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/companies/co-42/follow", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"confirmed"`)
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/missing", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/status", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := httptest.NewRecorder()
	metricsReq, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(metricsRec, metricsReq)
	require.Equal(t, http.StatusOK, metricsRec.Code)

	body := metricsRec.Body.String()
	if !strings.Contains(body, `clientd_api_latency_seconds_count{method="GET",path="/api/v1/status",status="200"}`) {
		t.Fatalf("metrics output missing latency series: %s", body)
	}
}

func TestRouterMetricsDisabled(t *testing.T) {
	router := newTestRouter(t, func(cfg *app.Config) {
		cfg.Monitoring.Prometheus.Enabled = false
	})

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterHealthDisabled(t *testing.T) {
	router := newTestRouter(t, func(cfg *app.Config) {
		cfg.Monitoring.Health.Enabled = false
	})

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"disabled"`)
}

func TestRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}
