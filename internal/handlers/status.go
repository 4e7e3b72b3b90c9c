package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/notify"
	"github.com/linkfield/clientd/internal/optimistic"
	"github.com/linkfield/clientd/pkg/response"
)

// StatusHandler reports the daemon's runtime state in one call so the UI
// shell can render its connection badge and counters.
type StatusHandler struct {
	store       *notify.Store
	manager     *channel.Manager
	coordinator *optimistic.Coordinator
	startedAt   time.Time
	timeNow     func() time.Time
}

// StatusOption customises a StatusHandler.
type StatusOption func(*StatusHandler)

// WithStatusClock overrides the time source.
func WithStatusClock(now func() time.Time) StatusOption {
	return func(h *StatusHandler) {
		if now != nil {
			h.timeNow = now
		}
	}
}

// NewStatusHandler constructs a status handler. Uptime counts from the
// moment of construction.
func NewStatusHandler(store *notify.Store, manager *channel.Manager, coordinator *optimistic.Coordinator, opts ...StatusOption) (*StatusHandler, error) {
	if store == nil {
		return nil, errors.New("handlers: notification store is required")
	}
	if manager == nil {
		return nil, errors.New("handlers: channel manager is required")
	}
	if coordinator == nil {
		return nil, errors.New("handlers: action coordinator is required")
	}

	h := &StatusHandler{
		store:       store,
		manager:     manager,
		coordinator: coordinator,
		timeNow:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.timeNow()
	return h, nil
}

type statusReport struct {
	Status        string             `json:"status"`
	StartedAt     time.Time          `json:"started_at"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	Channels      []channel.Info     `json:"channels"`
	Notifications notificationCounts `json:"notifications"`
	Actions       actionCounts       `json:"actions"`
}

type notificationCounts struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

type actionCounts struct {
	Pending int `json:"pending"`
}

// Status returns the combined runtime report.
func (h *StatusHandler) Status(c *gin.Context) {
	now := h.timeNow()
	report := statusReport{
		Status:        "ok",
		StartedAt:     h.startedAt,
		UptimeSeconds: now.Sub(h.startedAt).Seconds(),
		Channels:      h.manager.Infos(),
		Notifications: notificationCounts{
			Total:  h.store.Len(),
			Unread: h.store.Unread(),
		},
		Actions: actionCounts{
			Pending: h.coordinator.PendingCount(),
		},
	}
	response.Success(c, http.StatusOK, report)
}
