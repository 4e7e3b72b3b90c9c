package optimistic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/internal/notify"
)

// ErrActionInFlight indicates the target already has an unsettled action, so
// the new one was rejected before any local mutation happened.
var ErrActionInFlight = errors.New("optimistic action already in flight for target")

// genericFailureMessage is shown when the gateway gives no usable reason.
const genericFailureMessage = "The change could not be saved. Please try again."

// Status tracks where an action is in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusRolledBack Status = "rolled_back"
)

// Action describes one optimistic mutation. Apply updates local view state
// immediately, Request performs the server call, and Rollback restores the
// pre-Apply state when the server rejects the change.
type Action struct {
	TargetType string
	TargetID   string

	Apply    func()
	Rollback func()
	Request  func(ctx context.Context) (json.RawMessage, error)

	// SuccessTitle and SuccessMessage feed the confirmation notification.
	// An empty SuccessTitle suppresses it.
	SuccessTitle   string
	SuccessMessage string
	// FailureTitle heads the rollback notification. Defaults to "Action failed".
	FailureTitle string
}

// PendingAction is the queryable record of an action against a target.
type PendingAction struct {
	TargetType string     `json:"target_type"`
	TargetID   string     `json:"target_id"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
	Failure    string     `json:"failure,omitempty"`
}

// Notifier publishes outcome notifications. *notify.Store satisfies it.
type Notifier interface {
	Add(input notify.Input) (notify.Notification, error)
}

// userMessenger is implemented by errors carrying a server-provided,
// user-facing rejection reason.
type userMessenger interface {
	UserMessage() string
}

// Coordinator serialises optimistic actions per target: at most one pending
// action may exist for a (target type, target id) pair at any moment. Settled
// records stay queryable until a maintenance pass prunes them or a new action
// replaces them.
type Coordinator struct {
	mu      sync.Mutex
	actions map[string]*PendingAction

	notifier Notifier
	logger   *zap.Logger
	timeNow  func() time.Time
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a logger for action lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNow overrides the time source. Used by tests and maintenance.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.timeNow = now
		}
	}
}

// NewCoordinator constructs a Coordinator publishing outcomes through the
// supplied notifier.
func NewCoordinator(notifier Notifier, opts ...Option) (*Coordinator, error) {
	if notifier == nil {
		return nil, errors.New("optimistic: notifier is required")
	}

	c := &Coordinator{
		actions:  make(map[string]*PendingAction),
		notifier: notifier,
		logger:   zap.NewNop(),
		timeNow:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Perform runs the action: the local Apply happens first, then the server
// Request. On success the action is confirmed and the response payload
// returned. On failure Rollback restores local state and the rejection is
// surfaced as an error notification. A target with an action still pending
// rejects new ones with ErrActionInFlight before any side effect.
func (c *Coordinator) Perform(ctx context.Context, action Action) (json.RawMessage, error) {
	if err := validateAction(action); err != nil {
		return nil, err
	}

	key := targetKey(action.TargetType, action.TargetID)
	record := &PendingAction{
		TargetType: action.TargetType,
		TargetID:   action.TargetID,
		Status:     StatusPending,
		StartedAt:  c.timeNow(),
	}

	c.mu.Lock()
	if existing, exists := c.actions[key]; exists && existing.Status == StatusPending {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s %s", ErrActionInFlight, action.TargetType, action.TargetID)
	}
	c.actions[key] = record
	c.mu.Unlock()

	monitoring.RecordActionStarted(action.TargetType)
	c.logger.Debug("optimistic action started",
		zap.String("target_type", action.TargetType),
		zap.String("target_id", action.TargetID),
	)

	action.Apply()

	payload, err := action.Request(ctx)
	if err != nil {
		action.Rollback()
		c.settle(record, StatusRolledBack, rejectionMessage(err))
		monitoring.RecordActionSettled(action.TargetType, "rolled_back", c.sinceStart(record))
		c.notifyFailure(action, err)
		c.logger.Warn("optimistic action rolled back",
			zap.String("target_type", action.TargetType),
			zap.String("target_id", action.TargetID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("optimistic: %s %s: %w", action.TargetType, action.TargetID, err)
	}

	c.settle(record, StatusConfirmed, "")
	monitoring.RecordActionSettled(action.TargetType, "confirmed", c.sinceStart(record))
	c.notifySuccess(action)
	c.logger.Debug("optimistic action confirmed",
		zap.String("target_type", action.TargetType),
		zap.String("target_id", action.TargetID),
	)
	return payload, nil
}

// InFlight reports whether the target currently has a pending action.
func (c *Coordinator) InFlight(targetType, targetID string) bool {
	key := targetKey(strings.TrimSpace(targetType), strings.TrimSpace(targetID))

	c.mu.Lock()
	defer c.mu.Unlock()

	record, exists := c.actions[key]
	return exists && record.Status == StatusPending
}

// PendingCount returns the number of actions still awaiting settlement.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, record := range c.actions {
		if record.Status == StatusPending {
			count++
		}
	}
	return count
}

// Pending returns copies of the unsettled actions, oldest first.
func (c *Coordinator) Pending() []PendingAction {
	c.mu.Lock()
	out := make([]PendingAction, 0)
	for _, record := range c.actions {
		if record.Status == StatusPending {
			out = append(out, *cloneRecord(record))
		}
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Recent returns copies of every tracked action, newest first. Settled
// records remain until pruned or replaced by a newer action on the target.
func (c *Coordinator) Recent() []PendingAction {
	c.mu.Lock()
	out := make([]PendingAction, 0, len(c.actions))
	for _, record := range c.actions {
		out = append(out, *cloneRecord(record))
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// CleanupSettled drops settled records older than the retention window and
// returns how many were removed. Pending actions are never touched.
func (c *Coordinator) CleanupSettled(olderThan time.Duration) int {
	if olderThan < 0 {
		return 0
	}
	cutoff := c.timeNow().Add(-olderThan)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, record := range c.actions {
		if record.Status == StatusPending {
			continue
		}
		if record.SettledAt != nil && record.SettledAt.Before(cutoff) {
			delete(c.actions, key)
			removed++
		}
	}
	return removed
}

func (c *Coordinator) settle(record *PendingAction, status Status, failure string) {
	settledAt := c.timeNow()

	c.mu.Lock()
	record.Status = status
	record.SettledAt = &settledAt
	record.Failure = failure
	c.mu.Unlock()
}

func (c *Coordinator) sinceStart(record *PendingAction) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record.SettledAt == nil {
		return 0
	}
	return record.SettledAt.Sub(record.StartedAt)
}

func (c *Coordinator) notifySuccess(action Action) {
	if action.SuccessTitle == "" {
		return
	}
	if _, err := c.notifier.Add(notify.Input{
		Type:    notify.TypeSuccess,
		Title:   action.SuccessTitle,
		Message: action.SuccessMessage,
	}); err != nil {
		c.logger.Warn("failed to publish success notification", zap.Error(err))
	}
}

func (c *Coordinator) notifyFailure(action Action, cause error) {
	title := action.FailureTitle
	if title == "" {
		title = "Action failed"
	}
	if _, err := c.notifier.Add(notify.Input{
		Type:    notify.TypeError,
		Title:   title,
		Message: rejectionMessage(cause),
	}); err != nil {
		c.logger.Warn("failed to publish failure notification", zap.Error(err))
	}
}

// rejectionMessage prefers the server's user-facing reason and falls back to
// a generic one.
func rejectionMessage(err error) string {
	var um userMessenger
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	return genericFailureMessage
}

func validateAction(action Action) error {
	if strings.TrimSpace(action.TargetType) == "" {
		return errors.New("optimistic: target type is required")
	}
	if strings.TrimSpace(action.TargetID) == "" {
		return errors.New("optimistic: target id is required")
	}
	if action.Apply == nil {
		return errors.New("optimistic: apply is required")
	}
	if action.Rollback == nil {
		return errors.New("optimistic: rollback is required")
	}
	if action.Request == nil {
		return errors.New("optimistic: request is required")
	}
	return nil
}

func cloneRecord(record *PendingAction) *PendingAction {
	if record == nil {
		return nil
	}
	clone := *record
	if record.SettledAt != nil {
		settledAt := *record.SettledAt
		clone.SettledAt = &settledAt
	}
	return &clone
}

func targetKey(targetType, targetID string) string {
	return fmt.Sprintf("%s:%s", targetType, targetID)
}
