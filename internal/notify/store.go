package notify

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/monitoring"
)

// Dismissal reasons reported to instrumentation.
const (
	reasonExpired = "expired"
	reasonRemoved = "removed"
	reasonCleared = "cleared"
	reasonPruned  = "pruned"
)

// Store keeps the notification queue in memory, oldest first, and owns the
// auto-dismiss timers. All state is lost on restart.
type Store struct {
	mu     sync.Mutex
	items  []*Notification
	timers map[string]*time.Timer

	defaultDuration time.Duration
	timeNow         func() time.Time
	logger          *zap.Logger
	closed          bool
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.timeNow = now
		}
	}
}

// WithDefaultDuration overrides the fallback auto-dismiss duration.
func WithDefaultDuration(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

// WithLogger attaches a logger for timer and lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore constructs an empty notification store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		timers:          make(map[string]*time.Timer),
		defaultDuration: DefaultDuration,
		timeNow:         time.Now,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add enqueues a notification and arms its auto-dismiss timer when the
// effective settings call for one. The stored notification is returned by
// value so callers cannot mutate queue state.
func (s *Store) Add(input Input) (Notification, error) {
	notificationType := input.Type
	if notificationType == "" {
		notificationType = TypeInfo
	}
	if !notificationType.Valid() {
		return Notification{}, fmt.Errorf("notify: unknown type %q", input.Type)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Notification{}, errors.New("notify: title is required")
	}

	autoDismiss := notificationType.autoDismissDefault()
	if input.AutoDismiss != nil {
		autoDismiss = *input.AutoDismiss
	}

	duration := s.defaultDuration
	if input.Duration != nil {
		duration = *input.Duration
	}
	// A non-positive duration pins the notification regardless of AutoDismiss.
	if duration <= 0 {
		autoDismiss = false
		duration = 0
	}

	record := &Notification{
		ID:          uuid.NewString(),
		Type:        notificationType,
		Title:       title,
		Message:     strings.TrimSpace(input.Message),
		CreatedAt:   s.timeNow(),
		AutoDismiss: autoDismiss,
		Duration:    duration,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Notification{}, errors.New("notify: store is closed")
	}

	s.items = append(s.items, record)
	if autoDismiss {
		id := record.ID
		s.timers[id] = time.AfterFunc(duration, func() {
			s.expire(id)
		})
	}

	monitoring.RecordNotificationCreated(string(notificationType))
	s.logger.Debug("notification added",
		zap.String("id", record.ID),
		zap.String("type", string(notificationType)),
		zap.Bool("auto_dismiss", autoDismiss),
	)

	return *record, nil
}

// Remove deletes the notification and cancels its timer. Removing an unknown
// or already dismissed id is a no-op.
func (s *Store) Remove(id string) bool {
	return s.remove(id, reasonRemoved)
}

// MarkRead flags the notification as read. Unknown ids are ignored.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.ID == id {
			item.Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every queued notification as read and returns how many
// were previously unread.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, item := range s.items {
		if !item.Read {
			item.Read = true
			changed++
		}
	}
	return changed
}

// ClearAll empties the queue, cancelling every pending timer, and returns the
// number of notifications dropped.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := len(s.items)
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.items = nil

	for i := 0; i < dropped; i++ {
		monitoring.RecordNotificationDismissed(reasonCleared)
	}
	return dropped
}

// List returns value copies of the queue in insertion order, oldest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

// Get returns a copy of the notification with the supplied id.
func (s *Store) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.ID == id {
			return *item, true
		}
	}
	return Notification{}, false
}

// Len returns the number of queued notifications.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Unread counts the notifications not yet marked read.
func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	unread := 0
	for _, item := range s.items {
		if !item.Read {
			unread++
		}
	}
	return unread
}

// PruneRead drops read notifications created before the retention cutoff and
// returns how many were removed. Unread notifications are never pruned.
func (s *Store) PruneRead(olderThan time.Duration) int {
	if olderThan <= 0 {
		return 0
	}
	cutoff := s.timeNow().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	pruned := 0
	for _, item := range s.items {
		if item.Read && item.CreatedAt.Before(cutoff) {
			s.stopTimerLocked(item.ID)
			pruned++
			monitoring.RecordNotificationDismissed(reasonPruned)
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return pruned
}

// Close cancels every timer and rejects further Adds. Queued notifications
// remain readable so a shutdown snapshot can still be served.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// expire is the timer callback path.
func (s *Store) expire(id string) {
	if s.remove(id, reasonExpired) {
		s.logger.Debug("notification auto-dismissed", zap.String("id", id))
	}
}

func (s *Store) remove(id string, reason string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID != id {
			continue
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		s.stopTimerLocked(id)
		monitoring.RecordNotificationDismissed(reason)
		return true
	}
	return false
}

func (s *Store) stopTimerLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}
