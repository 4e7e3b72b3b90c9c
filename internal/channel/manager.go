package channel

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
)

// Status describes the lifecycle of a topic connection.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Info is a point-in-time snapshot of one topic connection.
type Info struct {
	Topic       string     `json:"topic"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// StatusHook observes status transitions. It is invoked outside the manager
// lock, so implementations may call back into the manager.
type StatusHook func(topic string, from, to Status)

type listenerEntry struct {
	id       uint64
	listener Listener
}

type connection struct {
	topic       string
	status      Status
	attempts    int
	cancel      context.CancelFunc
	conn        Conn
	connectedAt time.Time
	lastError   error
}

// Manager keeps at most one push connection per topic and fans received
// events out to registered listeners. Listener registrations are independent
// of connection lifecycle and survive disconnects.
type Manager struct {
	mu        sync.Mutex
	conns     map[string]*connection
	listeners map[string]map[string][]listenerEntry
	nextID    uint64
	closed    bool

	transport  Transport
	backoff    BackoffPolicy
	logger     *zap.Logger
	statusHook StatusHook

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithBackoff overrides the reconnect backoff policy.
func WithBackoff(policy BackoffPolicy) ManagerOption {
	return func(m *Manager) {
		m.backoff = policy
	}
}

// WithLogger attaches a logger for connection lifecycle events.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStatusHook registers a callback observing every status transition.
func WithStatusHook(hook StatusHook) ManagerOption {
	return func(m *Manager) {
		m.statusHook = hook
	}
}

// NewManager constructs a Manager over the supplied transport.
func NewManager(transport Transport, opts ...ManagerOption) (*Manager, error) {
	if transport == nil {
		return nil, errors.New("channel: transport is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		conns:      make(map[string]*connection),
		listeners:  make(map[string]map[string][]listenerEntry),
		transport:  transport,
		backoff:    DefaultBackoff(),
		logger:     zap.NewNop(),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Connect ensures a connection for the topic exists. Calling Connect for a
// topic that is already connecting, connected, or reconnecting is a no-op, so
// there is never more than one run loop per topic.
func (m *Manager) Connect(topic string) error {
	topic = normalizeTopic(topic)
	if topic == "" {
		return errors.New("channel: topic is required")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("channel: manager is closed")
	}
	if _, exists := m.conns[topic]; exists {
		m.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(m.rootCtx)
	c := &connection{topic: topic, status: StatusConnecting, cancel: cancel}
	m.conns[topic] = c
	m.wg.Add(1)
	m.mu.Unlock()

	m.notifyStatus(topic, StatusDisconnected, StatusConnecting)
	go m.run(ctx, c)
	return nil
}

// Disconnect tears down the topic connection. Listener registrations are kept
// so a later Connect resumes delivery. Unknown topics are a no-op.
func (m *Manager) Disconnect(topic string) error {
	topic = normalizeTopic(topic)
	if topic == "" {
		return errors.New("channel: topic is required")
	}

	m.mu.Lock()
	c, exists := m.conns[topic]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	delete(m.conns, topic)
	previous := c.status
	conn := c.conn
	c.conn = nil
	m.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	m.notifyStatus(topic, previous, StatusDisconnected)
	m.logger.Info("channel disconnected", zap.String("topic", topic))
	return nil
}

// Close disconnects every topic and waits for all run loops to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]Conn, 0, len(m.conns))
	for _, c := range m.conns {
		if c.conn != nil {
			conns = append(conns, c.conn)
			c.conn = nil
		}
	}
	m.mu.Unlock()

	m.rootCancel()
	for _, conn := range conns {
		_ = conn.Close()
	}
	m.wg.Wait()
	return nil
}

// Status returns the topic's connection status. Topics without a connection
// report StatusDisconnected.
func (m *Manager) Status(topic string) Status {
	topic = normalizeTopic(topic)

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, exists := m.conns[topic]; exists {
		return c.status
	}
	return StatusDisconnected
}

// Infos snapshots every live topic connection, sorted by topic.
func (m *Manager) Infos() []Info {
	m.mu.Lock()
	infos := make([]Info, 0, len(m.conns))
	for _, c := range m.conns {
		info := Info{
			Topic:    c.topic,
			Status:   c.status,
			Attempts: c.attempts,
		}
		if !c.connectedAt.IsZero() {
			connectedAt := c.connectedAt
			info.ConnectedAt = &connectedAt
		}
		if c.lastError != nil {
			info.LastError = c.lastError.Error()
		}
		infos = append(infos, info)
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Topic < infos[j].Topic })
	return infos
}

// AddListener registers a listener for events of the given type on the topic
// and returns its registration id. Listeners are dispatched in registration
// order.
func (m *Manager) AddListener(topic, eventType string, l Listener) (uint64, error) {
	topic = normalizeTopic(topic)
	if topic == "" {
		return 0, errors.New("channel: topic is required")
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return 0, errors.New("channel: event type is required")
	}
	if l == nil {
		return 0, errors.New("channel: listener is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	if m.listeners[topic] == nil {
		m.listeners[topic] = make(map[string][]listenerEntry)
	}
	m.listeners[topic][eventType] = append(m.listeners[topic][eventType], listenerEntry{id: id, listener: l})
	return id, nil
}

// RemoveListener drops the registration with the supplied id. Removing an id
// that was already removed is a no-op, and a removal during dispatch does not
// disturb delivery of the in-progress event to other listeners.
func (m *Manager) RemoveListener(topic, eventType string, id uint64) bool {
	topic = normalizeTopic(topic)
	eventType = strings.TrimSpace(eventType)

	m.mu.Lock()
	defer m.mu.Unlock()

	byType, ok := m.listeners[topic]
	if !ok {
		return false
	}
	entries := byType[eventType]
	for i, entry := range entries {
		if entry.id != id {
			continue
		}
		byType[eventType] = append(entries[:i:i], entries[i+1:]...)
		if len(byType[eventType]) == 0 {
			delete(byType, eventType)
		}
		if len(byType) == 0 {
			delete(m.listeners, topic)
		}
		return true
	}
	return false
}

// run owns the dial, read, and reconnect cycle for one topic.
func (m *Manager) run(ctx context.Context, c *connection) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil {
			m.finish(c)
			return
		}

		conn, err := m.transport.Dial(ctx, c.topic)
		if err != nil {
			if ctx.Err() != nil {
				m.finish(c)
				return
			}
			m.logger.Warn("channel dial failed",
				zap.String("topic", c.topic),
				zap.Error(err),
			)
			monitoring.RecordChannelFailure(c.topic, "dial", err.Error())
			if !m.beginReconnect(ctx, c, err) {
				return
			}
			continue
		}

		attempts, live := m.markConnected(c, conn)
		if !live {
			// Disconnect raced the dial; the connection is orphaned.
			_ = conn.Close()
			return
		}
		m.logger.Info("channel connected",
			zap.String("topic", c.topic),
			zap.Int("attempts", attempts),
		)

		readErr := m.readLoop(ctx, c.topic, conn)
		m.detach(c)
		_ = conn.Close()

		if ctx.Err() != nil {
			m.finish(c)
			return
		}

		m.logger.Warn("channel read failed",
			zap.String("topic", c.topic),
			zap.Error(readErr),
		)
		monitoring.RecordChannelFailure(c.topic, "read", readErr.Error())
		if !m.beginReconnect(ctx, c, readErr) {
			return
		}
	}
}

// readLoop decodes frames and dispatches them until the connection fails.
// Events are delivered in arrival order on this goroutine.
func (m *Manager) readLoop(ctx context.Context, topic string, conn Conn) error {
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(payload) == 0 {
			continue
		}

		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			m.logger.Warn("channel frame decode failed",
				zap.String("topic", topic),
				zap.Error(err),
			)
			monitoring.RecordChannelFailure(topic, "decode", err.Error())
			continue
		}
		if f.Event == "" {
			continue
		}

		m.dispatch(Event{Topic: topic, Type: f.Event, Data: f.Data})
	}
}

// dispatch delivers the event to a snapshot of the listener list so listeners
// may unsubscribe themselves, or each other, mid-dispatch.
func (m *Manager) dispatch(evt Event) {
	m.mu.Lock()
	entries := m.listeners[evt.Topic][evt.Type]
	snapshot := make([]listenerEntry, len(entries))
	copy(snapshot, entries)
	m.mu.Unlock()

	monitoring.RecordEventDispatched(evt.Topic)
	for _, entry := range snapshot {
		m.deliver(entry, evt)
	}
}

// deliver isolates listener panics so one faulty subscriber cannot stop the
// read loop or starve the listeners after it.
func (m *Manager) deliver(entry listenerEntry, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("channel listener panicked",
				zap.String("topic", evt.Topic),
				zap.String("event", evt.Type),
				zap.Uint64("listener_id", entry.id),
				zap.Any("panic", r),
			)
			monitoring.RecordChannelFailure(evt.Topic, "listener_panic", fmt.Sprint(r))
		}
	}()
	entry.listener.HandleEvent(evt)
}

// beginReconnect transitions to reconnecting and waits out the backoff.
// It reports false when the connection was orphaned by Disconnect or the
// context finished during the wait.
func (m *Manager) beginReconnect(ctx context.Context, c *connection, cause error) bool {
	m.mu.Lock()
	if m.conns[c.topic] != c {
		m.mu.Unlock()
		return false
	}
	previous := c.status
	c.status = StatusReconnecting
	c.lastError = cause
	attempt := c.attempts
	c.attempts++
	m.mu.Unlock()

	if previous != StatusReconnecting {
		m.notifyStatus(c.topic, previous, StatusReconnecting)
	}
	monitoring.RecordChannelReconnect(c.topic)

	delay := m.backoff.Delay(attempt)
	m.logger.Debug("channel reconnect scheduled",
		zap.String("topic", c.topic),
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay),
	)
	if !sleepCtx(ctx, delay) {
		m.finish(c)
		return false
	}
	return true
}

// markConnected stores the live conn, resets the attempt counter, and
// publishes the connected status. The second return is false when the
// connection is no longer the registered one for its topic.
func (m *Manager) markConnected(c *connection, conn Conn) (int, bool) {
	m.mu.Lock()
	if m.conns[c.topic] != c {
		m.mu.Unlock()
		return 0, false
	}
	previous := c.status
	attempts := c.attempts
	c.status = StatusConnected
	c.attempts = 0
	c.conn = conn
	c.connectedAt = time.Now()
	c.lastError = nil
	m.mu.Unlock()

	m.notifyStatus(c.topic, previous, StatusConnected)
	return attempts, true
}

func (m *Manager) detach(c *connection) {
	m.mu.Lock()
	c.conn = nil
	m.mu.Unlock()
}

// finish records the terminal disconnected status for a cancelled run loop.
// Orphaned connections, already replaced or removed under their topic, are
// left alone.
func (m *Manager) finish(c *connection) {
	m.mu.Lock()
	if m.conns[c.topic] != c {
		m.mu.Unlock()
		return
	}
	previous := c.status
	c.status = StatusDisconnected
	delete(m.conns, c.topic)
	m.mu.Unlock()

	if previous != StatusDisconnected {
		m.notifyStatus(c.topic, previous, StatusDisconnected)
	}
}

func (m *Manager) notifyStatus(topic string, from, to Status) {
	monitoring.RecordChannelStatus(topic, string(from), string(to))
	if m.statusHook != nil {
		m.statusHook(topic, from, to)
	}
}

// sleepCtx waits for the duration unless the context finishes first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
