package events

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/channel"
)

// Registry is the subscription surface the rest of the daemon uses to react
// to gateway pushes. Subscribing ensures the underlying topic connection
// exists, so callers never manage connections directly.
type Registry struct {
	manager *channel.Manager
	logger  *zap.Logger
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithLogger attaches a logger for subscription events.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry constructs a Registry over the supplied channel manager.
func NewRegistry(manager *channel.Manager, opts ...RegistryOption) (*Registry, error) {
	if manager == nil {
		return nil, errors.New("events: channel manager is required")
	}

	r := &Registry{manager: manager, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// On subscribes the listener to events of the given type on the topic and
// returns a handle that undoes exactly this registration. The topic
// connection is established on first use.
func (r *Registry) On(topic, eventType string, l channel.Listener) (*Subscription, error) {
	id, err := r.manager.AddListener(topic, eventType, l)
	if err != nil {
		return nil, fmt.Errorf("events: register listener: %w", err)
	}

	if err := r.manager.Connect(topic); err != nil {
		r.manager.RemoveListener(topic, eventType, id)
		return nil, fmt.Errorf("events: connect topic %q: %w", topic, err)
	}

	r.logger.Debug("listener subscribed",
		zap.String("topic", topic),
		zap.String("event", eventType),
		zap.Uint64("listener_id", id),
	)

	return &Subscription{
		registry:  r,
		topic:     topic,
		eventType: eventType,
		id:        id,
	}, nil
}

// OnFunc subscribes a plain function.
func (r *Registry) OnFunc(topic, eventType string, fn func(channel.Event)) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("events: handler function is required")
	}
	return r.On(topic, eventType, channel.ListenerFunc(fn))
}

// Subscription identifies one listener registration. Function values are not
// comparable in Go, so removal works through this handle rather than by
// callback identity.
type Subscription struct {
	registry  *Registry
	topic     string
	eventType string
	id        uint64
	once      sync.Once
}

// Topic returns the subscribed channel topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// EventType returns the subscribed event type.
func (s *Subscription) EventType() string {
	return s.eventType
}

// Unsubscribe removes the registration. It is idempotent and safe to call
// from inside the subscribed callback while an event is being dispatched.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		removed := s.registry.manager.RemoveListener(s.topic, s.eventType, s.id)
		s.registry.logger.Debug("listener unsubscribed",
			zap.String("topic", s.topic),
			zap.String("event", s.eventType),
			zap.Uint64("listener_id", s.id),
			zap.Bool("removed", removed),
		)
	})
}
