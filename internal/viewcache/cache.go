package viewcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/events"
)

// Cache memoizes one remotely fetched view model. A fetch runs at most once
// per invalidation; gateway pushes bound via BindInvalidation drop the cached
// value so the next read pulls fresh data.
type Cache[T any] struct {
	mu    sync.Mutex
	value T
	valid bool
	// gen increments on every state change so a stale restore closure can
	// detect that newer data arrived after its update.
	gen uint64

	name   string
	fetch  func(ctx context.Context) (T, error)
	logger *zap.Logger
	subs   []*events.Subscription
}

// NewCache constructs a cache around the given fetch function. The name is
// used for logging only.
func NewCache[T any](name string, fetch func(ctx context.Context) (T, error), logger *zap.Logger) (*Cache[T], error) {
	if fetch == nil {
		return nil, errors.New("viewcache: fetch function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{name: name, fetch: fetch, logger: logger}, nil
}

// Get returns the cached value, fetching it first when the cache is empty or
// was invalidated. Concurrent callers share a single fetch; fetch errors are
// returned without being memoized.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.value, nil
	}

	value, err := c.fetch(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("viewcache: fetch %s: %w", c.name, err)
	}

	c.value = value
	c.valid = true
	c.gen++
	return c.value, nil
}

// Snapshot returns the cached value without fetching. The second result is
// false when nothing valid is cached.
func (c *Cache[T]) Snapshot() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.valid
}

// Set replaces the cached value.
func (c *Cache[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.valid = true
	c.gen++
}

// Invalidate drops the cached value so the next Get refetches.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Cache[T]) invalidateLocked() {
	var zero T
	c.value = zero
	c.valid = false
	c.gen++
}

// Update applies fn to the cached value and returns a closure restoring the
// pre-update snapshot. fn must treat its argument as read-only and return a
// replacement value. When the cache moved on before restore runs (a push
// invalidated it or another update landed), restore invalidates instead of
// clobbering the newer state, so the next read refetches the server's truth.
// On an empty cache both the update and its restore are no-ops.
func (c *Cache[T]) Update(fn func(T) T) (restore func()) {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		return func() {}
	}

	prev := c.value
	c.value = fn(c.value)
	c.gen++
	gen := c.gen

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.valid {
			return
		}
		if c.gen != gen {
			c.invalidateLocked()
			return
		}
		c.value = prev
		c.gen++
	}
}

// BindInvalidation subscribes the cache to the given push events so matching
// gateway messages invalidate it.
func (c *Cache[T]) BindInvalidation(registry *events.Registry, topic string, eventTypes ...string) error {
	if registry == nil {
		return errors.New("viewcache: registry is required")
	}
	if len(eventTypes) == 0 {
		return errors.New("viewcache: at least one event type is required")
	}

	added := make([]*events.Subscription, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		sub, err := registry.OnFunc(topic, eventType, func(evt channel.Event) {
			c.logger.Debug("cache invalidated by push",
				zap.String("cache", c.name),
				zap.String("topic", evt.Topic),
				zap.String("event", evt.Type),
			)
			c.Invalidate()
		})
		if err != nil {
			for _, s := range added {
				s.Unsubscribe()
			}
			return fmt.Errorf("viewcache: bind %s to %s/%s: %w", c.name, topic, eventType, err)
		}
		added = append(added, sub)
	}

	c.mu.Lock()
	c.subs = append(c.subs, added...)
	c.mu.Unlock()
	return nil
}

// Close drops the cache's push subscriptions. The cached value stays
// readable.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
