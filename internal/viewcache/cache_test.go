package viewcache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/events"
)

func countingFetch(value int) (func(ctx context.Context) (int, error), *atomic.Int64) {
	calls := &atomic.Int64{}
	return func(ctx context.Context) (int, error) {
		calls.Add(1)
		return value, nil
	}, calls
}

func TestGetFetchesOnceAndMemoizes(t *testing.T) {
	fetch, calls := countingFetch(42)
	cache, err := NewCache("answer", fetch, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		value, err := cache.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, 42, value)
	}
	require.EqualValues(t, 1, calls.Load())
}

func TestGetDoesNotMemoizeFetchErrors(t *testing.T) {
	calls := 0
	cache, err := NewCache("flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("gateway unreachable")
		}
		return "recovered", nil
	}, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background())
	require.Error(t, err)

	value, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "recovered", value)
	require.Equal(t, 2, calls)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetch, calls := countingFetch(7)
	cache, err := NewCache("sevens", fetch, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	_, ok := cache.Snapshot()
	require.False(t, ok)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestSetAndSnapshot(t *testing.T) {
	fetch, calls := countingFetch(1)
	cache, err := NewCache("manual", fetch, nil)
	require.NoError(t, err)

	_, ok := cache.Snapshot()
	require.False(t, ok)

	cache.Set(99)
	value, ok := cache.Snapshot()
	require.True(t, ok)
	require.Equal(t, 99, value)

	// A seeded cache never needs the fetcher.
	value, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 99, value)
	require.EqualValues(t, 0, calls.Load())
}

func TestUpdateAndRestoreRoundTrip(t *testing.T) {
	fetch, _ := countingFetch(10)
	cache, err := NewCache("counters", fetch, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	restore := cache.Update(func(v int) int { return v + 5 })
	value, ok := cache.Snapshot()
	require.True(t, ok)
	require.Equal(t, 15, value)

	restore()
	value, ok = cache.Snapshot()
	require.True(t, ok)
	require.Equal(t, 10, value)
}

func TestUpdateOnEmptyCacheIsNoop(t *testing.T) {
	fetch, calls := countingFetch(10)
	cache, err := NewCache("empty", fetch, nil)
	require.NoError(t, err)

	restore := cache.Update(func(v int) int { return v + 5 })
	_, ok := cache.Snapshot()
	require.False(t, ok)

	restore()
	require.EqualValues(t, 0, calls.Load())
}

func TestRestoreAfterInvalidationDoesNotResurrectOldValue(t *testing.T) {
	fetch, _ := countingFetch(10)
	cache, err := NewCache("stale", fetch, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	restore := cache.Update(func(v int) int { return v + 5 })
	cache.Invalidate()

	restore()
	_, ok := cache.Snapshot()
	require.False(t, ok, "restore must not repopulate an invalidated cache")
}

func TestRestoreAfterNewerUpdateInvalidates(t *testing.T) {
	fetch, _ := countingFetch(10)
	cache, err := NewCache("stacked", fetch, nil)
	require.NoError(t, err)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)

	restoreFirst := cache.Update(func(v int) int { return v + 1 })
	_ = cache.Update(func(v int) int { return v + 10 })

	// Rolling back the first update cannot cleanly unpick the second, so the
	// cache falls back to a refetch.
	restoreFirst()
	_, ok := cache.Snapshot()
	require.False(t, ok)
}

func TestConcurrentGetSharesOneFetch(t *testing.T) {
	started := make(chan struct{})
	cache, err := NewCache("slow", func(ctx context.Context) (int, error) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		return 5, nil
	}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := cache.Get(context.Background())
			require.NoError(t, err)
			results[i] = value
		}()
	}
	wg.Wait()

	select {
	case <-started:
	default:
		t.Fatal("fetch never ran")
	}
	for _, value := range results {
		require.Equal(t, 5, value)
	}
}

type stubConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newStubConn() *stubConn {
	return &stubConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *stubConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case payload := <-c.frames:
		return payload, nil
	}
}

func (c *stubConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *stubConn) push(t *testing.T, event string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"event": event})
	require.NoError(t, err)
	c.frames <- payload
}

type stubTransport struct {
	dialed chan *stubConn
}

func newStubTransport() *stubTransport {
	return &stubTransport{dialed: make(chan *stubConn, 16)}
}

func (t *stubTransport) Dial(ctx context.Context, topic string) (channel.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn := newStubConn()
	t.dialed <- conn
	return conn, nil
}

func (t *stubTransport) waitDial(tt *testing.T) *stubConn {
	tt.Helper()
	select {
	case conn := <-t.dialed:
		return conn
	case <-time.After(2 * time.Second):
		tt.Fatal("timed out waiting for dial")
		return nil
	}
}

func TestBindInvalidationDropsCacheOnPush(t *testing.T) {
	transport := newStubTransport()
	manager, err := channel.NewManager(transport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	registry, err := events.NewRegistry(manager)
	require.NoError(t, err)

	fetch, calls := countingFetch(3)
	cache, err := NewCache("bound", fetch, nil)
	require.NoError(t, err)
	require.NoError(t, cache.BindInvalidation(registry, "jobs", "job.posted"))
	t.Cleanup(cache.Close)

	conn := transport.waitDial(t)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())

	conn.push(t, "job.posted")
	require.Eventually(t, func() bool {
		_, ok := cache.Snapshot()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestBindInvalidationValidation(t *testing.T) {
	fetch, _ := countingFetch(1)
	cache, err := NewCache("unbound", fetch, nil)
	require.NoError(t, err)

	require.Error(t, cache.BindInvalidation(nil, "jobs", "job.posted"))

	transport := newStubTransport()
	manager, err := channel.NewManager(transport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	registry, err := events.NewRegistry(manager)
	require.NoError(t, err)

	require.Error(t, cache.BindInvalidation(registry, "jobs"))
}
