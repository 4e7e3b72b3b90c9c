package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
)

func TestCleanerRunOnce(t *testing.T) {
	notifications := &stubNotificationPruner{pruned: 3}
	actions := &stubActionPruner{removed: 2}
	warmer := &stubWarmer{}
	clock := fixedClock{current: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}

	c := NewCleaner(notifications, actions, warmer,
		WithNow(clock.Now),
		WithNotificationRetention(12*time.Hour),
		WithActionRetention(30*time.Minute),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))

	require.Equal(t, []time.Duration{12 * time.Hour}, notifications.olderThan)
	require.Equal(t, []time.Duration{30 * time.Minute}, actions.olderThan)
	require.Equal(t, 1, warmer.calls)
}

func TestCleanerRunOnceCollectsWarmFailure(t *testing.T) {
	notifications := &stubNotificationPruner{}
	actions := &stubActionPruner{}
	warmer := &stubWarmer{err: errors.New("gateway unreachable")}

	c := NewCleaner(notifications, actions, warmer)

	err := c.RunOnce(context.Background())
	require.ErrorContains(t, err, "gateway unreachable")

	// The pruners still run even when warming fails.
	require.Len(t, notifications.olderThan, 1)
	require.Len(t, actions.olderThan, 1)
}

func TestCleanerDefaultRetentions(t *testing.T) {
	notifications := &stubNotificationPruner{}
	actions := &stubActionPruner{}

	c := NewCleaner(notifications, actions, nil)

	require.NoError(t, c.RunOnce(context.Background()))
	require.Equal(t, []time.Duration{24 * time.Hour}, notifications.olderThan)
	require.Equal(t, []time.Duration{time.Hour}, actions.olderThan)
}

func TestCleanerStartSchedulesJobs(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))

	c := NewCleaner(&stubNotificationPruner{}, &stubActionPruner{}, &stubWarmer{},
		WithCron(scheduler),
		WithSchedule("@every 1h"),
	)

	require.NoError(t, c.Start())
	require.Len(t, scheduler.Entries(), 3)

	<-c.Stop().Done()
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	c := NewCleaner(&stubNotificationPruner{}, nil, nil,
		WithSchedule("every now and then"),
	)

	require.Error(t, c.Start())
}

func TestCleanerDisabledWithoutJobs(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))

	c := NewCleaner(nil, nil, nil, WithCron(scheduler))

	require.NoError(t, c.Start())
	require.Empty(t, scheduler.Entries())
	require.NoError(t, c.RunOnce(context.Background()))
}

type stubNotificationPruner struct {
	olderThan []time.Duration
	pruned    int
}

func (s *stubNotificationPruner) PruneRead(olderThan time.Duration) int {
	s.olderThan = append(s.olderThan, olderThan)
	return s.pruned
}

type stubActionPruner struct {
	olderThan []time.Duration
	removed   int
}

func (s *stubActionPruner) CleanupSettled(olderThan time.Duration) int {
	s.olderThan = append(s.olderThan, olderThan)
	return s.removed
}

type stubWarmer struct {
	calls int
	err   error
}

func (s *stubWarmer) Warm(ctx context.Context) error {
	s.calls++
	return s.err
}

type fixedClock struct {
	current time.Time
}

func (c fixedClock) Now() time.Time {
	return c.current
}
