package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/monitoring"
	"github.com/linkfield/clientd/pkg/logger"
)

const (
	defaultSchedule              = "@hourly"
	defaultNotificationRetention = 24 * time.Hour
	defaultActionRetention       = time.Hour
)

// NotificationPruner drops read notifications past the retention window.
// *notify.Store satisfies it.
type NotificationPruner interface {
	PruneRead(olderThan time.Duration) int
}

// ActionPruner drops settled optimistic action records past the retention
// window. *optimistic.Coordinator satisfies it.
type ActionPruner interface {
	CleanupSettled(olderThan time.Duration) int
}

// ViewWarmer refills cold view caches. *viewcache.Views satisfies it.
type ViewWarmer interface {
	Warm(ctx context.Context) error
}

// Cleaner runs the periodic housekeeping: pruning read notifications,
// pruning settled action records, and re-warming view caches that a push
// event invalidated. Any nil dependency skips the corresponding job.
type Cleaner struct {
	notifications NotificationPruner
	actions       ActionPruner
	views         ViewWarmer

	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	enabled bool

	schedule              string
	notificationRetention time.Duration
	actionRetention       time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for run timing.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron expression shared by all jobs.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithNotificationRetention adjusts how long read notifications are kept.
func WithNotificationRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.notificationRetention = d
		}
	}
}

// WithActionRetention adjusts how long settled action records are kept.
func WithActionRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.actionRetention = d
		}
	}
}

// NewCleaner constructs a Cleaner with hourly defaults.
func NewCleaner(notifications NotificationPruner, actions ActionPruner, views ViewWarmer, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		notifications:         notifications,
		actions:               actions,
		views:                 views,
		now:                   time.Now,
		log:                   logger.WithModule("maintenance"),
		schedule:              defaultSchedule,
		notificationRetention: defaultNotificationRetention,
		actionRetention:       defaultActionRetention,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.notifications != nil || cleaner.actions != nil || cleaner.views != nil

	return cleaner
}

// Start registers the jobs with the scheduler and launches it when at least
// one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.notifications != nil {
		if _, err := c.cron.AddFunc(c.schedule, func() {
			c.pruneNotifications()
		}); err != nil {
			return err
		}
	}

	if c.actions != nil {
		if _, err := c.cron.AddFunc(c.schedule, func() {
			c.pruneActions()
		}); err != nil {
			return err
		}
	}

	if c.views != nil {
		if _, err := c.cron.AddFunc(c.schedule, func() {
			if err := c.warmViews(context.Background()); err != nil {
				c.log.Warn("view warm failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, returning a context that is done once any
// running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used by tests and the
// startup path to do a first pass without waiting for the schedule.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.notifications != nil {
		c.pruneNotifications()
	}
	if c.actions != nil {
		c.pruneActions()
	}
	if c.views != nil {
		if err := c.warmViews(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) pruneNotifications() {
	start := c.now()
	pruned := c.notifications.PruneRead(c.notificationRetention)
	monitoring.RecordMaintenanceRun("notifications_prune", "success", "", c.now().Sub(start))
	if pruned > 0 {
		c.log.Info("pruned read notifications", zap.Int("count", pruned))
	}
}

func (c *Cleaner) pruneActions() {
	start := c.now()
	pruned := c.actions.CleanupSettled(c.actionRetention)
	monitoring.RecordMaintenanceRun("actions_cleanup", "success", "", c.now().Sub(start))
	if pruned > 0 {
		c.log.Info("pruned settled actions", zap.Int("count", pruned))
	}
}

func (c *Cleaner) warmViews(ctx context.Context) error {
	start := c.now()
	if err := c.views.Warm(ctx); err != nil {
		monitoring.RecordMaintenanceRun("views_warm", "failure", err.Error(), c.now().Sub(start))
		return err
	}
	monitoring.RecordMaintenanceRun("views_warm", "success", "", c.now().Sub(start))
	return nil
}
