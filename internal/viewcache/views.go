package viewcache

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/events"
	"github.com/linkfield/clientd/internal/gateway"
)

// Push event types that invalidate the view caches.
const (
	eventSummaryUpdated = "summary.updated"
	eventJobPosted      = "job.posted"
	eventJobUpdated     = "job.updated"
	eventGroupUpdated   = "group.updated"
	eventMemberJoined   = "member.joined"
)

// Fetcher supplies the view models. *gateway.Client satisfies it.
type Fetcher interface {
	Dashboard(ctx context.Context) (gateway.DashboardSummary, error)
	Jobs(ctx context.Context) ([]gateway.JobPosting, error)
	Groups(ctx context.Context) ([]gateway.PeerGroup, error)
}

// Views bundles the cached read models the UI renders and the optimistic
// actions mutate.
type Views struct {
	Dashboard *Cache[gateway.DashboardSummary]
	Jobs      *Cache[[]gateway.JobPosting]
	Groups    *Cache[[]gateway.PeerGroup]

	logger *zap.Logger
}

// ViewsOption customises a Views bundle.
type ViewsOption func(*Views)

// WithLogger attaches a logger to the view caches.
func WithLogger(logger *zap.Logger) ViewsOption {
	return func(v *Views) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewViews wires the three view caches to the fetcher.
func NewViews(fetcher Fetcher, opts ...ViewsOption) (*Views, error) {
	if fetcher == nil {
		return nil, errors.New("viewcache: fetcher is required")
	}

	v := &Views{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}

	var err error
	if v.Dashboard, err = NewCache("dashboard", fetcher.Dashboard, v.logger); err != nil {
		return nil, err
	}
	if v.Jobs, err = NewCache("jobs", fetcher.Jobs, v.logger); err != nil {
		return nil, err
	}
	if v.Groups, err = NewCache("groups", fetcher.Groups, v.logger); err != nil {
		return nil, err
	}
	return v, nil
}

// BindInvalidation subscribes every view cache to the push events that make
// its data stale.
func (v *Views) BindInvalidation(registry *events.Registry) error {
	if err := v.Dashboard.BindInvalidation(registry, channel.TopicDashboard, eventSummaryUpdated); err != nil {
		return err
	}
	if err := v.Jobs.BindInvalidation(registry, channel.TopicJobs, eventJobPosted, eventJobUpdated); err != nil {
		return err
	}
	if err := v.Groups.BindInvalidation(registry, channel.TopicGroups, eventGroupUpdated, eventMemberJoined); err != nil {
		return err
	}
	return nil
}

// Warm fetches every cold view so the first UI read is served from memory.
// Warming a view that is already populated is a no-op, which makes Warm safe
// to run from the maintenance loop.
func (v *Views) Warm(ctx context.Context) error {
	var errs error
	if _, err := v.Dashboard.Get(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := v.Jobs.Get(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := v.Groups.Get(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Close drops all push subscriptions.
func (v *Views) Close() {
	v.Dashboard.Close()
	v.Jobs.Close()
	v.Groups.Close()
}

// Mutation is an apply/rollback pair for one optimistic change to a view.
// Apply records the restore point, so Rollback before Apply is a no-op.
type Mutation struct {
	Apply    func()
	Rollback func()
}

func newMutation(update func() func()) Mutation {
	var restore func()
	return Mutation{
		Apply: func() { restore = update() },
		Rollback: func() {
			if restore != nil {
				restore()
			}
		},
	}
}

// FollowCompanyMutation bumps the followed-companies count on the dashboard.
func (v *Views) FollowCompanyMutation() Mutation {
	return newMutation(func() func() {
		return v.Dashboard.Update(func(summary gateway.DashboardSummary) gateway.DashboardSummary {
			summary.FollowedCompanies++
			return summary
		})
	})
}

// JoinGroupMutation marks the group joined and bumps its member count.
func (v *Views) JoinGroupMutation(groupID string) Mutation {
	return newMutation(func() func() {
		return v.Groups.Update(func(groups []gateway.PeerGroup) []gateway.PeerGroup {
			next := make([]gateway.PeerGroup, len(groups))
			copy(next, groups)
			for i := range next {
				if next[i].ID == groupID && !next[i].Joined {
					next[i].Joined = true
					next[i].Members++
				}
			}
			return next
		})
	})
}

// ApplyToJobMutation marks the job applied and bumps its applicant count.
func (v *Views) ApplyToJobMutation(jobID string) Mutation {
	return newMutation(func() func() {
		return v.Jobs.Update(func(jobs []gateway.JobPosting) []gateway.JobPosting {
			next := make([]gateway.JobPosting, len(jobs))
			copy(next, jobs)
			for i := range next {
				if next[i].ID == jobID && !next[i].Applied {
					next[i].Applied = true
					next[i].Applicants++
				}
			}
			return next
		})
	})
}
