package channel

import (
	"math/rand"
	"time"
)

// Reconnect backoff defaults.
const (
	DefaultBackoffBase   = time.Second
	DefaultBackoffMax    = 30 * time.Second
	DefaultBackoffJitter = 0.2
)

// BackoffPolicy computes reconnect delays. Delays double per attempt from
// Base up to Max, then a random jitter fraction is applied so a fleet of
// clients does not reconnect in lockstep.
type BackoffPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// DefaultBackoff returns the policy used when the configuration is silent.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Base:   DefaultBackoffBase,
		Max:    DefaultBackoffMax,
		Jitter: DefaultBackoffJitter,
	}
}

// Delay returns the wait before reconnect attempt number attempt, counted
// from zero.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	max := p.Max
	if max < base {
		max = DefaultBackoffMax
	}
	if max < base {
		max = base
	}

	if attempt < 0 {
		attempt = 0
	}
	// Cap the shift so the doubling cannot overflow time.Duration.
	if attempt > 30 {
		attempt = 30
	}

	delay := base << uint(attempt)
	if delay <= 0 || delay > max {
		delay = max
	}

	jitter := p.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		spread := 1 + (rand.Float64()*2-1)*jitter
		delay = time.Duration(float64(delay) * spread)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
