// Package ratelimit enforces multi-tier call quotas in front of a metered
// upstream API: a rolling per-minute global window, a per-day global counter
// and a per-day counter for each caller scope.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/verdia-ai/verdia/pkg/models"
)

// Store tracks call counts for the quota tiers. Implementations must make
// evaluation and recording atomic per call so concurrent admissions cannot
// exceed a tier's limit.
type Store interface {
	// Take evaluates the tiers in order (minute, day-global, day-scope) and
	// records the call on admission. It returns the tier that rejected the
	// call, or models.TierNone when admitted.
	Take(ctx context.Context, scope string, limits models.Limits) (models.Tier, error)
	// Remaining reports per-tier headroom without recording a call. It still
	// performs day rollover and window pruning.
	Remaining(ctx context.Context, scope string, limits models.Limits) (models.Remaining, error)
}

// QuotaError reports which quota tier rejected a call. Rejection is a signal
// for the caller to wait, queue or fail the user-facing request; the limiter
// never retries internally.
type QuotaError struct {
	Tier  models.Tier
	Scope string
}

func (e *QuotaError) Error() string {
	if e.Tier == models.TierDayScope && e.Scope != "" {
		return fmt.Sprintf("quota exceeded: %s for scope %q", e.Tier, e.Scope)
	}
	return fmt.Sprintf("quota exceeded: %s", e.Tier)
}

// Limiter admits or rejects pending calls against a configured set of limits.
type Limiter struct {
	store  Store
	limits models.Limits
}

// New creates a Limiter over the given store. A limit of 0 disables that tier.
func New(store Store, limits models.Limits) *Limiter {
	return &Limiter{store: store, limits: limits}
}

// Limits returns the configured limits.
func (l *Limiter) Limits() models.Limits { return l.limits }

// Admit evaluates all tiers for the given caller scope and records the call
// when admitted. On rejection it returns a *QuotaError naming the tier.
func (l *Limiter) Admit(ctx context.Context, scope string) error {
	tier, err := l.store.Take(ctx, scope, l.limits)
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if tier != models.TierNone {
		return &QuotaError{Tier: tier, Scope: scope}
	}
	return nil
}

// Remaining reports how many calls each tier will still admit for scope.
// It records nothing.
func (l *Limiter) Remaining(ctx context.Context, scope string) (models.Remaining, error) {
	rem, err := l.store.Remaining(ctx, scope, l.limits)
	if err != nil {
		return models.Remaining{}, fmt.Errorf("quota remaining: %w", err)
	}
	return rem, nil
}
