package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verdia-ai/verdia/pkg/clock"
	"github.com/verdia-ai/verdia/pkg/models"
)

func newTestLimiter(t *testing.T, limits models.Limits) (*Limiter, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC))
	return New(NewMemoryStore(clk), limits), clk
}

func quotaTier(t *testing.T, err error) models.Tier {
	t.Helper()
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	return qe.Tier
}

func TestMinuteLimit(t *testing.T) {
	l, clk := newTestLimiter(t, models.Limits{PerMinute: 60})
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := l.Admit(ctx, "user:1"); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}
	err := l.Admit(ctx, "user:1")
	if tier := quotaTier(t, err); tier != models.TierMinute {
		t.Errorf("expected minute tier, got %s", tier)
	}

	// Window slides: a minute later every slot is free again.
	clk.Advance(time.Minute)
	if err := l.Admit(ctx, "user:1"); err != nil {
		t.Errorf("expected admission after window slide: %v", err)
	}
}

func TestMinuteWindowSlides(t *testing.T) {
	l, clk := newTestLimiter(t, models.Limits{PerMinute: 2})
	ctx := context.Background()

	if err := l.Admit(ctx, ""); err != nil {
		t.Fatal(err)
	}
	clk.Advance(30 * time.Second)
	if err := l.Admit(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := l.Admit(ctx, ""); err == nil {
		t.Fatal("expected rejection with a full window")
	}

	// 35s later the first call has left the window, the second has not.
	clk.Advance(35 * time.Second)
	if err := l.Admit(ctx, ""); err != nil {
		t.Fatalf("expected one free slot: %v", err)
	}
	if err := l.Admit(ctx, ""); err == nil {
		t.Fatal("expected rejection, window full again")
	}
}

func TestDayLimitGlobal(t *testing.T) {
	l, clk := newTestLimiter(t, models.Limits{PerDayGlobal: 2})
	ctx := context.Background()

	if err := l.Admit(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Admit(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	err := l.Admit(ctx, "c")
	if tier := quotaTier(t, err); tier != models.TierDayGlobal {
		t.Errorf("expected day_global tier, got %s", tier)
	}

	// Mid-day time passing never resets the counter.
	clk.Advance(6 * time.Hour)
	if err := l.Admit(ctx, "c"); err == nil {
		t.Fatal("daily counter must not reset mid-day")
	}

	// The first call of the next calendar day succeeds.
	clk.Advance(9 * time.Hour)
	if err := l.Admit(ctx, "c"); err != nil {
		t.Fatalf("expected reset after day rollover: %v", err)
	}
}

func TestDayLimitPerScope(t *testing.T) {
	l, _ := newTestLimiter(t, models.Limits{PerDayPerScope: 1})
	ctx := context.Background()

	if err := l.Admit(ctx, "user:1"); err != nil {
		t.Fatal(err)
	}
	err := l.Admit(ctx, "user:1")
	if tier := quotaTier(t, err); tier != models.TierDayScope {
		t.Errorf("expected day_scope tier, got %s", tier)
	}

	// Other scopes are unaffected.
	if err := l.Admit(ctx, "user:2"); err != nil {
		t.Errorf("scope user:2 should be independent: %v", err)
	}

	// Calls without a scope bypass the per-scope tier.
	if err := l.Admit(ctx, ""); err != nil {
		t.Errorf("unscoped call should not hit the scope tier: %v", err)
	}
}

func TestTierEvaluationOrder(t *testing.T) {
	l, _ := newTestLimiter(t, models.Limits{PerMinute: 1, PerDayGlobal: 1, PerDayPerScope: 1})
	ctx := context.Background()

	if err := l.Admit(ctx, "user:1"); err != nil {
		t.Fatal(err)
	}
	err := l.Admit(ctx, "user:1")
	if tier := quotaTier(t, err); tier != models.TierMinute {
		t.Errorf("minute tier is evaluated first, got %s", tier)
	}
}

func TestDisabledTiersAdmitEverything(t *testing.T) {
	l, _ := newTestLimiter(t, models.Limits{})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if err := l.Admit(ctx, "user:1"); err != nil {
			t.Fatalf("admit %d with all tiers disabled: %v", i, err)
		}
	}
}

func TestRejectionRecordsNothing(t *testing.T) {
	l, clk := newTestLimiter(t, models.Limits{PerMinute: 1, PerDayGlobal: 10})
	ctx := context.Background()

	if err := l.Admit(ctx, ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := l.Admit(ctx, ""); err == nil {
			t.Fatal("expected rejection")
		}
	}

	// Only the single admitted call counts against the day.
	rem, err := l.Remaining(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if rem.DayGlobal != 9 {
		t.Errorf("expected 9 day-global remaining, got %d", rem.DayGlobal)
	}

	clk.Advance(time.Minute)
	if err := l.Admit(ctx, ""); err != nil {
		t.Errorf("rejections must not consume window slots: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	l, clk := newTestLimiter(t, models.Limits{PerMinute: 5, PerDayGlobal: 10, PerDayPerScope: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Admit(ctx, "user:1"); err != nil {
			t.Fatal(err)
		}
	}

	rem, err := l.Remaining(ctx, "user:1")
	if err != nil {
		t.Fatal(err)
	}
	if rem.Minute != 3 || rem.DayGlobal != 8 || rem.DayScope != 1 {
		t.Errorf("unexpected remaining: %+v", rem)
	}

	// Remaining is read-only.
	for i := 0; i < 10; i++ {
		if _, err := l.Remaining(ctx, "user:1"); err != nil {
			t.Fatal(err)
		}
	}
	rem, _ = l.Remaining(ctx, "user:1")
	if rem.Minute != 3 {
		t.Errorf("Remaining must not record calls, got %d", rem.Minute)
	}

	// Remaining performs the same day rollover as Admit.
	clk.Advance(24 * time.Hour)
	rem, _ = l.Remaining(ctx, "user:1")
	if rem.DayGlobal != 10 || rem.DayScope != 3 {
		t.Errorf("expected rollover in Remaining: %+v", rem)
	}
}

func TestRemainingDisabledTiers(t *testing.T) {
	l, _ := newTestLimiter(t, models.Limits{PerMinute: 5})
	rem, err := l.Remaining(context.Background(), "user:1")
	if err != nil {
		t.Fatal(err)
	}
	if rem.DayGlobal != -1 || rem.DayScope != -1 {
		t.Errorf("disabled tiers should report -1: %+v", rem)
	}
}

func TestDayRolloverHappensOnce(t *testing.T) {
	store := NewMemoryStore(clock.NewFake(time.Date(2026, 8, 23, 23, 59, 0, 0, time.UTC)))
	l := New(store, models.Limits{PerDayGlobal: 100})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Admit(ctx, ""); err != nil {
			t.Fatal(err)
		}
	}

	clk := store.clock.(*clock.Fake)
	clk.Advance(2 * time.Minute) // crosses midnight
	if err := l.Admit(ctx, ""); err != nil {
		t.Fatal(err)
	}

	rem, _ := l.Remaining(ctx, "")
	if rem.DayGlobal != 99 {
		t.Errorf("expected exactly one call counted after rollover, remaining %d", rem.DayGlobal)
	}

	// Repeated checks on the same day must not reset again.
	clk.Advance(time.Hour)
	rem, _ = l.Remaining(ctx, "")
	if rem.DayGlobal != 99 {
		t.Errorf("counter reset more than once: remaining %d", rem.DayGlobal)
	}
}

func TestConcurrentAdmitsNeverExceedLimit(t *testing.T) {
	const limit = 50
	l, _ := newTestLimiter(t, models.Limits{PerMinute: limit})
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Admit(ctx, "user:1"); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != limit {
		t.Errorf("expected exactly %d admissions, got %d", limit, got)
	}
}
