package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/verdia-ai/verdia/pkg/clock"
	"github.com/verdia-ai/verdia/pkg/models"
)

const (
	globalKey   = "global"
	scopePrefix = "scope:"
	// dayLayout anchors daily counters to a UTC calendar date.
	dayLayout = "2006-01-02"

	minuteWindow = time.Minute
)

// MemoryStore keeps quota windows in process memory with per-key locking.
// Suitable for single-process deployments; use RedisStore when multiple
// processes share one quota.
type MemoryStore struct {
	mu      sync.Mutex // guards windows map only
	windows map[string]*window
	clock   clock.Clock
}

// window is the bookkeeping for one tracked key. Its mutex must be held for
// the duration of any read-modify-write.
type window struct {
	mu        sync.Mutex
	stamps    []time.Time
	dayCount  int
	dayAnchor string
}

// NewMemoryStore creates a MemoryStore. A nil clk defaults to the system clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryStore{
		windows: make(map[string]*window),
		clock:   clk,
	}
}

func (s *MemoryStore) window(key string) *window {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}
	return w
}

// rollover zeroes the daily counter exactly once when the calendar date
// changes. Caller holds w.mu.
func (w *window) rollover(now time.Time) {
	day := now.Format(dayLayout)
	if w.dayAnchor != day {
		w.dayAnchor = day
		w.dayCount = 0
	}
}

// prune drops window entries older than the trailing minute. Caller holds w.mu.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-minuteWindow)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Take implements Store. The global window lock is acquired first and the
// scope window lock second, always in that order.
func (s *MemoryStore) Take(ctx context.Context, scope string, limits models.Limits) (models.Tier, error) {
	if err := ctx.Err(); err != nil {
		return models.TierNone, err
	}
	now := s.clock.Now().UTC()

	g := s.window(globalKey)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(now)
	g.prune(now)

	if limits.PerMinute > 0 && len(g.stamps) >= limits.PerMinute {
		return models.TierMinute, nil
	}
	if limits.PerDayGlobal > 0 && g.dayCount >= limits.PerDayGlobal {
		return models.TierDayGlobal, nil
	}

	var sc *window
	if scope != "" && limits.PerDayPerScope > 0 {
		sc = s.window(scopePrefix + scope)
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.rollover(now)
		if sc.dayCount >= limits.PerDayPerScope {
			return models.TierDayScope, nil
		}
	}

	g.stamps = append(g.stamps, now)
	g.dayCount++
	if sc != nil {
		sc.dayCount++
	}
	return models.TierNone, nil
}

// Remaining implements Store.
func (s *MemoryStore) Remaining(ctx context.Context, scope string, limits models.Limits) (models.Remaining, error) {
	if err := ctx.Err(); err != nil {
		return models.Remaining{}, err
	}
	now := s.clock.Now().UTC()
	rem := models.Remaining{Minute: -1, DayGlobal: -1, DayScope: -1}

	g := s.window(globalKey)
	g.mu.Lock()
	g.rollover(now)
	g.prune(now)
	if limits.PerMinute > 0 {
		rem.Minute = headroom(limits.PerMinute, len(g.stamps))
	}
	if limits.PerDayGlobal > 0 {
		rem.DayGlobal = headroom(limits.PerDayGlobal, g.dayCount)
	}
	g.mu.Unlock()

	if scope != "" && limits.PerDayPerScope > 0 {
		sc := s.window(scopePrefix + scope)
		sc.mu.Lock()
		sc.rollover(now)
		rem.DayScope = headroom(limits.PerDayPerScope, sc.dayCount)
		sc.mu.Unlock()
	}
	return rem, nil
}

func headroom(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
