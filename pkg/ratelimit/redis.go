package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/verdia-ai/verdia/pkg/clock"
	"github.com/verdia-ai/verdia/pkg/models"
)

// RedisStore keeps quota windows in Redis so multiple processes can share one
// quota. The minute window is a sorted set of call instants; daily counters
// are plain INCR keys suffixed with the UTC date so rollover is implicit in
// the key name.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	clock  clock.Clock
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix overrides the default key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRedisClock overrides the time source.
func WithRedisClock(clk clock.Clock) RedisOption {
	return func(s *RedisStore) { s.clock = clk }
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "verdia:quota",
		clock:  clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) minuteKey() string {
	return s.prefix + ":minute:" + globalKey
}

func (s *RedisStore) dayKey(key string, now time.Time) string {
	return fmt.Sprintf("%s:day:%s:%s", s.prefix, key, now.Format(dayLayout))
}

// Take implements Store. The call is recorded optimistically in one pipeline
// and compensated when a tier rejects, so the stored counts stay exact.
func (s *RedisStore) Take(ctx context.Context, scope string, limits models.Limits) (models.Tier, error) {
	now := s.clock.Now().UTC()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	minuteKey := s.minuteKey()
	dayGlobalKey := s.dayKey(globalKey, now)

	scoped := scope != "" && limits.PerDayPerScope > 0
	var dayScopeKey string
	if scoped {
		dayScopeKey = s.dayKey(scopePrefix+scope, now)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, minuteKey, "0", fmt.Sprintf("%d", now.Add(-minuteWindow).UnixNano()))
	pipe.ZAdd(ctx, minuteKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	minuteCount := pipe.ZCard(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, 2*minuteWindow)
	dayGlobal := pipe.Incr(ctx, dayGlobalKey)
	pipe.Expire(ctx, dayGlobalKey, 48*time.Hour)
	var dayScope *redis.IntCmd
	if scoped {
		dayScope = pipe.Incr(ctx, dayScopeKey)
		pipe.Expire(ctx, dayScopeKey, 48*time.Hour)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return models.TierNone, fmt.Errorf("redis take: %w", err)
	}

	tier := models.TierNone
	switch {
	case limits.PerMinute > 0 && minuteCount.Val() > int64(limits.PerMinute):
		tier = models.TierMinute
	case limits.PerDayGlobal > 0 && dayGlobal.Val() > int64(limits.PerDayGlobal):
		tier = models.TierDayGlobal
	case scoped && dayScope.Val() > int64(limits.PerDayPerScope):
		tier = models.TierDayScope
	}
	if tier == models.TierNone {
		return models.TierNone, nil
	}

	// Rejected: undo the optimistic record.
	undo := s.rdb.TxPipeline()
	undo.ZRem(ctx, minuteKey, member)
	undo.Decr(ctx, dayGlobalKey)
	if scoped {
		undo.Decr(ctx, dayScopeKey)
	}
	if _, err := undo.Exec(ctx); err != nil {
		return tier, fmt.Errorf("redis take undo: %w", err)
	}
	return tier, nil
}

// Remaining implements Store.
func (s *RedisStore) Remaining(ctx context.Context, scope string, limits models.Limits) (models.Remaining, error) {
	now := s.clock.Now().UTC()
	rem := models.Remaining{Minute: -1, DayGlobal: -1, DayScope: -1}

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, s.minuteKey(), "0", fmt.Sprintf("%d", now.Add(-minuteWindow).UnixNano()))
	minuteCount := pipe.ZCard(ctx, s.minuteKey())
	dayGlobal := pipe.Get(ctx, s.dayKey(globalKey, now))
	var dayScope *redis.StringCmd
	if scope != "" && limits.PerDayPerScope > 0 {
		dayScope = pipe.Get(ctx, s.dayKey(scopePrefix+scope, now))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return models.Remaining{}, fmt.Errorf("redis remaining: %w", err)
	}

	if limits.PerMinute > 0 {
		rem.Minute = headroom(limits.PerMinute, int(minuteCount.Val()))
	}
	if limits.PerDayGlobal > 0 {
		rem.DayGlobal = headroom(limits.PerDayGlobal, intFromGet(dayGlobal))
	}
	if dayScope != nil {
		rem.DayScope = headroom(limits.PerDayPerScope, intFromGet(dayScope))
	}
	return rem, nil
}

func intFromGet(cmd *redis.StringCmd) int {
	if cmd == nil {
		return 0
	}
	n, err := cmd.Int()
	if err != nil {
		return 0
	}
	return n
}
