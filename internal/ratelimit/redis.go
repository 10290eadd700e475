package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RedisLimiter shares per-agent counters across instances using fixed
// windows: one INCR per write on a key that expires with its window.
type RedisLimiter struct {
	rdb    *goredis.Client
	rates  map[Action]Rate
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb *goredis.Client, rates map[Action]Rate, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "agora:rl"
	}
	return &RedisLimiter{rdb: rdb, rates: mergeRates(rates), prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) key(agentID uuid.UUID, action Action, window int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, action, agentID, window)
}

func (l *RedisLimiter) Allow(ctx context.Context, agentID uuid.UUID, action Action) (Decision, error) {
	r, ok := l.rates[action]
	if !ok {
		return Decision{Allowed: true}, nil
	}
	now := l.now()
	window := now.UnixNano() / int64(r.Per)
	windowEnd := time.Unix(0, (window+1)*int64(r.Per))
	key := l.key(agentID, action, window)

	var incr *goredis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, r.Per+time.Second)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis limiter: %w", err)
	}
	if incr.Val() > int64(r.Limit) {
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}
