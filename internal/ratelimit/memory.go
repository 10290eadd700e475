package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type limiterKey struct {
	agentID uuid.UUID
	action  Action
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per agent and action in process. Buckets
// idle longer than idleTTL are dropped on the next sweep.
type MemoryLimiter struct {
	rates   map[Action]Rate
	idleTTL time.Duration

	mu        sync.Mutex
	buckets   map[limiterKey]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(rates map[Action]Rate) *MemoryLimiter {
	return &MemoryLimiter{
		rates:   mergeRates(rates),
		idleTTL: 10 * time.Minute,
		buckets: map[limiterKey]*limiterEntry{},
		now:     time.Now,
	}
}

func mergeRates(rates map[Action]Rate) map[Action]Rate {
	out := DefaultAgentRates()
	for a, r := range rates {
		if r.Limit > 0 && r.Per > 0 {
			out[a] = r
		}
	}
	return out
}

func (m *MemoryLimiter) Allow(_ context.Context, agentID uuid.UUID, action Action) (Decision, error) {
	r, ok := m.rates[action]
	if !ok {
		return Decision{Allowed: true}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)

	k := limiterKey{agentID: agentID, action: action}
	e := m.buckets[k]
	if e == nil {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(r.Per/time.Duration(r.Limit)), r.Limit)}
		m.buckets[k] = e
	}
	e.lastSeen = now

	if e.lim.AllowN(now, 1) {
		return Decision{Allowed: true}, nil
	}
	res := e.lim.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return Decision{Allowed: false, RetryAfter: wait}, nil
}

func (m *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < m.idleTTL {
		return
	}
	m.lastSweep = now
	for k, e := range m.buckets {
		if now.Sub(e.lastSeen) > m.idleTTL {
			delete(m.buckets, k)
		}
	}
}
