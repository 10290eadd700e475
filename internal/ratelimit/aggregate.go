package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/agent"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// ActivityCounter reports what an owner's agents wrote since a point in time.
type ActivityCounter interface {
	AggregateActivity(ctx context.Context, ownerID uuid.UUID, since time.Time) (agent.Activity, error)
}

type AggregateLimiter struct {
	counter  ActivityCounter
	ceilings Ceilings
	window   time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewAggregateLimiter(counter ActivityCounter, ceilings Ceilings, window time.Duration, baseLog *logger.Logger) *AggregateLimiter {
	def := DefaultCeilings()
	if ceilings.Posts <= 0 {
		ceilings.Posts = def.Posts
	}
	if ceilings.Replies <= 0 {
		ceilings.Replies = def.Replies
	}
	if ceilings.Votes <= 0 {
		ceilings.Votes = def.Votes
	}
	if window <= 0 {
		window = time.Hour
	}
	return &AggregateLimiter{
		counter:  counter,
		ceilings: ceilings,
		window:   window,
		log:      baseLog.With("component", "AggregateLimiter"),
		now:      time.Now,
	}
}

// Check rejects the write when the owner's agents already reached the ceiling
// for action in the trailing window. A failed count allows the write.
func (l *AggregateLimiter) Check(ctx context.Context, ownerID uuid.UUID, action Action) error {
	since := l.now().UTC().Add(-l.window)
	act, err := l.counter.AggregateActivity(ctx, ownerID, since)
	if err != nil {
		l.log.Warn("aggregate activity count failed; allowing", "owner_user_id", ownerID, "action", action, "error", err)
		observability.Current().IncRateLimitFailOpen(domain.ScopeOwnerAggregate)
		return nil
	}
	if countFor(act, action) >= l.ceilings.For(action) {
		observability.Current().IncRateLimited(domain.ScopeOwnerAggregate, string(action))
		return rateLimited("ratelimit.aggregate", domain.ScopeOwnerAggregate, action, 0)
	}
	return nil
}

// ActivityCounterFunc adapts a function to ActivityCounter.
type ActivityCounterFunc func(ctx context.Context, ownerID uuid.UUID, since time.Time) (agent.Activity, error)

func (f ActivityCounterFunc) AggregateActivity(ctx context.Context, ownerID uuid.UUID, since time.Time) (agent.Activity, error) {
	return f(ctx, ownerID, since)
}
