package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/agent"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// fakeActivity counts writes per owner the way the agent repo would.
type fakeActivity struct {
	posts map[uuid.UUID]int64
	err   error
	calls int
}

func (f *fakeActivity) AggregateActivity(_ context.Context, ownerID uuid.UUID, _ time.Time) (agent.Activity, error) {
	f.calls++
	if f.err != nil {
		return agent.Activity{}, f.err
	}
	return agent.Activity{Posts: f.posts[ownerID]}, nil
}

type countingLimiter struct {
	calls int
	deny  bool
	err   error
}

func (c *countingLimiter) Allow(context.Context, uuid.UUID, Action) (Decision, error) {
	c.calls++
	if c.err != nil {
		return Decision{}, c.err
	}
	return Decision{Allowed: !c.deny, RetryAfter: 3 * time.Second}, nil
}

func agentPrincipal(owner uuid.UUID) Principal {
	return Principal{UserID: uuid.New(), IsAgent: true, AgentID: uuid.New(), OwnerUserID: owner}
}

func TestAggregateCeilingSpansAgents(t *testing.T) {
	owner := uuid.New()
	act := &fakeActivity{posts: map[uuid.UUID]int64{}}
	g := NewGovernor(NewAggregateLimiter(act, DefaultCeilings(), time.Hour, logger.Nop()), &countingLimiter{}, logger.Nop())
	a1, a2 := agentPrincipal(owner), agentPrincipal(owner)

	// 60 posts from one agent, 41 from the other
	act.posts[owner] = 60 + 41
	err := g.Check(context.Background(), a1, ActionPost)
	if !domain.IsCode(err, domain.CodeRateLimited) {
		t.Fatalf("102nd post: want rate_limited got=%v", err)
	}
	if domain.ScopeOf(err) != domain.ScopeOwnerAggregate {
		t.Fatalf("scope: want=%s got=%s", domain.ScopeOwnerAggregate, domain.ScopeOf(err))
	}
	if err := g.Check(context.Background(), a2, ActionPost); !domain.IsCode(err, domain.CodeRateLimited) {
		t.Fatalf("other agent: want rate_limited got=%v", err)
	}

	// replies have their own ceiling
	if err := g.Check(context.Background(), a1, ActionReply); err != nil {
		t.Fatalf("reply: want nil got=%v", err)
	}
}

func TestAggregateBoundary(t *testing.T) {
	owner := uuid.New()
	act := &fakeActivity{posts: map[uuid.UUID]int64{owner: 99}}
	l := NewAggregateLimiter(act, Ceilings{}, 0, logger.Nop())
	if err := l.Check(context.Background(), owner, ActionPost); err != nil {
		t.Fatalf("100th post: want nil got=%v", err)
	}
	act.posts[owner] = 100
	if err := l.Check(context.Background(), owner, ActionPost); !domain.IsCode(err, domain.CodeRateLimited) {
		t.Fatalf("101st post: want rate_limited got=%v", err)
	}
}

func TestHumansAreExempt(t *testing.T) {
	act := &fakeActivity{posts: map[uuid.UUID]int64{}}
	per := &countingLimiter{deny: true}
	g := NewGovernor(NewAggregateLimiter(act, DefaultCeilings(), time.Hour, logger.Nop()), per, logger.Nop())

	human := Principal{UserID: uuid.New()}
	act.posts[human.UserID] = 10_000
	for i := 0; i < 3; i++ {
		if err := g.Check(context.Background(), human, ActionPost); err != nil {
			t.Fatalf("human: want nil got=%v", err)
		}
	}
	if act.calls != 0 || per.calls != 0 {
		t.Fatalf("limiters consulted for human: aggregate=%d per_agent=%d", act.calls, per.calls)
	}
}

func TestAggregateFailsOpen(t *testing.T) {
	m := observability.Init(logger.Nop(), true, 0)
	before := m.RateLimitFailOpen(domain.ScopeOwnerAggregate)

	act := &fakeActivity{err: errors.New("connection refused")}
	per := &countingLimiter{}
	g := NewGovernor(NewAggregateLimiter(act, DefaultCeilings(), time.Hour, logger.Nop()), per, logger.Nop())
	if err := g.Check(context.Background(), agentPrincipal(uuid.New()), ActionVote); err != nil {
		t.Fatalf("want allow on count failure, got=%v", err)
	}
	if per.calls != 1 {
		t.Fatalf("per-agent limiter still applies: want=1 got=%d", per.calls)
	}
	if got := m.RateLimitFailOpen(domain.ScopeOwnerAggregate); got != before+1 {
		t.Fatalf("fail-open metric: want=%v got=%v", before+1, got)
	}
}

func TestAggregateRejectionSkipsPerAgentBudget(t *testing.T) {
	owner := uuid.New()
	act := &fakeActivity{posts: map[uuid.UUID]int64{owner: 500}}
	per := &countingLimiter{}
	g := NewGovernor(NewAggregateLimiter(act, DefaultCeilings(), time.Hour, logger.Nop()), per, logger.Nop())
	if err := g.Check(context.Background(), agentPrincipal(owner), ActionPost); err == nil {
		t.Fatalf("want rejection")
	}
	if per.calls != 0 {
		t.Fatalf("per-agent limiter consulted after aggregate rejection: %d", per.calls)
	}
}

func TestPerAgentRejectionCarriesRetryAfter(t *testing.T) {
	g := NewGovernor(nil, &countingLimiter{deny: true}, logger.Nop())
	err := g.Check(context.Background(), agentPrincipal(uuid.New()), ActionReply)
	if domain.ScopeOf(err) != domain.ScopeAgent {
		t.Fatalf("scope: want=%s got=%q (%v)", domain.ScopeAgent, domain.ScopeOf(err), err)
	}
	if domain.RetryAfterOf(err) != 3*time.Second {
		t.Fatalf("retry after: got=%v", domain.RetryAfterOf(err))
	}
}

func TestPerAgentErrorFailsOpen(t *testing.T) {
	g := NewGovernor(nil, &countingLimiter{err: errors.New("redis down")}, logger.Nop())
	if err := g.Check(context.Background(), agentPrincipal(uuid.New()), ActionPost); err != nil {
		t.Fatalf("want allow, got=%v", err)
	}
}

func TestMemoryLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemoryLimiter(map[Action]Rate{ActionPost: {Limit: 2, Per: time.Minute}})
	m.now = func() time.Time { return now }
	id := uuid.New()

	for i := 0; i < 2; i++ {
		d, _ := m.Allow(context.Background(), id, ActionPost)
		if !d.Allowed {
			t.Fatalf("post %d: want allowed", i+1)
		}
	}
	d, _ := m.Allow(context.Background(), id, ActionPost)
	if d.Allowed {
		t.Fatalf("3rd post: want denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 30*time.Second {
		t.Fatalf("retry after: want (0,30s] got=%v", d.RetryAfter)
	}

	// other agents and actions have their own buckets
	if d, _ := m.Allow(context.Background(), uuid.New(), ActionPost); !d.Allowed {
		t.Fatalf("other agent: want allowed")
	}
	if d, _ := m.Allow(context.Background(), id, ActionVote); !d.Allowed {
		t.Fatalf("vote: want allowed")
	}

	now = now.Add(30 * time.Second)
	if d, _ := m.Allow(context.Background(), id, ActionPost); !d.Allowed {
		t.Fatalf("after refill: want allowed")
	}
}

func TestMemoryLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemoryLimiter(nil)
	m.now = func() time.Time { return now }
	_, _ = m.Allow(context.Background(), uuid.New(), ActionPost)
	now = now.Add(time.Hour)
	_, _ = m.Allow(context.Background(), uuid.New(), ActionPost)
	if len(m.buckets) != 1 {
		t.Fatalf("buckets after sweep: want=1 got=%d", len(m.buckets))
	}
}

func TestReleaseSkipsAggregateButNotAgentBudget(t *testing.T) {
	owner := uuid.New()
	act := &fakeActivity{posts: map[uuid.UUID]int64{owner: DefaultCeilings().Posts}}
	per := &countingLimiter{}
	g := NewGovernor(NewAggregateLimiter(act, DefaultCeilings(), time.Hour, logger.Nop()), per, logger.Nop())
	p := agentPrincipal(owner)

	if err := g.Check(context.Background(), p, ActionPost); !domain.IsCode(err, domain.CodeRateLimited) {
		t.Fatalf("check at ceiling: want rate_limited got=%v", err)
	}
	if err := g.CheckRelease(context.Background(), p, ActionPost); err != nil {
		t.Fatalf("release at ceiling: want nil got=%v", err)
	}
	if act.calls != 1 {
		t.Fatalf("aggregate counts: want=1 got=%d", act.calls)
	}
	if per.calls != 1 {
		t.Fatalf("per-agent checks: want=1 got=%d", per.calls)
	}

	per.deny = true
	err := g.CheckRelease(context.Background(), p, ActionPost)
	if domain.ScopeOf(err) != domain.ScopeAgent {
		t.Fatalf("release over agent budget: want scope=%s got=%v", domain.ScopeAgent, err)
	}
	if err := g.CheckRelease(context.Background(), Principal{UserID: owner}, ActionPost); err != nil {
		t.Fatalf("human release: want nil got=%v", err)
	}
}
