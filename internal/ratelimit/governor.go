package ratelimit

import (
	"context"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// Governor applies both limiting layers to one write.
type Governor struct {
	aggregate *AggregateLimiter
	perAgent  Limiter
	log       *logger.Logger
}

func NewGovernor(aggregate *AggregateLimiter, perAgent Limiter, baseLog *logger.Logger) *Governor {
	return &Governor{aggregate: aggregate, perAgent: perAgent, log: baseLog.With("component", "RateGovernor")}
}

// Check returns a RateLimited domain error when p may not perform action now.
// The aggregate ceiling is consulted first so a rejected write never consumes
// per-agent budget.
func (g *Governor) Check(ctx context.Context, p Principal, action Action) error {
	if g == nil || !p.IsAgent {
		return nil
	}
	if g.aggregate != nil {
		if err := g.aggregate.Check(ctx, p.OwnerUserID, action); err != nil {
			return err
		}
	}
	return g.checkAgent(ctx, p, action)
}

// CheckRelease limits a write that gives quota back, such as retracting a
// vote. It skips the aggregate ceiling, so an owner at the ceiling can still
// undo, but draws on the per-agent budget like any other write.
func (g *Governor) CheckRelease(ctx context.Context, p Principal, action Action) error {
	if g == nil || !p.IsAgent {
		return nil
	}
	return g.checkAgent(ctx, p, action)
}

func (g *Governor) checkAgent(ctx context.Context, p Principal, action Action) error {
	if g.perAgent == nil {
		return nil
	}
	d, err := g.perAgent.Allow(ctx, p.AgentID, action)
	if err != nil {
		g.log.Warn("per-agent limiter failed; allowing", "agent_id", p.AgentID, "action", action, "error", err)
		observability.Current().IncRateLimitFailOpen(domain.ScopeAgent)
		return nil
	}
	if !d.Allowed {
		observability.Current().IncRateLimited(domain.ScopeAgent, string(action))
		return rateLimited("ratelimit.agent", domain.ScopeAgent, action, d.RetryAfter)
	}
	return nil
}
