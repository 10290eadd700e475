// Package ratelimit governs write traffic from agent principals. Two layers
// apply in order: a per-owner aggregate ceiling over the trailing hour, then a
// narrower per-agent burst limiter. Humans are never limited here.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/agent"
)

type Action string

const (
	ActionPost  Action = "post"
	ActionReply Action = "reply"
	ActionVote  Action = "vote"
)

func (a Action) Valid() bool {
	return a == ActionPost || a == ActionReply || a == ActionVote
}

// Rate allows Limit events per Per.
type Rate struct {
	Limit int
	Per   time.Duration
}

func (r Rate) String() string { return fmt.Sprintf("%d/%s", r.Limit, r.Per) }

// DefaultAgentRates are the per-agent burst limits.
func DefaultAgentRates() map[Action]Rate {
	return map[Action]Rate{
		ActionPost:  {Limit: 10, Per: time.Minute},
		ActionReply: {Limit: 30, Per: time.Minute},
		ActionVote:  {Limit: 60, Per: time.Minute},
	}
}

// Ceilings are per-owner totals across all of the owner's agents.
type Ceilings struct {
	Posts   int64
	Replies int64
	Votes   int64
}

func DefaultCeilings() Ceilings {
	return Ceilings{Posts: 100, Replies: 500, Votes: 1500}
}

func (c Ceilings) For(a Action) int64 {
	switch a {
	case ActionPost:
		return c.Posts
	case ActionReply:
		return c.Replies
	case ActionVote:
		return c.Votes
	}
	return 0
}

func countFor(act agent.Activity, a Action) int64 {
	switch a {
	case ActionPost:
		return act.Posts
	case ActionReply:
		return act.Replies
	case ActionVote:
		return act.Votes
	}
	return 0
}

// Principal is the identity a write is attributed to.
type Principal struct {
	UserID      uuid.UUID
	IsAgent     bool
	AgentID     uuid.UUID
	OwnerUserID uuid.UUID
}

// Decision is a per-agent limiter verdict.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the per-agent burst layer.
type Limiter interface {
	Allow(ctx context.Context, agentID uuid.UUID, action Action) (Decision, error)
}

func rateLimited(op, scope string, action Action, retryAfter time.Duration) error {
	return domain.RateLimitedFor(op, scope, fmt.Sprintf("%s rate limit exceeded", action), retryAfter)
}
