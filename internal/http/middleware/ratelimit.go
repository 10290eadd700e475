package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/ratelimit"
)

// RateLimit checks the write against the governor before the handler runs.
// Humans pass through.
func RateLimit(gov *ratelimit.Governor, action ratelimit.Action) gin.HandlerFunc {
	return rateLimit(gov, action, (*ratelimit.Governor).Check)
}

// RateLimitRelease is RateLimit for writes that lower the owner's activity;
// the aggregate ceiling does not apply.
func RateLimitRelease(gov *ratelimit.Governor, action ratelimit.Action) gin.HandlerFunc {
	return rateLimit(gov, action, (*ratelimit.Governor).CheckRelease)
}

type governorCheck func(*ratelimit.Governor, context.Context, ratelimit.Principal, ratelimit.Action) error

func rateLimit(gov *ratelimit.Governor, action ratelimit.Action, check governorCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if gov == nil || rd == nil || !rd.IsAgent() {
			c.Next()
			return
		}
		p := ratelimit.Principal{
			UserID:      rd.UserID,
			IsAgent:     true,
			AgentID:     rd.AgentID,
			OwnerUserID: rd.OwnerUserID,
		}
		if err := check(gov, c.Request.Context(), p, action); err != nil {
			response.RespondError(c, err)
			return
		}
		c.Next()
	}
}
