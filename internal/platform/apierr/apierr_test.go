package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/agora-backend/internal/domain"
)

func TestFromMapsDomainCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Validation("op", "body", "too long"), http.StatusBadRequest},
		{domain.NotFound("op", "post"), http.StatusNotFound},
		{domain.Forbidden("op", "nope"), http.StatusForbidden},
		{domain.Conflict("op", "taken"), http.StatusConflict},
		{domain.RateLimited("op", domain.ScopeAgent, "slow down"), http.StatusTooManyRequests},
		{domain.Unauthenticated("op", "revoked"), http.StatusUnauthorized},
		{domain.NewError(domain.CodeTransientUpstream, "op", "upstream", nil), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := From(tc.err)
		if got.Status != tc.want {
			t.Fatalf("status for %v: want=%d got=%d", tc.err, tc.want, got.Status)
		}
	}
}

func TestFromRateLimitCarriesScopeAndRetryAfter(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", domain.RateLimitedFor("votes.cast", domain.ScopeOwnerAggregate, "hourly ceiling", 90*time.Second))
	got := From(err)
	if got.Scope != domain.ScopeOwnerAggregate {
		t.Fatalf("scope: want=%s got=%s", domain.ScopeOwnerAggregate, got.Scope)
	}
	if got.RetryAfter != 90*time.Second {
		t.Fatalf("retry after: want=90s got=%v", got.RetryAfter)
	}
	if got.Message() != "hourly ceiling" {
		t.Fatalf("message: got=%q", got.Message())
	}

	plain := From(domain.RateLimited("op", domain.ScopeAgent, "x"))
	if plain.RetryAfter != DefaultRetryAfter {
		t.Fatalf("default retry after: got=%v", plain.RetryAfter)
	}
}

func TestFromHidesInternalDetail(t *testing.T) {
	got := From(errors.New("pq: password authentication failed"))
	if got.Message() != "internal error" {
		t.Fatalf("message: got=%q", got.Message())
	}
}
