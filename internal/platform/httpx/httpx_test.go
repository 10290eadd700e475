package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("http %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{statusErr(429), true},
		{statusErr(503), true},
		{statusErr(400), false},
		{fmt.Errorf("wrapped: %w", statusErr(502)), true},
	}
	for _, c := range cases {
		if got := IsRetryableError(c.err); got != c.want {
			t.Fatalf("IsRetryableError(%v): want=%v got=%v", c.err, c.want, got)
		}
	}
}

func TestBackoffCaps(t *testing.T) {
	base, max := 30*time.Second, 30*time.Minute
	if got := Backoff(0, base, max); got != base {
		t.Fatalf("attempt 0: want=%v got=%v", base, got)
	}
	if got := Backoff(3, base, max); got != 4*time.Minute {
		t.Fatalf("attempt 3: want=4m got=%v", got)
	}
	if got := Backoff(20, base, max); got != max {
		t.Fatalf("attempt 20: want=%v got=%v", max, got)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
	if got := RetryAfterDuration(resp, time.Second, time.Minute); got != 7*time.Second {
		t.Fatalf("retry-after: want=7s got=%v", got)
	}
	if got := RetryAfterDuration(resp, time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("capped: want=3s got=%v", got)
	}
}
