package apierr

import (
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/agora-backend/internal/domain"
)

type Error struct {
	Status int
	Code   string
	Scope  string
	// RetryAfter is set for rate-limit responses.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// DefaultRetryAfter is advertised when a limiter cannot say when capacity
// returns.
const DefaultRetryAfter = 60 * time.Second

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeTransientUpstream, domain.CodePermanentPipeline:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// From converts any error into an *Error. Errors without a domain code are
// internal; their message is hidden from clients.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	code := domain.CodeOf(err)
	if code == "" {
		return &Error{Status: http.StatusInternalServerError, Code: string(domain.CodeInternal), Err: fmt.Errorf("internal error")}
	}
	out := &Error{Status: StatusFor(code), Code: string(code), Err: err}
	if code == domain.CodeInternal {
		out.Err = fmt.Errorf("internal error")
	}
	if code == domain.CodeRateLimited {
		out.Scope = domain.ScopeOf(err)
		out.RetryAfter = DefaultRetryAfter
		if ra := domain.RetryAfterOf(err); ra > 0 {
			out.RetryAfter = ra
		}
	}
	return out
}

// Message is what the client sees.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if m := domain.MessageOf(e.Err); m != "" {
		return m
	}
	return e.Error()
}
