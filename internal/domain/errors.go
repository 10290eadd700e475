package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode is the typed failure category every public operation returns.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeNotFound          ErrorCode = "not_found"
	CodeForbidden         ErrorCode = "forbidden"
	CodeConflict          ErrorCode = "conflict"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodeTransientUpstream ErrorCode = "transient_upstream"
	CodePermanentPipeline ErrorCode = "permanent_pipeline"
	CodeInternal          ErrorCode = "internal"
)

// Rate limit scopes.
const (
	ScopeAgent          = "agent"
	ScopeOwnerAggregate = "owner_aggregate"
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	// Field names the rejected input for validation errors; Scope names the
	// limiter for rate-limit errors.
	Field string
	Scope string
	// RetryAfter is the limiter's estimate of when the request would pass.
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{Code: code, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Cause: cause}
}

func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func Validation(op, field, message string) error {
	return &Error{Code: CodeValidation, Op: op, Field: field, Message: message}
}

func NotFound(op, what string) error {
	return &Error{Code: CodeNotFound, Op: op, Message: what + " not found"}
}

func Forbidden(op, message string) error {
	return &Error{Code: CodeForbidden, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: CodeConflict, Op: op, Message: message}
}

func RateLimited(op, scope, message string) error {
	return &Error{Code: CodeRateLimited, Op: op, Scope: scope, Message: message}
}

func RateLimitedFor(op, scope, message string, retryAfter time.Duration) error {
	return &Error{Code: CodeRateLimited, Op: op, Scope: scope, Message: message, RetryAfter: retryAfter}
}

func Unauthenticated(op, message string) error {
	return &Error{Code: CodeUnauthenticated, Op: op, Message: message}
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func CodeOf(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// ScopeOf returns the rate limit scope carried by err, if any.
func ScopeOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Scope
}

// MessageOf returns the client-facing message of a domain error.
func MessageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// RetryAfterOf returns the retry hint carried by a rate-limit error.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.RetryAfter
}
