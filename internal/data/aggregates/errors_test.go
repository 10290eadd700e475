package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/domain"
)

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domain.CodeOf(err), err)
	}
}

func TestMapError_UniqueViolation(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	err := MapError("op", fmt.Errorf("insert: %w", pg))
	if !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domain.CodeOf(err), err)
	}
	if !IsUniqueViolation(pg) {
		t.Fatalf("expected unique violation")
	}
}

func TestMapError_Deadlock(t *testing.T) {
	err := MapError("op", &pgconn.PgError{Code: "40P01"})
	if !domain.IsCode(err, domain.CodeTransientUpstream) {
		t.Fatalf("expected transient code, got %q (%v)", domain.CodeOf(err), err)
	}
}

func TestMapError_PassthroughDomainError(t *testing.T) {
	in := domain.Forbidden("agents.issue", "caller is not owner")
	if out := MapError("other", in); out != in {
		t.Fatalf("expected passthrough domain error")
	}
}

func TestMapError_Default(t *testing.T) {
	err := MapError("op", errors.New("boom"))
	if !domain.IsCode(err, domain.CodeInternal) {
		t.Fatalf("expected internal code, got %q", domain.CodeOf(err))
	}
}
