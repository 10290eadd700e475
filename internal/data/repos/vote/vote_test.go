package vote

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

func newMockRepo(t *testing.T) (VoteRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return NewVoteRepo(gdb, logger.Nop()), mock
}

func TestCastLocksTargetThenRecomputes(t *testing.T) {
	repo, mock := newMockRepo(t)
	target := uuid.New()
	voter := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM "post" WHERE id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(target.String()))
	mock.ExpectExec(`INSERT INTO vote .* ON CONFLICT \(voter_id, target_type, target_id\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(value\), 0\) AS score, COUNT\(\*\) AS vote_count`).
		WillReturnRows(sqlmock.NewRows([]string{"score", "vote_count"}).AddRow(3, 5))
	mock.ExpectExec(`UPDATE "post" SET score = .*, vote_count = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tally, err := repo.Cast(dbctx.Context{Ctx: context.Background()}, voter, content.TypePost, target, 1)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if tally.Score != 3 || tally.VoteCount != 5 {
		t.Fatalf("tally: want=3/5 got=%d/%d", tally.Score, tally.VoteCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCastRetractDeletesVote(t *testing.T) {
	repo, mock := newMockRepo(t)
	target := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM "reply" WHERE id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(target.String()))
	mock.ExpectExec(`DELETE FROM vote WHERE voter_id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(value\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"score", "vote_count"}).AddRow(0, 0))
	mock.ExpectExec(`UPDATE "reply" SET score = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tally, err := repo.Cast(dbctx.Context{Ctx: context.Background()}, uuid.New(), content.TypeReply, target, 0)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if tally.VoteCount != 0 {
		t.Fatalf("vote_count: want=0 got=%d", tally.VoteCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCastMissingTargetRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM "post"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Cast(dbctx.Context{Ctx: context.Background()}, uuid.New(), content.TypePost, uuid.New(), 1)
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("err: want=%v got=%v", ErrTargetNotFound, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCastRejectsUnknownTargetType(t *testing.T) {
	repo, _ := newMockRepo(t)
	if _, err := repo.Cast(dbctx.Context{Ctx: context.Background()}, uuid.New(), "comment", uuid.New(), 1); err == nil {
		t.Fatalf("expected error for unknown target type")
	}
}
