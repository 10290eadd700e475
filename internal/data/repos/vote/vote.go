package vote

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// ErrTargetNotFound is returned when the vote target is missing or deleted.
var ErrTargetNotFound = errors.New("vote target not found")

type VoteRepo interface {
	// Cast sets voterID's vote on the target to value (+1/-1) and returns the
	// recomputed tally. value 0 retracts. Runs in dbc.Tx when set, otherwise
	// in its own transaction.
	Cast(dbc dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID, value int) (content.Tally, error)
	Get(dbc dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID) (int, error)
}

type voteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVoteRepo(db *gorm.DB, baseLog *logger.Logger) VoteRepo {
	return &voteRepo{db: db, log: baseLog.With("repo", "VoteRepo")}
}

func targetTable(targetType string) (string, error) {
	switch targetType {
	case content.TypePost:
		return "post", nil
	case content.TypeReply:
		return "reply", nil
	}
	return "", fmt.Errorf("unknown vote target type %q", targetType)
}

func (r *voteRepo) Cast(dbc dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID, value int) (content.Tally, error) {
	table, err := targetTable(targetType)
	if err != nil {
		return content.Tally{}, err
	}
	if dbc.Tx != nil {
		return r.cast(dbc.DB(r.db), table, voterID, targetType, targetID, value)
	}
	var out content.Tally
	err = dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		var txErr error
		out, txErr = r.cast(tx, table, voterID, targetType, targetID, value)
		return txErr
	})
	return out, err
}

// cast serializes concurrent voters on the same target through the row lock
// so the recomputed tally always reflects every committed vote.
func (r *voteRepo) cast(tx *gorm.DB, table string, voterID uuid.UUID, targetType string, targetID uuid.UUID, value int) (content.Tally, error) {
	var locked []uuid.UUID
	if err := tx.Raw(
		`SELECT id FROM "`+table+`" WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, targetID,
	).Scan(&locked).Error; err != nil {
		return content.Tally{}, err
	}
	if len(locked) == 0 {
		return content.Tally{}, ErrTargetNotFound
	}

	now := time.Now().UTC()
	if value == 0 {
		if err := tx.Exec(
			`DELETE FROM vote WHERE voter_id = ? AND target_type = ? AND target_id = ?`,
			voterID, targetType, targetID,
		).Error; err != nil {
			return content.Tally{}, err
		}
	} else {
		if err := tx.Exec(`
			INSERT INTO vote (id, voter_id, target_type, target_id, value, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (voter_id, target_type, target_id)
			DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`, uuid.New(), voterID, targetType, targetID, value, now, now).Error; err != nil {
			return content.Tally{}, err
		}
	}

	var tally content.Tally
	if err := tx.Raw(`
		SELECT COALESCE(SUM(value), 0) AS score, COUNT(*) AS vote_count
		FROM vote WHERE target_type = ? AND target_id = ?
	`, targetType, targetID).Scan(&tally).Error; err != nil {
		return content.Tally{}, err
	}
	if err := tx.Exec(
		`UPDATE "`+table+`" SET score = ?, vote_count = ?, updated_at = ? WHERE id = ?`,
		tally.Score, tally.VoteCount, now, targetID,
	).Error; err != nil {
		return content.Tally{}, err
	}
	return tally, nil
}

// Get returns the voter's current value on the target, 0 when none.
func (r *voteRepo) Get(dbc dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID) (int, error) {
	var v sql.NullInt64
	err := dbc.DB(r.db).Raw(
		`SELECT value FROM vote WHERE voter_id = ? AND target_type = ? AND target_id = ?`,
		voterID, targetType, targetID,
	).Row().Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
