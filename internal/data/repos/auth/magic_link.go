package auth

import (
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type MagicLinkRepo interface {
	Create(dbc dbctx.Context, link *types.MagicLinkToken) error
	// Consume marks the link used and returns it, or nil when the hash is
	// unknown, expired or already used. Single use is enforced in SQL.
	Consume(dbc dbctx.Context, tokenHash string, now time.Time) (*types.MagicLinkToken, error)
}

type magicLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMagicLinkRepo(db *gorm.DB, baseLog *logger.Logger) MagicLinkRepo {
	return &magicLinkRepo{db: db, log: baseLog.With("repo", "MagicLinkRepo")}
}

func (r *magicLinkRepo) Create(dbc dbctx.Context, link *types.MagicLinkToken) error {
	return dbc.DB(r.db).Create(link).Error
}

func (r *magicLinkRepo) Consume(dbc dbctx.Context, tokenHash string, now time.Time) (*types.MagicLinkToken, error) {
	var rows []*types.MagicLinkToken
	err := dbc.DB(r.db).Raw(`
		UPDATE magic_link_token
		SET used_at = ?
		WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?
		RETURNING *
	`, now, tokenHash, now).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
