package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type UserTokenRepo interface {
	Create(dbc dbctx.Context, tokens []*types.UserToken) ([]*types.UserToken, error)
	GetByHash(dbc dbctx.Context, tokenHash string) (*types.UserToken, error)
	DeleteByHash(dbc dbctx.Context, tokenHash string) error
	DeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type userTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return &userTokenRepo{db: db, log: baseLog.With("repo", "UserTokenRepo")}
}

func (r *userTokenRepo) Create(dbc dbctx.Context, tokens []*types.UserToken) ([]*types.UserToken, error) {
	if len(tokens) == 0 {
		return []*types.UserToken{}, nil
	}
	if err := dbc.DB(r.db).Create(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *userTokenRepo) GetByHash(dbc dbctx.Context, tokenHash string) (*types.UserToken, error) {
	var t types.UserToken
	err := dbc.DB(r.db).Where("token_hash = ?", tokenHash).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *userTokenRepo) DeleteByHash(dbc dbctx.Context, tokenHash string) error {
	return dbc.DB(r.db).Where("token_hash = ?", tokenHash).Delete(&types.UserToken{}).Error
}

func (r *userTokenRepo) DeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("user_id IN ?", userIDs).Delete(&types.UserToken{}).Error
}

func (r *userTokenRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("expires_at < ?", now).Delete(&types.UserToken{})
	return res.RowsAffected, res.Error
}
