package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	HandleTaken(dbc dbctx.Context, handle string) (bool, error)
	Disable(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	if err := dbc.DB(r.db).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetByEmail returns nil, nil when no active user has this email.
func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var u types.User
	err := dbc.DB(r.db).Where("lower(email) = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LockByID takes a row lock on the user for the surrounding transaction.
func (r *userRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	var u types.User
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) HandleTaken(dbc dbctx.Context, handle string) (bool, error) {
	var count int64
	err := dbc.DB(r.db).Model(&types.User{}).
		Where("lower(handle) = ?", strings.ToLower(strings.TrimSpace(handle))).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepo) Disable(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return dbc.DB(r.db).Model(&types.User{}).
		Where("id = ? AND disabled_at IS NULL", id).
		Updates(map[string]interface{}{"disabled_at": at, "updated_at": at}).Error
}

func (r *userRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.User{}).Error
}
