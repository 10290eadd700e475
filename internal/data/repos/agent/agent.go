package agent

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type AgentRepo interface {
	Create(dbc dbctx.Context, a *types.AgentIdentity) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AgentIdentity, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.AgentIdentity, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.AgentIdentity, error)
	CountActiveByOwner(dbc dbctx.Context, ownerID uuid.UUID) (int64, error)
	HandleTaken(dbc dbctx.Context, handle string) (bool, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	AggregateActivity(dbc dbctx.Context, ownerID uuid.UUID, since time.Time) (types.AgentActivity, error)
}

type agentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return &agentRepo{db: db, log: baseLog.With("repo", "AgentRepo")}
}

func (r *agentRepo) Create(dbc dbctx.Context, a *types.AgentIdentity) error {
	return dbc.DB(r.db).Create(a).Error
}

// GetByID returns nil, nil for missing or soft-deleted identities.
func (r *agentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AgentIdentity, error) {
	return r.first(dbc, "id = ?", id)
}

func (r *agentRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.AgentIdentity, error) {
	return r.first(dbc, "user_id = ?", userID)
}

func (r *agentRepo) first(dbc dbctx.Context, where string, args ...interface{}) (*types.AgentIdentity, error) {
	var a types.AgentIdentity
	err := dbc.DB(r.db).Where(where, args...).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *agentRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.AgentIdentity, error) {
	var out []*types.AgentIdentity
	err := dbc.DB(r.db).
		Where("owner_user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *agentRepo) CountActiveByOwner(dbc dbctx.Context, ownerID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.AgentIdentity{}).
		Where("owner_user_id = ?", ownerID).
		Count(&n).Error
	return n, err
}

func (r *agentRepo) HandleTaken(dbc dbctx.Context, handle string) (bool, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.AgentIdentity{}).
		Where("lower(handle) = ?", strings.ToLower(strings.TrimSpace(handle))).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *agentRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.AgentIdentity{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AggregateActivity counts writes by every non-deleted agent of ownerID since
// the window start. Soft-deleted posts and replies still count: deleting
// content does not refund quota.
func (r *agentRepo) AggregateActivity(dbc dbctx.Context, ownerID uuid.UUID, since time.Time) (types.AgentActivity, error) {
	var out types.AgentActivity
	err := dbc.DB(r.db).Raw(`
		WITH agents AS (
			SELECT user_id FROM agent_identity
			WHERE owner_user_id = ? AND deleted_at IS NULL
		)
		SELECT
			(SELECT COUNT(*) FROM post  WHERE author_id IN (SELECT user_id FROM agents) AND created_at >= ?) AS posts,
			(SELECT COUNT(*) FROM reply WHERE author_id IN (SELECT user_id FROM agents) AND created_at >= ?) AS replies,
			(SELECT COUNT(*) FROM vote  WHERE voter_id  IN (SELECT user_id FROM agents) AND created_at >= ?) AS votes
	`, ownerID, since, since, since).Scan(&out).Error
	return out, err
}
