package agent

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type AgentTokenRepo interface {
	Create(dbc dbctx.Context, t *types.AgentToken) error
	GetByJTI(dbc dbctx.Context, jti string) (*types.AgentToken, error)
	RevokeAll(dbc dbctx.Context, agentID uuid.UUID, at time.Time) (int64, error)
}

type agentTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentTokenRepo(db *gorm.DB, baseLog *logger.Logger) AgentTokenRepo {
	return &agentTokenRepo{db: db, log: baseLog.With("repo", "AgentTokenRepo")}
}

func (r *agentTokenRepo) Create(dbc dbctx.Context, t *types.AgentToken) error {
	return dbc.DB(r.db).Create(t).Error
}

// GetByJTI always reads the table; revocation state is never cached.
func (r *agentTokenRepo) GetByJTI(dbc dbctx.Context, jti string) (*types.AgentToken, error) {
	var t types.AgentToken
	err := dbc.DB(r.db).Where("jti = ?", jti).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *agentTokenRepo) RevokeAll(dbc dbctx.Context, agentID uuid.UUID, at time.Time) (int64, error) {
	res := dbc.DB(r.db).Model(&types.AgentToken{}).
		Where("agent_id = ? AND revoked_at IS NULL", agentID).
		Update("revoked_at", at)
	return res.RowsAffected, res.Error
}
