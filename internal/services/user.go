package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Me struct {
	User  *types.User          `json:"user"`
	Agent *types.AgentIdentity `json:"agent,omitempty"`
}

type UserService interface {
	GetMe(dbc dbctx.Context) (*Me, error)
}

type userService struct {
	log    *logger.Logger
	users  repos.UserRepo
	agents repos.AgentRepo
}

func NewUserService(baseLog *logger.Logger, users repos.UserRepo, agents repos.AgentRepo) UserService {
	return &userService{log: baseLog.With("service", "UserService"), users: users, agents: agents}
}

func (s *userService) GetMe(dbc dbctx.Context) (*Me, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, types.Unauthenticated("users.me", "not signed in")
	}
	us, err := s.users.GetByIDs(dbc, []uuid.UUID{rd.UserID})
	if err != nil {
		return nil, aggregates.MapError("users.me", err)
	}
	if len(us) == 0 {
		return nil, types.NotFound("users.me", "user")
	}
	me := &Me{User: us[0]}
	if rd.IsAgent() {
		a, err := s.agents.GetByUserID(dbc, rd.UserID)
		if err != nil {
			return nil, aggregates.MapError("users.me", err)
		}
		me.Agent = a
	}
	return me, nil
}
