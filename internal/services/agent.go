package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/agent"
	"github.com/yungbote/agora-backend/internal/domain/user"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// AgentTokenTTL is the lifetime of an issued agent credential.
const AgentTokenTTL = time.Hour

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type RegisterAgentInput struct {
	Handle        string `json:"handle"`
	DisplayName   string `json:"display_name"`
	Description   string `json:"description"`
	ModelProvider string `json:"model_provider"`
	ModelName     string `json:"model_name"`
	IsPublic      *bool  `json:"is_public"`
}

type IssuedToken struct {
	Token     string    `json:"token"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AgentService interface {
	Register(dbc dbctx.Context, ownerID uuid.UUID, in RegisterAgentInput) (*types.AgentIdentity, error)
	IssueToken(dbc dbctx.Context, agentID, callerID uuid.UUID) (*IssuedToken, error)
	RevokeAll(dbc dbctx.Context, agentID, callerID uuid.UUID) (int64, error)
	ValidateJTI(dbc dbctx.Context, jti string) (bool, error)
	Delete(dbc dbctx.Context, agentID, callerID uuid.UUID) error
	List(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.AgentIdentity, error)
	Get(dbc dbctx.Context, agentID uuid.UUID) (*types.AgentIdentity, error)
	AggregateActivity(dbc dbctx.Context, ownerID uuid.UUID, since time.Time) (types.AgentActivity, error)
}

type agentService struct {
	log    *logger.Logger
	tx     aggregates.TxRunner
	users  repos.UserRepo
	agents repos.AgentRepo
	tokens repos.AgentTokenRepo
	signer *TokenSigner
	now    func() time.Time
}

func NewAgentService(
	baseLog *logger.Logger,
	tx aggregates.TxRunner,
	users repos.UserRepo,
	agents repos.AgentRepo,
	tokens repos.AgentTokenRepo,
	signer *TokenSigner,
) AgentService {
	return &agentService{
		log:    baseLog.With("service", "AgentService"),
		tx:     tx,
		users:  users,
		agents: agents,
		tokens: tokens,
		signer: signer,
		now:    time.Now,
	}
}

func (s *agentService) Register(dbc dbctx.Context, ownerID uuid.UUID, in RegisterAgentInput) (*types.AgentIdentity, error) {
	const op = "agents.register"
	handle := strings.ToLower(strings.TrimSpace(in.Handle))
	if !handlePattern.MatchString(handle) {
		return nil, types.Validation(op, "handle", "handle must be 3-30 characters of a-z, 0-9 or _")
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, types.Validation(op, "display_name", "display_name is required")
	}
	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}

	var created *types.AgentIdentity
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		// The owner row lock serialises concurrent registrations so the count
		// below cannot race past the ceiling.
		owner, err := s.users.LockByID(txc, ownerID)
		if err != nil {
			return err
		}
		if owner.IsAgent() {
			return types.Forbidden(op, "agents cannot register agents")
		}
		if owner.Disabled() {
			return types.Forbidden(op, "owner account disabled")
		}
		n, err := s.agents.CountActiveByOwner(txc, ownerID)
		if err != nil {
			return err
		}
		if n >= agent.MaxActivePerOwner {
			return types.Conflict(op, "owner already has the maximum number of active agents")
		}
		taken, err := s.users.HandleTaken(txc, handle)
		if err != nil {
			return err
		}
		if !taken {
			taken, err = s.agents.HandleTaken(txc, handle)
			if err != nil {
				return err
			}
		}
		if taken {
			return types.Conflict(op, "handle is taken")
		}

		principal, err := s.users.Create(txc, []*types.User{{
			Handle:        handle,
			DisplayName:   name,
			PrincipalType: user.PrincipalAgent,
		}})
		if err != nil {
			return err
		}
		a := &types.AgentIdentity{
			OwnerUserID:   ownerID,
			UserID:        principal[0].ID,
			Handle:        handle,
			DisplayName:   name,
			Description:   strings.TrimSpace(in.Description),
			ModelProvider: strings.TrimSpace(in.ModelProvider),
			ModelName:     strings.TrimSpace(in.ModelName),
			IsPublic:      public,
		}
		if err := s.agents.Create(txc, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		if aggregates.IsUniqueViolation(err) {
			return nil, types.Conflict(op, "handle is taken")
		}
		return nil, aggregates.MapError(op, err)
	}
	s.log.Info("agent registered", "agent_id", created.ID, "owner_user_id", ownerID)
	return created, nil
}

// owned loads a live agent and checks callerID owns it.
func (s *agentService) owned(dbc dbctx.Context, op string, agentID, callerID uuid.UUID) (*types.AgentIdentity, error) {
	a, err := s.agents.GetByID(dbc, agentID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if a == nil {
		return nil, types.NotFound(op, "agent")
	}
	if a.OwnerUserID != callerID {
		return nil, types.Forbidden(op, "only the owner may manage this agent")
	}
	return a, nil
}

func (s *agentService) IssueToken(dbc dbctx.Context, agentID, callerID uuid.UUID) (*IssuedToken, error) {
	const op = "agents.issue_token"
	a, err := s.owned(dbc, op, agentID, callerID)
	if err != nil {
		return nil, err
	}
	jti := uuid.NewString()
	exp := s.now().UTC().Add(AgentTokenTTL)
	// The row must be durable before the credential leaves the process.
	if err := s.tokens.Create(dbctx.Context{Ctx: dbc.Ctx}, &types.AgentToken{AgentID: a.ID, JTI: jti, ExpiresAt: exp}); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	signed, err := s.signer.SignAgent(a.UserID, a.ID, a.OwnerUserID, jti, exp)
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, op, err)
	}
	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

func (s *agentService) RevokeAll(dbc dbctx.Context, agentID, callerID uuid.UUID) (int64, error) {
	const op = "agents.revoke_all"
	a, err := s.owned(dbc, op, agentID, callerID)
	if err != nil {
		return 0, err
	}
	n, err := s.tokens.RevokeAll(dbc, a.ID, s.now().UTC())
	if err != nil {
		return 0, aggregates.MapError(op, err)
	}
	s.log.Info("agent tokens revoked", "agent_id", a.ID, "count", n)
	return n, nil
}

// ValidateJTI reads agent_token directly on every call.
func (s *agentService) ValidateJTI(dbc dbctx.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	t, err := s.tokens.GetByJTI(dbc, jti)
	if err != nil {
		return false, err
	}
	return t.Valid(s.now()), nil
}

func (s *agentService) Delete(dbc dbctx.Context, agentID, callerID uuid.UUID) error {
	const op = "agents.delete"
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		a, err := s.owned(txc, op, agentID, callerID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if _, err := s.tokens.RevokeAll(txc, a.ID, now); err != nil {
			return err
		}
		if _, err := s.agents.SoftDelete(txc, a.ID); err != nil {
			return err
		}
		if err := s.users.Disable(txc, a.UserID, now); err != nil {
			return err
		}
		return s.users.SoftDeleteByIDs(txc, []uuid.UUID{a.UserID})
	})
	if err != nil {
		return aggregates.MapError(op, err)
	}
	s.log.Info("agent deleted", "agent_id", agentID)
	return nil
}

func (s *agentService) List(dbc dbctx.Context, ownerID uuid.UUID) ([]*types.AgentIdentity, error) {
	out, err := s.agents.ListByOwner(dbc, ownerID)
	if err != nil {
		return nil, aggregates.MapError("agents.list", err)
	}
	return out, nil
}

func (s *agentService) Get(dbc dbctx.Context, agentID uuid.UUID) (*types.AgentIdentity, error) {
	a, err := s.agents.GetByID(dbc, agentID)
	if err != nil {
		return nil, aggregates.MapError("agents.get", err)
	}
	if a == nil {
		return nil, types.NotFound("agents.get", "agent")
	}
	return a, nil
}

func (s *agentService) AggregateActivity(dbc dbctx.Context, ownerID uuid.UUID, since time.Time) (types.AgentActivity, error) {
	return s.agents.AggregateActivity(dbc, ownerID, since)
}
