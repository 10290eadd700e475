package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/user"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/platform/mailer"
)

type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         *types.User `json:"user"`
}

type AuthService interface {
	RequestMagicLink(dbc dbctx.Context, email string) error
	VerifyMagicLink(dbc dbctx.Context, token string) (*Session, error)
	Refresh(dbc dbctx.Context, refreshToken string) (*Session, error)
	Logout(dbc dbctx.Context, refreshToken string) error
	// SetContextFromToken authenticates tokenString and attaches the principal
	// to ctx. Any failure, including a storage error while checking an agent
	// jti, is Unauthenticated.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

// JTIValidator reports whether an agent credential is still usable.
type JTIValidator interface {
	ValidateJTI(dbc dbctx.Context, jti string) (bool, error)
}

type AuthConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MagicLinkTTL  time.Duration
	MagicLinkBase string
}

type authService struct {
	log        *logger.Logger
	tx         aggregates.TxRunner
	users      repos.UserRepo
	userTokens repos.UserTokenRepo
	links      repos.MagicLinkRepo
	jtis       JTIValidator
	mail       mailer.Mailer
	signer     *TokenSigner
	cfg        AuthConfig
	now        func() time.Time
}

func NewAuthService(
	baseLog *logger.Logger,
	tx aggregates.TxRunner,
	users repos.UserRepo,
	userTokens repos.UserTokenRepo,
	links repos.MagicLinkRepo,
	jtis JTIValidator,
	mail mailer.Mailer,
	signer *TokenSigner,
	cfg AuthConfig,
) AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	return &authService{
		log:        baseLog.With("service", "AuthService"),
		tx:         tx,
		users:      users,
		userTokens: userTokens,
		links:      links,
		jtis:       jtis,
		mail:       mail,
		signer:     signer,
		cfg:        cfg,
		now:        time.Now,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", types.Validation("auth.magic_link", "email", "a valid email is required")
	}
	return email, nil
}

func (s *authService) RequestMagicLink(dbc dbctx.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	raw, err := randomToken()
	if err != nil {
		return types.Wrap(types.CodeInternal, "auth.magic_link", err)
	}
	link := &types.MagicLinkToken{
		Email:     email,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().UTC().Add(s.cfg.MagicLinkTTL),
	}
	if err := s.links.Create(dbc, link); err != nil {
		return aggregates.MapError("auth.magic_link", err)
	}

	url := s.cfg.MagicLinkBase
	if strings.Contains(url, "?") {
		url += "&token=" + raw
	} else {
		url += "?token=" + raw
	}
	body := fmt.Sprintf("Sign in to Agora:\n\n%s\n\nThis link expires in %d minutes and works once.\n", url, int(s.cfg.MagicLinkTTL.Minutes()))
	if err := s.mail.Send(dbc.Ctx, email, "Your Agora sign-in link", body); err != nil {
		s.log.Warn("magic link delivery failed", "email", email, "error", err)
		return types.Wrap(types.CodeTransientUpstream, "auth.magic_link", err)
	}
	return nil
}

func (s *authService) VerifyMagicLink(dbc dbctx.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, types.Validation("auth.verify", "token", "token is required")
	}
	var session *Session
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		link, err := s.links.Consume(txc, hashToken(token), s.now().UTC())
		if err != nil {
			return err
		}
		if link == nil {
			return types.Unauthenticated("auth.verify", "link is invalid, expired or already used")
		}
		u, err := s.users.GetByEmail(txc, link.Email)
		if err != nil {
			return err
		}
		if u == nil {
			if u, err = s.createHuman(txc, link.Email); err != nil {
				return err
			}
		}
		if u.Disabled() {
			return types.Forbidden("auth.verify", "account disabled")
		}
		session, err = s.issueSession(txc, u)
		return err
	})
	if err != nil {
		return nil, aggregates.MapError("auth.verify", err)
	}
	return session, nil
}

var nonHandleChars = regexp.MustCompile(`[^a-z0-9_]+`)

// createHuman derives a free handle from the email's local part.
func (s *authService) createHuman(dbc dbctx.Context, email string) (*types.User, error) {
	local, _, _ := strings.Cut(email, "@")
	base := nonHandleChars.ReplaceAllString(strings.ToLower(local), "_")
	base = strings.Trim(base, "_")
	if len(base) < 3 {
		base = "user_" + base
	}
	if len(base) > 22 {
		base = base[:22]
	}
	handle := base
	for i := 0; i < 5; i++ {
		taken, err := s.users.HandleTaken(dbc, handle)
		if err != nil {
			return nil, err
		}
		if !taken {
			created, err := s.users.Create(dbc, []*types.User{{
				Email:         email,
				Handle:        handle,
				DisplayName:   local,
				PrincipalType: user.PrincipalHuman,
			}})
			if err != nil {
				return nil, err
			}
			return created[0], nil
		}
		handle = base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return nil, types.Conflict("auth.verify", "could not allocate a handle")
}

func (s *authService) issueSession(dbc dbctx.Context, u *types.User) (*Session, error) {
	access, exp, err := s.signer.SignHuman(u.ID, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	if _, err := s.userTokens.Create(dbc, []*types.UserToken{{
		UserID:    u.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: s.now().UTC().Add(s.cfg.RefreshTTL),
	}}); err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: u}, nil
}

// Refresh rotates the refresh token: the presented one is deleted and a new
// pair is issued in the same transaction.
func (s *authService) Refresh(dbc dbctx.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, types.Validation("auth.refresh", "refresh_token", "refresh_token is required")
	}
	var session *Session
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		h := hashToken(refreshToken)
		tok, err := s.userTokens.GetByHash(txc, h)
		if err != nil {
			return err
		}
		if tok == nil || !s.now().Before(tok.ExpiresAt) {
			return types.Unauthenticated("auth.refresh", "refresh token is invalid or expired")
		}
		if err := s.userTokens.DeleteByHash(txc, h); err != nil {
			return err
		}
		users, err := s.users.GetByIDs(txc, []uuid.UUID{tok.UserID})
		if err != nil {
			return err
		}
		if len(users) == 0 || users[0].Disabled() {
			return types.Unauthenticated("auth.refresh", "account unavailable")
		}
		session, err = s.issueSession(txc, users[0])
		return err
	})
	if err != nil {
		return nil, aggregates.MapError("auth.refresh", err)
	}
	return session, nil
}

func (s *authService) Logout(dbc dbctx.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	if err := s.userTokens.DeleteByHash(dbc, hashToken(refreshToken)); err != nil {
		return aggregates.MapError("auth.logout", err)
	}
	return nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	const op = "auth.token"
	if strings.TrimSpace(tokenString) == "" {
		return ctx, types.Unauthenticated(op, "missing token")
	}
	claims, err := s.signer.Parse(tokenString)
	if err != nil {
		return ctx, types.Unauthenticated(op, "invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, types.Unauthenticated(op, "invalid subject")
	}
	rd := &ctxutil.RequestData{
		TokenString:   tokenString,
		UserID:        userID,
		PrincipalType: ctxutil.PrincipalHuman,
	}

	switch claims.Typ {
	case TokenTypeHuman:
	case TokenTypeAgent:
		if claims.ID == "" {
			return ctx, types.Unauthenticated(op, "agent token without jti")
		}
		ok, err := s.jtis.ValidateJTI(dbctx.Context{Ctx: ctx}, claims.ID)
		if err != nil {
			s.log.Warn("jti validation failed; rejecting", "jti", claims.ID, "error", err)
			return ctx, types.Unauthenticated(op, "credential check unavailable")
		}
		if !ok {
			return ctx, types.Unauthenticated(op, "token revoked or expired")
		}
		agentID, aErr := uuid.Parse(claims.AgentID)
		ownerID, oErr := uuid.Parse(claims.OwnerUserID)
		if aErr != nil || oErr != nil {
			return ctx, types.Unauthenticated(op, "malformed agent claims")
		}
		rd.PrincipalType = ctxutil.PrincipalAgent
		rd.AgentID = agentID
		rd.OwnerUserID = ownerID
		rd.JTI = claims.ID
	default:
		return ctx, types.Unauthenticated(op, "unknown token type")
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (s *authService) GetAccessTTL() time.Duration {
	return s.cfg.AccessTTL
}
