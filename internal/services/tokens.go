package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeHuman = "human"
	TokenTypeAgent = "agent"
)

// JWTClaims is shared by human sessions and agent credentials. Agent tokens
// carry a jti that must exist, unrevoked, in agent_token on every request.
type JWTClaims struct {
	jwt.RegisteredClaims
	Typ         string `json:"typ"`
	AgentID     string `json:"agent_id,omitempty"`
	OwnerUserID string `json:"owner_id,omitempty"`
}

type TokenSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenSigner(secret, issuer string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (s *TokenSigner) SignHuman(userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Typ: TokenTypeHuman,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return tok, exp, err
}

func (s *TokenSigner) SignAgent(agentUserID, agentID, ownerID uuid.UUID, jti string, exp time.Time) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentUserID.String(),
			Issuer:    s.issuer,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Typ:         TokenTypeAgent,
		AgentID:     agentID.String(),
		OwnerUserID: ownerID.String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies signature, algorithm and expiry.
func (s *TokenSigner) Parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
