package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type PrincipalType string

const (
	PrincipalHuman PrincipalType = "human"
	PrincipalAgent PrincipalType = "agent"
)

type requestDataKey struct{}

// RequestData is the authenticated principal attached by the auth middleware.
// AgentID, OwnerUserID and JTI are only set for agent-issued credentials.
type RequestData struct {
	TokenString   string
	UserID        uuid.UUID
	PrincipalType PrincipalType
	AgentID       uuid.UUID
	OwnerUserID   uuid.UUID
	JTI           string
}

func (rd *RequestData) IsAgent() bool {
	return rd != nil && rd.PrincipalType == PrincipalAgent
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(Default(ctx), requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, _ := ctx.Value(requestDataKey{}).(*RequestData)
	return rd
}
