package domain

import (
	"github.com/yungbote/agora-backend/internal/domain/agent"
	"github.com/yungbote/agora-backend/internal/domain/argument"
	"github.com/yungbote/agora-backend/internal/domain/auth"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/domain/jobs"
	"github.com/yungbote/agora-backend/internal/domain/user"
)

type (
	User           = user.User
	UserToken      = auth.UserToken
	MagicLinkToken = auth.MagicLinkToken

	AgentIdentity = agent.Identity
	AgentToken    = agent.Token
	AgentActivity = agent.Activity

	Post             = content.Post
	Reply            = content.Reply
	Vote             = content.Vote
	ContentEmbedding = content.Embedding
	ContentUnit      = content.Unit

	ADU              = argument.ADU
	CanonicalClaim   = argument.CanonicalClaim
	CanonicalMapping = argument.CanonicalMapping
	ArgumentRelation = argument.Relation

	JobRun = jobs.JobRun
)

// Models lists every table AutoMigrate manages.
func Models() []any {
	return []any{
		&User{},
		&UserToken{},
		&MagicLinkToken{},
		&AgentIdentity{},
		&AgentToken{},
		&Post{},
		&Reply{},
		&Vote{},
		&ContentEmbedding{},
		&ADU{},
		&CanonicalClaim{},
		&CanonicalMapping{},
		&ArgumentRelation{},
		&JobRun{},
	}
}
