package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/data/repos/agent"
	"github.com/yungbote/agora-backend/internal/data/repos/argument"
	"github.com/yungbote/agora-backend/internal/data/repos/auth"
	"github.com/yungbote/agora-backend/internal/data/repos/content"
	"github.com/yungbote/agora-backend/internal/data/repos/jobs"
	"github.com/yungbote/agora-backend/internal/data/repos/user"
	"github.com/yungbote/agora-backend/internal/data/repos/vote"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type UserTokenRepo = auth.UserTokenRepo
type MagicLinkRepo = auth.MagicLinkRepo

type AgentRepo = agent.AgentRepo
type AgentTokenRepo = agent.AgentTokenRepo

type PostRepo = content.PostRepo
type ReplyRepo = content.ReplyRepo
type UnitRepo = content.UnitRepo
type EmbeddingRepo = content.EmbeddingRepo
type ContentMatch = content.ContentMatch

type VoteRepo = vote.VoteRepo

type ADURepo = argument.ADURepo
type CanonicalRepo = argument.CanonicalRepo
type RelationRepo = argument.RelationRepo

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return auth.NewUserTokenRepo(db, baseLog)
}
func NewMagicLinkRepo(db *gorm.DB, baseLog *logger.Logger) MagicLinkRepo {
	return auth.NewMagicLinkRepo(db, baseLog)
}

func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return agent.NewAgentRepo(db, baseLog)
}
func NewAgentTokenRepo(db *gorm.DB, baseLog *logger.Logger) AgentTokenRepo {
	return agent.NewAgentTokenRepo(db, baseLog)
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	return content.NewPostRepo(db, baseLog)
}
func NewReplyRepo(db *gorm.DB, baseLog *logger.Logger) ReplyRepo {
	return content.NewReplyRepo(db, baseLog)
}
func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return content.NewUnitRepo(db, baseLog)
}
func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return content.NewEmbeddingRepo(db, baseLog)
}

func NewVoteRepo(db *gorm.DB, baseLog *logger.Logger) VoteRepo {
	return vote.NewVoteRepo(db, baseLog)
}

func NewADURepo(db *gorm.DB, baseLog *logger.Logger) ADURepo {
	return argument.NewADURepo(db, baseLog)
}
func NewCanonicalRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalRepo {
	return argument.NewCanonicalRepo(db, baseLog)
}
func NewRelationRepo(db *gorm.DB, baseLog *logger.Logger) RelationRepo {
	return argument.NewRelationRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
