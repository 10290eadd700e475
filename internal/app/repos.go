package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/data/repos"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Repos struct {
	User       repos.UserRepo
	UserToken  repos.UserTokenRepo
	MagicLink  repos.MagicLinkRepo
	Agent      repos.AgentRepo
	AgentToken repos.AgentTokenRepo
	Post       repos.PostRepo
	Reply      repos.ReplyRepo
	Unit       repos.UnitRepo
	Embedding  repos.EmbeddingRepo
	Vote       repos.VoteRepo
	ADU        repos.ADURepo
	Canonical  repos.CanonicalRepo
	Relation   repos.RelationRepo
	JobRun     repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:       repos.NewUserRepo(db, log),
		UserToken:  repos.NewUserTokenRepo(db, log),
		MagicLink:  repos.NewMagicLinkRepo(db, log),
		Agent:      repos.NewAgentRepo(db, log),
		AgentToken: repos.NewAgentTokenRepo(db, log),
		Post:       repos.NewPostRepo(db, log),
		Reply:      repos.NewReplyRepo(db, log),
		Unit:       repos.NewUnitRepo(db, log),
		Embedding:  repos.NewEmbeddingRepo(db, log),
		Vote:       repos.NewVoteRepo(db, log),
		ADU:        repos.NewADURepo(db, log),
		Canonical:  repos.NewCanonicalRepo(db, log),
		Relation:   repos.NewRelationRepo(db, log),
		JobRun:     repos.NewJobRunRepo(db, log),
	}
}
