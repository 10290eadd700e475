package services

import (
	"errors"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	votes "github.com/yungbote/agora-backend/internal/data/repos/vote"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type VoteResult struct {
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`
	Value      int       `json:"value"`
	content.Tally
}

type VoteService interface {
	// Cast sets the caller's vote to +1 or -1; 0 retracts it.
	Cast(dbc dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID, value int) (*VoteResult, error)
}

type voteService struct {
	log   *logger.Logger
	votes repos.VoteRepo
}

func NewVoteService(baseLog *logger.Logger, votes repos.VoteRepo) VoteService {
	return &voteService{log: baseLog.With("service", "VoteService"), votes: votes}
}

func (s *voteService) Cast(dbc dbctx.Context, voterID uuid.UUID, targetType string, targetID uuid.UUID, value int) (*VoteResult, error) {
	const op = "votes.cast"
	if !content.ValidType(targetType) {
		return nil, types.Validation(op, "target_type", "target_type must be post or reply")
	}
	if value < -1 || value > 1 {
		return nil, types.Validation(op, "value", "value must be -1, 0 or 1")
	}
	tally, err := s.votes.Cast(dbc, voterID, targetType, targetID, value)
	if errors.Is(err, votes.ErrTargetNotFound) {
		return nil, types.NotFound(op, targetType)
	}
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return &VoteResult{TargetType: targetType, TargetID: targetID, Value: value, Tally: tally}, nil
}
