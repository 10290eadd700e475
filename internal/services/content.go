package services

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type CreatePostInput struct {
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	QuotedPostID *uuid.UUID `json:"quoted_post_id"`
}

type CreateReplyInput struct {
	Body          string     `json:"body"`
	ParentReplyID *uuid.UUID `json:"parent_reply_id"`
	QuotedPostID  *uuid.UUID `json:"quoted_post_id"`
	TargetADUID   *uuid.UUID `json:"target_adu_id"`
}

// ContentIndexer keeps the lexical search index in step with writes.
type ContentIndexer interface {
	IndexPost(p *types.Post)
	IndexReply(r *types.Reply)
	Remove(contentType string, id uuid.UUID)
}

type nopIndexer struct{}

func (nopIndexer) IndexPost(*types.Post)    {}
func (nopIndexer) IndexReply(*types.Reply)  {}
func (nopIndexer) Remove(string, uuid.UUID) {}

type ContentService interface {
	CreatePost(dbc dbctx.Context, authorID uuid.UUID, in CreatePostInput) (*types.Post, error)
	CreateReply(dbc dbctx.Context, authorID, postID uuid.UUID, in CreateReplyInput) (*types.Reply, error)
	GetPost(dbc dbctx.Context, id uuid.UUID) (*types.Post, error)
	// Thread returns the replies of a post in path order, optionally only the
	// subtree rooted at rootReplyID.
	Thread(dbc dbctx.Context, postID uuid.UUID, rootReplyID *uuid.UUID, limit int) ([]*types.Reply, error)
	DeletePost(dbc dbctx.Context, id, callerID uuid.UUID) error
	DeleteReply(dbc dbctx.Context, id, callerID uuid.UUID) error
	GetUnit(dbc dbctx.Context, contentType string, id uuid.UUID) (*types.ContentUnit, error)
}

type contentService struct {
	log     *logger.Logger
	tx      aggregates.TxRunner
	posts   repos.PostRepo
	replies repos.ReplyRepo
	units   repos.UnitRepo
	adus    repos.ADURepo
	jobs    JobService
	index   ContentIndexer
}

func NewContentService(
	baseLog *logger.Logger,
	tx aggregates.TxRunner,
	posts repos.PostRepo,
	replies repos.ReplyRepo,
	units repos.UnitRepo,
	adus repos.ADURepo,
	jobs JobService,
	index ContentIndexer,
) ContentService {
	if index == nil {
		index = nopIndexer{}
	}
	return &contentService{
		log:     baseLog.With("service", "ContentService"),
		tx:      tx,
		posts:   posts,
		replies: replies,
		units:   units,
		adus:    adus,
		jobs:    jobs,
		index:   index,
	}
}

func validateBody(op, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", types.Validation(op, "body", "body is required")
	}
	if utf8.RuneCountInString(body) > content.MaxBodyRunes {
		return "", types.Validation(op, "body", "body exceeds 10000 characters")
	}
	return body, nil
}

func (s *contentService) checkQuoted(dbc dbctx.Context, op string, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	p, err := s.posts.GetByID(dbc, *id)
	if err != nil {
		return err
	}
	if p == nil {
		return types.Validation(op, "quoted_post_id", "quoted post does not exist")
	}
	return nil
}

func (s *contentService) CreatePost(dbc dbctx.Context, authorID uuid.UUID, in CreatePostInput) (*types.Post, error) {
	const op = "posts.create"
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > content.MaxTitleRunes {
		return nil, types.Validation(op, "title", "title must be 1-300 characters")
	}
	body, err := validateBody(op, in.Body)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuoted(dbc, op, in.QuotedPostID); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	p := &types.Post{
		AuthorID:       authorID,
		Title:          title,
		Body:           body,
		ContentHash:    content.Hash(body),
		AnalysisStatus: content.AnalysisPending,
		QuotedPostID:   in.QuotedPostID,
	}
	if err := s.posts.Create(dbc, p); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	s.afterCreate(dbc, authorID, content.TypePost, p.ID, p.ContentHash)
	s.index.IndexPost(p)
	return p, nil
}

func (s *contentService) CreateReply(dbc dbctx.Context, authorID, postID uuid.UUID, in CreateReplyInput) (*types.Reply, error) {
	const op = "replies.create"
	body, err := validateBody(op, in.Body)
	if err != nil {
		return nil, err
	}

	var r *types.Reply
	err = s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		post, err := s.posts.GetByID(txc, postID)
		if err != nil {
			return err
		}
		if post == nil {
			return types.NotFound(op, "post")
		}
		parentPath, depth := "", 1
		if in.ParentReplyID != nil {
			parent, err := s.replies.GetByID(txc, *in.ParentReplyID)
			if err != nil {
				return err
			}
			if parent == nil {
				return types.NotFound(op, "parent reply")
			}
			if parent.PostID != postID {
				return types.Validation(op, "parent_reply_id", "parent reply belongs to another post")
			}
			parentPath, depth = parent.Path, parent.Depth+1
		}
		if depth > content.MaxReplyDepth {
			return types.Validation(op, "parent_reply_id", "thread is too deep")
		}
		if err := s.checkQuoted(txc, op, in.QuotedPostID); err != nil {
			return err
		}
		if in.TargetADUID != nil {
			a, err := s.adus.GetByID(txc, *in.TargetADUID)
			if err != nil {
				return err
			}
			if a == nil {
				return types.Validation(op, "target_adu_id", "target ADU does not exist")
			}
		}

		id := uuid.New()
		r = &types.Reply{
			ID:             id,
			PostID:         postID,
			ParentReplyID:  in.ParentReplyID,
			AuthorID:       authorID,
			Body:           body,
			ContentHash:    content.Hash(body),
			AnalysisStatus: content.AnalysisPending,
			Path:           content.ChildPath(parentPath, id),
			Depth:          depth,
			QuotedPostID:   in.QuotedPostID,
			TargetADUID:    in.TargetADUID,
		}
		if err := s.replies.Create(txc, r); err != nil {
			return err
		}
		if err := s.posts.IncrementReplyCount(txc, postID, 1); err != nil {
			return err
		}
		if in.ParentReplyID != nil {
			return s.replies.IncrementReplyCount(txc, *in.ParentReplyID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	s.afterCreate(dbc, authorID, content.TypeReply, r.ID, r.ContentHash)
	s.index.IndexReply(r)
	return r, nil
}

// afterCreate enqueues analysis. The write has already committed, so a queue
// failure is logged and swallowed.
func (s *contentService) afterCreate(dbc dbctx.Context, authorID uuid.UUID, contentType string, id uuid.UUID, hash string) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.EnqueueAnalysis(dbctx.Context{Ctx: dbc.Ctx}, authorID, contentType, id, hash); err != nil {
		s.log.Warn("enqueue analysis failed", "content_type", contentType, "content_id", id, "error", err)
	}
}

func (s *contentService) GetPost(dbc dbctx.Context, id uuid.UUID) (*types.Post, error) {
	p, err := s.posts.GetByID(dbc, id)
	if err != nil {
		return nil, aggregates.MapError("posts.get", err)
	}
	if p == nil {
		return nil, types.NotFound("posts.get", "post")
	}
	return p, nil
}

func (s *contentService) Thread(dbc dbctx.Context, postID uuid.UUID, rootReplyID *uuid.UUID, limit int) ([]*types.Reply, error) {
	const op = "posts.thread"
	if _, err := s.GetPost(dbc, postID); err != nil {
		return nil, err
	}
	rootPath := ""
	if rootReplyID != nil {
		root, err := s.replies.GetByID(dbc, *rootReplyID)
		if err != nil {
			return nil, aggregates.MapError(op, err)
		}
		if root == nil || root.PostID != postID {
			return nil, types.NotFound(op, "reply")
		}
		rootPath = root.Path
	}
	out, err := s.replies.ListThread(dbc, postID, rootPath, limit)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return out, nil
}

func (s *contentService) DeletePost(dbc dbctx.Context, id, callerID uuid.UUID) error {
	const op = "posts.delete"
	p, err := s.posts.GetByID(dbc, id)
	if err != nil {
		return aggregates.MapError(op, err)
	}
	if p == nil {
		return types.NotFound(op, "post")
	}
	if p.AuthorID != callerID {
		return types.Forbidden(op, "only the author may delete this post")
	}
	if _, err := s.posts.SoftDelete(dbc, id); err != nil {
		return aggregates.MapError(op, err)
	}
	s.index.Remove(content.TypePost, id)
	return nil
}

func (s *contentService) DeleteReply(dbc dbctx.Context, id, callerID uuid.UUID) error {
	const op = "replies.delete"
	r, err := s.replies.GetByID(dbc, id)
	if err != nil {
		return aggregates.MapError(op, err)
	}
	if r == nil {
		return types.NotFound(op, "reply")
	}
	if r.AuthorID != callerID {
		return types.Forbidden(op, "only the author may delete this reply")
	}
	if _, err := s.replies.SoftDelete(dbc, id); err != nil {
		return aggregates.MapError(op, err)
	}
	s.index.Remove(content.TypeReply, id)
	return nil
}

func (s *contentService) GetUnit(dbc dbctx.Context, contentType string, id uuid.UUID) (*types.ContentUnit, error) {
	const op = "content.get"
	if !content.ValidType(contentType) {
		return nil, types.Validation(op, "type", "type must be post or reply")
	}
	u, err := s.units.Get(dbc, contentType, id)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if u == nil || u.Deleted {
		return nil, types.NotFound(op, contentType)
	}
	return u, nil
}
