package search

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/repos/content"
	"github.com/yungbote/agora-backend/internal/domain"
	domcontent "github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/analysis"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Mode string

const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeLexical:
		return ModeLexical, nil
	case ModeSemantic:
		return ModeSemantic, nil
	}
	return "", domain.Validation("search", "mode", "mode must be lexical, semantic or hybrid")
}

type Embedder interface {
	Embed(ctx context.Context, space analysis.Space, texts []string) ([][]float32, error)
}

type VectorSearcher interface {
	Nearest(dbc dbctx.Context, vec []float32, k int) ([]content.ContentMatch, error)
}

const (
	defaultLimit = 20
	maxLimit     = 50
)

type Service struct {
	index   *LexicalIndex
	embed   Embedder
	vectors VectorSearcher
	alpha   float64
	log     *logger.Logger
}

// NewService wires search. embed and vectors may be nil, which limits search
// to the lexical index.
func NewService(index *LexicalIndex, embed Embedder, vectors VectorSearcher, alpha float64, baseLog *logger.Logger) *Service {
	if alpha < 0 || alpha > 1 {
		alpha = 0.5
	}
	return &Service{index: index, embed: embed, vectors: vectors, alpha: alpha, log: baseLog.With("service", "SearchService")}
}

func (s *Service) semanticEnabled() bool { return s.embed != nil && s.vectors != nil }

func (s *Service) Search(ctx context.Context, q string, mode Mode, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.Validation("search", "q", "query is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if mode == "" {
		mode = ModeHybrid
	}
	if mode != ModeLexical && !s.semanticEnabled() {
		mode = ModeLexical
	}

	hits, err := s.run(ctx, q, mode, limit)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.Current().IncSearch(string(mode), status)
	return hits, err
}

func (s *Service) run(ctx context.Context, q string, mode Mode, limit int) ([]Hit, error) {
	switch mode {
	case ModeLexical:
		return s.lexical(q, limit)
	case ModeSemantic:
		return s.semantic(ctx, q, limit)
	}

	candidates := limit * 3
	lex, err := s.lexical(q, candidates)
	if err != nil {
		return nil, err
	}
	sem, err := s.semantic(ctx, q, candidates)
	if err != nil {
		s.log.Warn("semantic search failed; using lexical results", "error", err)
		if len(lex) > limit {
			lex = lex[:limit]
		}
		return lex, nil
	}
	return Merge(lex, sem, s.alpha, limit), nil
}

func (s *Service) lexical(q string, limit int) ([]Hit, error) {
	if s.index == nil {
		return []Hit{}, nil
	}
	hits, err := s.index.Search(q, limit)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "search.lexical", err)
	}
	return hits, nil
}

func (s *Service) semantic(ctx context.Context, q string, limit int) ([]Hit, error) {
	vecs, err := s.embed.Embed(ctx, analysis.SpaceContent, []string{q})
	if err != nil {
		return nil, domain.Wrap(domain.CodeTransientUpstream, "search.embed", err)
	}
	if len(vecs) != 1 {
		return nil, domain.NewError(domain.CodeTransientUpstream, "search.embed", "no vector returned", nil)
	}
	matches, err := s.vectors.Nearest(dbctx.Context{Ctx: ctx}, vecs[0], limit)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "search.semantic", err)
	}
	out := make([]Hit, 0, len(matches))
	for _, m := range matches {
		out = append(out, Hit{ContentType: m.ContentType, ContentID: m.ContentID, Score: m.Similarity})
	}
	return out, nil
}

// IndexPost and the other indexing calls are best-effort: the lexical index is
// rebuildable with reindex, so failures are logged only.
func (s *Service) IndexPost(p *domcontent.Post) {
	if s == nil || s.index == nil || p == nil {
		return
	}
	if err := s.index.Put(postDocument(p)); err != nil {
		s.log.Warn("index post failed", "post_id", p.ID, "error", err)
	}
}

func (s *Service) IndexReply(r *domcontent.Reply) {
	if s == nil || s.index == nil || r == nil {
		return
	}
	if err := s.index.Put(replyDocument(r)); err != nil {
		s.log.Warn("index reply failed", "reply_id", r.ID, "error", err)
	}
}

func (s *Service) Remove(contentType string, id uuid.UUID) {
	if s == nil || s.index == nil {
		return
	}
	if err := s.index.Delete(contentType, id); err != nil {
		s.log.Warn("unindex failed", "content_type", contentType, "content_id", id, "error", err)
	}
}

func postDocument(p *domcontent.Post) Document {
	return Document{
		ContentType: domcontent.TypePost,
		ContentID:   p.ID.String(),
		Title:       p.Title,
		Body:        p.Body,
		AuthorID:    p.AuthorID.String(),
		CreatedAt:   p.CreatedAt,
	}
}

func replyDocument(r *domcontent.Reply) Document {
	return Document{
		ContentType: domcontent.TypeReply,
		ContentID:   r.ID.String(),
		Body:        r.Body,
		AuthorID:    r.AuthorID.String(),
		CreatedAt:   r.CreatedAt,
	}
}

type PostLister interface {
	ListAll(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*domcontent.Post, error)
}

type ReplyLister interface {
	ListAll(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*domcontent.Reply, error)
}

// Reindex rebuilds the lexical index from every live post and reply. It
// returns the number of documents written.
func (s *Service) Reindex(ctx context.Context, posts PostLister, replies ReplyLister, batchSize int) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	start := time.Now()
	dbc := dbctx.Context{Ctx: ctx}
	total := 0

	after := uuid.Nil
	for {
		page, err := posts.ListAll(dbc, after, batchSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			break
		}
		docs := make([]Document, 0, len(page))
		for _, p := range page {
			docs = append(docs, postDocument(p))
		}
		if err := s.index.PutBatch(docs); err != nil {
			return total, err
		}
		total += len(docs)
		after = page[len(page)-1].ID
	}

	after = uuid.Nil
	for {
		page, err := replies.ListAll(dbc, after, batchSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			break
		}
		docs := make([]Document, 0, len(page))
		for _, r := range page {
			docs = append(docs, replyDocument(r))
		}
		if err := s.index.PutBatch(docs); err != nil {
			return total, err
		}
		total += len(docs)
		after = page[len(page)-1].ID
	}

	s.log.Info("lexical index rebuilt", "documents", total, "duration_ms", time.Since(start).Milliseconds())
	return total, nil
}
