package feed

import (
	"context"
	"time"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Options struct {
	RisingWindow          time.Duration
	ControversialMinVotes int
	DefaultLimit          int
	MaxLimit              int
}

func DefaultOptions() Options {
	return Options{
		RisingWindow:          24 * time.Hour,
		ControversialMinVotes: 5,
		DefaultLimit:          25,
		MaxLimit:              100,
	}
}

// Plan is what a Store executes: filters, keyset position and fetch size.
type Plan struct {
	Sort  Sort
	Limit int
	AsOf  time.Time
	After *Cursor
	// Since is the rising window's lower bound; zero for other sorts.
	Since time.Time
	// MinVotes is the controversial floor; zero for other sorts.
	MinVotes int
}

type Entry struct {
	Post *content.Post
	Rank float64
}

type Store interface {
	FeedPage(ctx context.Context, plan Plan) ([]Entry, error)
}

type Query struct {
	Sort   Sort
	Limit  int
	Cursor string
}

type Page struct {
	Items      []*content.Post `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

type Engine struct {
	store Store
	opts  Options
	log   *logger.Logger
	now   func() time.Time
}

func NewEngine(store Store, opts Options, baseLog *logger.Logger) *Engine {
	def := DefaultOptions()
	if opts.RisingWindow <= 0 {
		opts.RisingWindow = def.RisingWindow
	}
	if opts.ControversialMinVotes <= 0 {
		opts.ControversialMinVotes = def.ControversialMinVotes
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = def.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = def.MaxLimit
	}
	return &Engine{store: store, opts: opts, log: baseLog.With("component", "FeedEngine"), now: time.Now}
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.opts.DefaultLimit
	}
	if limit > e.opts.MaxLimit {
		return e.opts.MaxLimit
	}
	return limit
}

// PlanFor builds the store plan for q: limit+1 rows so the caller can tell
// whether another page exists.
func (e *Engine) PlanFor(q Query) (Plan, int, error) {
	if q.Sort == "" {
		q.Sort = SortHot
	}
	if _, err := ParseSort(string(q.Sort)); err != nil {
		return Plan{}, 0, err
	}
	limit := e.clampLimit(q.Limit)
	after, err := DecodeCursor(q.Sort, q.Cursor)
	if err != nil {
		return Plan{}, 0, err
	}
	asOf := e.now().UTC()
	if after != nil {
		asOf = after.AsOf
	}
	plan := Plan{Sort: q.Sort, Limit: limit + 1, AsOf: asOf, After: after}
	switch q.Sort {
	case SortRising:
		plan.Since = asOf.Add(-e.opts.RisingWindow)
	case SortControversial:
		plan.MinVotes = e.opts.ControversialMinVotes
	}
	return plan, limit, nil
}

func (e *Engine) GetPage(ctx context.Context, q Query) (*Page, error) {
	plan, limit, err := e.PlanFor(q)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.FeedPage(ctx, plan)
	if err != nil {
		e.log.Error("feed query failed", "sort", plan.Sort, "error", err)
		return nil, domain.Wrap(domain.CodeInternal, "feed.page", err)
	}

	page := &Page{Items: make([]*content.Post, 0, limit)}
	if len(entries) > limit {
		page.HasMore = true
		entries = entries[:limit]
	}
	for _, en := range entries {
		page.Items = append(page.Items, en.Post)
	}
	if page.HasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		page.NextCursor = EncodeCursor(Cursor{
			Sort:      plan.Sort,
			AsOf:      plan.AsOf,
			CreatedAt: last.Post.CreatedAt,
			Score:     last.Post.Score,
			Rank:      last.Rank,
			ID:        last.Post.ID,
		})
	}
	return page, nil
}

// Admits reports whether p passes the plan's filters and sits strictly after
// the cursor. Stores that cannot push this into SQL filter with it directly.
func (p Plan) Admits(post *content.Post, rank float64) bool {
	if post == nil || post.DeletedAt.Valid {
		return false
	}
	if p.Sort.TimeDecayed() && post.CreatedAt.After(p.AsOf) {
		return false
	}
	if !p.Since.IsZero() && post.CreatedAt.Before(p.Since) {
		return false
	}
	if p.MinVotes > 0 && post.VoteCount < p.MinVotes {
		return false
	}
	if p.After == nil {
		return true
	}
	return Precedes(p.Sort,
		Entry{Post: &content.Post{ID: p.After.ID, CreatedAt: p.After.CreatedAt, Score: p.After.Score}, Rank: p.After.Rank},
		Entry{Post: post, Rank: rank})
}

// Precedes reports whether a orders strictly before b under s.
func Precedes(s Sort, a, b Entry) bool {
	switch s {
	case SortTop:
		if a.Post.Score != b.Post.Score {
			return a.Post.Score > b.Post.Score
		}
	case SortHot, SortRising, SortControversial:
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
	}
	if !a.Post.CreatedAt.Equal(b.Post.CreatedAt) {
		return a.Post.CreatedAt.After(b.Post.CreatedAt)
	}
	return a.Post.ID.String() > b.Post.ID.String()
}
