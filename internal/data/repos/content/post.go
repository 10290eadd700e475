package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/feed"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type PostRepo interface {
	Create(dbc dbctx.Context, p *types.Post) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Post, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Post, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	IncrementReplyCount(dbc dbctx.Context, id uuid.UUID, delta int) error
	ListAll(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.Post, error)
	FeedPage(ctx context.Context, plan feed.Plan) ([]feed.Entry, error)
}

type postRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	return &postRepo{db: db, log: baseLog.With("repo", "PostRepo")}
}

func (r *postRepo) Create(dbc dbctx.Context, p *types.Post) error {
	return dbc.DB(r.db).Create(p).Error
}

// GetByID returns nil, nil when the post is missing or soft-deleted.
func (r *postRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Post, error) {
	var p types.Post
	err := dbc.DB(r.db).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Post, error) {
	var out []*types.Post
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Post{})
	return res.RowsAffected > 0, res.Error
}

func (r *postRepo) IncrementReplyCount(dbc dbctx.Context, id uuid.UUID, delta int) error {
	return dbc.DB(r.db).Model(&types.Post{}).
		Where("id = ?", id).
		UpdateColumn("reply_count", gorm.Expr("reply_count + ?", delta)).Error
}

// ListAll pages through live posts by id; used for reindexing.
func (r *postRepo) ListAll(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.Post, error) {
	var out []*types.Post
	q := dbc.DB(r.db).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type feedRow struct {
	types.Post `gorm:"embedded"`
	FeedRank   float64 `gorm:"column:feed_rank"`
}

const ageHoursSQL = `GREATEST(EXTRACT(EPOCH FROM (?::timestamptz - created_at)) / 3600.0, 0)`

// rankSQL returns the ranking expression for a sort and its bind args. The
// expression is evaluated against the plan's AsOf so page 2 sees the same
// ranks page 1 did.
func rankSQL(plan feed.Plan) (string, []interface{}) {
	switch plan.Sort {
	case feed.SortTop:
		return `score::float8`, nil
	case feed.SortHot:
		return fmt.Sprintf(`(score::float8 / POWER(%s + 2, 1.8))`, ageHoursSQL), []interface{}{plan.AsOf}
	case feed.SortRising:
		return fmt.Sprintf(`(vote_count::float8 / POWER(%s + 2, 1.2))`, ageHoursSQL), []interface{}{plan.AsOf}
	case feed.SortControversial:
		return `(vote_count::float8 / (ABS(score) + 1))`, nil
	default:
		return `0::float8`, nil
	}
}

func (r *postRepo) FeedPage(ctx context.Context, plan feed.Plan) ([]feed.Entry, error) {
	rankExpr, rankArgs := rankSQL(plan)
	q := r.db.WithContext(ctx).
		Table("post").
		Select("post.*, "+rankExpr+" AS feed_rank", rankArgs...).
		Where("deleted_at IS NULL")

	if plan.Sort.TimeDecayed() {
		q = q.Where("created_at <= ?", plan.AsOf)
	}
	if !plan.Since.IsZero() {
		q = q.Where("created_at >= ?", plan.Since)
	}
	if plan.MinVotes > 0 {
		q = q.Where("vote_count >= ?", plan.MinVotes)
	}

	if c := plan.After; c != nil {
		switch plan.Sort {
		case feed.SortNew:
			q = q.Where("(created_at, id) < (?, ?)", c.CreatedAt, c.ID)
		case feed.SortTop:
			q = q.Where("(score, created_at, id) < (?, ?, ?)", c.Score, c.CreatedAt, c.ID)
		default:
			args := append(append([]interface{}{}, rankArgs...), c.Rank, c.CreatedAt, c.ID)
			q = q.Where("("+rankExpr+", created_at, id) < (?::float8, ?, ?)", args...)
		}
	}

	switch plan.Sort {
	case feed.SortNew:
		q = q.Order("created_at DESC").Order("id DESC")
	case feed.SortTop:
		q = q.Order("score DESC").Order("created_at DESC").Order("id DESC")
	default:
		q = q.Order("feed_rank DESC").Order("created_at DESC").Order("id DESC")
	}

	var rows []feedRow
	if err := q.Limit(plan.Limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]feed.Entry, 0, len(rows))
	for i := range rows {
		p := rows[i].Post
		out = append(out, feed.Entry{Post: &p, Rank: rows[i].FeedRank})
	}
	return out, nil
}
