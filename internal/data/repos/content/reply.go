package content

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type ReplyRepo interface {
	Create(dbc dbctx.Context, r *types.Reply) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Reply, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Reply, error)
	// ListThread returns replies of postID ordered by path. A non-empty
	// rootPath restricts the result to that subtree (inclusive).
	ListThread(dbc dbctx.Context, postID uuid.UUID, rootPath string, limit int) ([]*types.Reply, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	IncrementReplyCount(dbc dbctx.Context, id uuid.UUID, delta int) error
	ListAll(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.Reply, error)
}

type replyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReplyRepo(db *gorm.DB, baseLog *logger.Logger) ReplyRepo {
	return &replyRepo{db: db, log: baseLog.With("repo", "ReplyRepo")}
}

func (r *replyRepo) Create(dbc dbctx.Context, reply *types.Reply) error {
	return dbc.DB(r.db).Create(reply).Error
}

func (r *replyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Reply, error) {
	var out types.Reply
	err := dbc.DB(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *replyRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Reply, error) {
	var out []*types.Reply
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *replyRepo) ListThread(dbc dbctx.Context, postID uuid.UUID, rootPath string, limit int) ([]*types.Reply, error) {
	if limit <= 0 {
		limit = 500
	}
	q := dbc.DB(r.db).Where("post_id = ?", postID)
	if rootPath != "" {
		q = q.Where("path <@ ?::ltree", rootPath)
	}
	var out []*types.Reply
	if err := q.Order("path ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *replyRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Reply{})
	return res.RowsAffected > 0, res.Error
}

func (r *replyRepo) IncrementReplyCount(dbc dbctx.Context, id uuid.UUID, delta int) error {
	return dbc.DB(r.db).Model(&types.Reply{}).
		Where("id = ?", id).
		UpdateColumn("reply_count", gorm.Expr("reply_count + ?", delta)).Error
}

func (r *replyRepo) ListAll(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.Reply, error) {
	var out []*types.Reply
	q := dbc.DB(r.db).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
