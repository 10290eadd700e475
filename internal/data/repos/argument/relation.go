package argument

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type RelationRepo interface {
	// InsertBatch skips edges already present; it returns the rows inserted.
	InsertBatch(dbc dbctx.Context, rels []*types.ArgumentRelation) (int64, error)
	ListTouching(dbc dbctx.Context, aduIDs []uuid.UUID) ([]*types.ArgumentRelation, error)
}

type relationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationRepo(db *gorm.DB, baseLog *logger.Logger) RelationRepo {
	return &relationRepo{db: db, log: baseLog.With("repo", "RelationRepo")}
}

func (r *relationRepo) InsertBatch(dbc dbctx.Context, rels []*types.ArgumentRelation) (int64, error) {
	if len(rels) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&rels)
	return res.RowsAffected, res.Error
}

func (r *relationRepo) ListTouching(dbc dbctx.Context, aduIDs []uuid.UUID) ([]*types.ArgumentRelation, error) {
	var out []*types.ArgumentRelation
	if len(aduIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("source_adu_id IN ? OR target_adu_id IN ?", aduIDs, aduIDs).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
