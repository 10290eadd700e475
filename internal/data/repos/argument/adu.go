package argument

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type ADURepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ADU, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ADU, error)
	// ListBySourceHash returns the batch extracted from one body, ordered by
	// position.
	ListBySourceHash(dbc dbctx.Context, sourceType string, sourceID uuid.UUID, hash string) ([]*types.ADU, error)
	// ListLive returns the non-superseded ADUs of a unit.
	ListLive(dbc dbctx.Context, sourceType string, sourceID uuid.UUID) ([]*types.ADU, error)
	InsertBatch(dbc dbctx.Context, adus []*types.ADU) error
	SupersedeOlder(dbc dbctx.Context, sourceType string, sourceID uuid.UUID, keepHash string, at time.Time) (int64, error)
	// Revive clears superseded_at on the batch of hash, for a body that was
	// edited back to an earlier version.
	Revive(dbc dbctx.Context, sourceType string, sourceID uuid.UUID, hash string) (int64, error)
	SetParent(dbc dbctx.Context, id, parentID uuid.UUID) error
	SetEmbedding(dbc dbctx.Context, id uuid.UUID, vec []float32) error
}

type aduRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewADURepo(db *gorm.DB, baseLog *logger.Logger) ADURepo {
	return &aduRepo{db: db, log: baseLog.With("repo", "ADURepo")}
}

func (r *aduRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ADU, error) {
	var out types.ADU
	err := dbc.DB(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *aduRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ADU, error) {
	var out []*types.ADU
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Order("position ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *aduRepo) ListBySourceHash(dbc dbctx.Context, sourceType string, sourceID uuid.UUID, hash string) ([]*types.ADU, error) {
	var out []*types.ADU
	err := dbc.DB(r.db).
		Where("source_type = ? AND source_id = ? AND source_hash = ?", sourceType, sourceID, hash).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

func (r *aduRepo) ListLive(dbc dbctx.Context, sourceType string, sourceID uuid.UUID) ([]*types.ADU, error) {
	var out []*types.ADU
	err := dbc.DB(r.db).
		Where("source_type = ? AND source_id = ? AND superseded_at IS NULL", sourceType, sourceID).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

// InsertBatch skips rows whose (source, hash, span, type) key already exists,
// so ids set on skipped rows are not persisted; re-read the batch afterwards.
func (r *aduRepo) InsertBatch(dbc dbctx.Context, adus []*types.ADU) error {
	if len(adus) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Omit("embedding").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&adus).Error
}

func (r *aduRepo) SupersedeOlder(dbc dbctx.Context, sourceType string, sourceID uuid.UUID, keepHash string, at time.Time) (int64, error) {
	res := dbc.DB(r.db).Model(&types.ADU{}).
		Where("source_type = ? AND source_id = ? AND source_hash <> ? AND superseded_at IS NULL", sourceType, sourceID, keepHash).
		Update("superseded_at", at)
	return res.RowsAffected, res.Error
}

func (r *aduRepo) Revive(dbc dbctx.Context, sourceType string, sourceID uuid.UUID, hash string) (int64, error) {
	res := dbc.DB(r.db).Model(&types.ADU{}).
		Where("source_type = ? AND source_id = ? AND source_hash = ? AND superseded_at IS NOT NULL", sourceType, sourceID, hash).
		Update("superseded_at", nil)
	return res.RowsAffected, res.Error
}

func (r *aduRepo) SetParent(dbc dbctx.Context, id, parentID uuid.UUID) error {
	return dbc.DB(r.db).Model(&types.ADU{}).
		Where("id = ? AND parent_adu_id IS NULL", id).
		Update("parent_adu_id", parentID).Error
}

func (r *aduRepo) SetEmbedding(dbc dbctx.Context, id uuid.UUID, vec []float32) error {
	return dbc.DB(r.db).Exec(`UPDATE adu SET embedding = ? WHERE id = ?`, pgvector.NewVector(vec), id).Error
}
