package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type ContentMatch struct {
	ContentType string    `json:"content_type"`
	ContentID   uuid.UUID `json:"content_id"`
	Similarity  float64   `json:"similarity"`
}

type EmbeddingRepo interface {
	Upsert(dbc dbctx.Context, e *types.ContentEmbedding) error
	GetHash(dbc dbctx.Context, contentType string, id uuid.UUID) (string, error)
	Nearest(dbc dbctx.Context, vec []float32, k int) ([]ContentMatch, error)
}

type embeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return &embeddingRepo{db: db, log: baseLog.With("repo", "ContentEmbeddingRepo")}
}

func (r *embeddingRepo) Upsert(dbc dbctx.Context, e *types.ContentEmbedding) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "content_hash", "updated_at"}),
	}).Create(e).Error
}

// GetHash returns the content hash the stored embedding was computed from, or
// "" when none exists.
func (r *embeddingRepo) GetHash(dbc dbctx.Context, contentType string, id uuid.UUID) (string, error) {
	var hashes []string
	err := dbc.DB(r.db).Model(&types.ContentEmbedding{}).
		Where("content_type = ? AND content_id = ?", contentType, id).
		Limit(1).
		Pluck("content_hash", &hashes).Error
	if err != nil || len(hashes) == 0 {
		return "", err
	}
	return hashes[0], nil
}

func (r *embeddingRepo) Nearest(dbc dbctx.Context, vec []float32, k int) ([]ContentMatch, error) {
	if k <= 0 {
		k = 20
	}
	v := pgvector.NewVector(vec)
	var out []ContentMatch
	err := dbc.DB(r.db).Raw(`
		SELECT content_type, content_id, 1 - (embedding <=> ?) AS similarity
		FROM content_embedding
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> ?
		LIMIT ?
	`, v, v, k).Scan(&out).Error
	return out, err
}
