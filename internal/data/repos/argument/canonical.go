package argument

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/argument"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type CanonicalRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalClaim, error)
	// Nearest returns up to k canonical claims by cosine similarity to vec.
	Nearest(dbc dbctx.Context, vec []float32, k int) ([]argument.ClaimMatch, error)
	Create(dbc dbctx.Context, c *types.CanonicalClaim, vec []float32) error
	// Link inserts the mapping unless the ADU is already mapped. It reports
	// whether a row was inserted.
	Link(dbc dbctx.Context, m *types.CanonicalMapping) (bool, error)
	RecomputeCounts(dbc dbctx.Context, claimID uuid.UUID) error
	// RecomputeForSource recomputes every claim an ADU of the unit maps to.
	RecomputeForSource(dbc dbctx.Context, sourceType string, sourceID uuid.UUID) error
	MappedADUIDs(dbc dbctx.Context, aduIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	ListMappedADUs(dbc dbctx.Context, claimID uuid.UUID, limit int) ([]*types.ADU, error)
}

type canonicalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanonicalRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalRepo {
	return &canonicalRepo{db: db, log: baseLog.With("repo", "CanonicalRepo")}
}

func (r *canonicalRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CanonicalClaim, error) {
	var out types.CanonicalClaim
	err := dbc.DB(r.db).Omit("embedding").Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *canonicalRepo) Nearest(dbc dbctx.Context, vec []float32, k int) ([]argument.ClaimMatch, error) {
	if k <= 0 {
		k = 5
	}
	v := pgvector.NewVector(vec)
	var out []argument.ClaimMatch
	err := dbc.DB(r.db).Raw(`
		SELECT id AS claim_id, 1 - (embedding <=> ?) AS similarity, discussion_count, created_at
		FROM canonical_claim
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> ?
		LIMIT ?
	`, v, v, k).Scan(&out).Error
	return out, err
}

func (r *canonicalRepo) Create(dbc dbctx.Context, c *types.CanonicalClaim, vec []float32) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return dbc.DB(r.db).Exec(`
		INSERT INTO canonical_claim
			(id, representative_text, claim_type, representative_adu_id, embedding,
			 adu_count, discussion_count, avg_similarity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.RepresentativeText, c.ClaimType, c.RepresentativeADUID, pgvector.NewVector(vec),
		c.ADUCount, c.DiscussionCount, c.AvgSimilarity, c.CreatedAt, c.UpdatedAt).Error
}

func (r *canonicalRepo) Link(dbc dbctx.Context, m *types.CanonicalMapping) (bool, error) {
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "adu_id"}}, DoNothing: true}).
		Create(m)
	return res.RowsAffected > 0, res.Error
}

// RecomputeCounts derives the claim's aggregates from the mappings of live
// ADUs. A discussion is a distinct content unit.
func (r *canonicalRepo) RecomputeCounts(dbc dbctx.Context, claimID uuid.UUID) error {
	return dbc.DB(r.db).Exec(`
		UPDATE canonical_claim c SET
			adu_count = s.adu_count,
			discussion_count = s.discussion_count,
			avg_similarity = s.avg_similarity,
			updated_at = now()
		FROM (
			SELECT COUNT(*) AS adu_count,
			       COUNT(DISTINCT (a.source_type, a.source_id)) AS discussion_count,
			       COALESCE(AVG(m.similarity), 0) AS avg_similarity
			FROM adu_canonical_mapping m
			JOIN adu a ON a.id = m.adu_id
			WHERE m.canonical_claim_id = ? AND a.superseded_at IS NULL
		) s
		WHERE c.id = ?
	`, claimID, claimID).Error
}

func (r *canonicalRepo) RecomputeForSource(dbc dbctx.Context, sourceType string, sourceID uuid.UUID) error {
	var claimIDs []uuid.UUID
	err := dbc.DB(r.db).Raw(`
		SELECT DISTINCT m.canonical_claim_id
		FROM adu_canonical_mapping m
		JOIN adu a ON a.id = m.adu_id
		WHERE a.source_type = ? AND a.source_id = ?
	`, sourceType, sourceID).Scan(&claimIDs).Error
	if err != nil {
		return err
	}
	for _, id := range claimIDs {
		if err := r.RecomputeCounts(dbc, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *canonicalRepo) MappedADUIDs(dbc dbctx.Context, aduIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := map[uuid.UUID]uuid.UUID{}
	if len(aduIDs) == 0 {
		return out, nil
	}
	var rows []types.CanonicalMapping
	if err := dbc.DB(r.db).Where("adu_id IN ?", aduIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ADUID] = m.CanonicalClaimID
	}
	return out, nil
}

func (r *canonicalRepo) ListMappedADUs(dbc dbctx.Context, claimID uuid.UUID, limit int) ([]*types.ADU, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.ADU
	err := dbc.DB(r.db).
		Select("adu.*").
		Joins("JOIN adu_canonical_mapping m ON m.adu_id = adu.id").
		Where("m.canonical_claim_id = ?", claimID).
		Order("adu.created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
