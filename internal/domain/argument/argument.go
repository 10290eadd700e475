package argument

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const (
	TypeMajorClaim = "major_claim"
	TypeSupporting = "supporting"
	TypeOpposing   = "opposing"
	TypeEvidence   = "evidence"
)

const (
	RelationSupport = "support"
	RelationAttack  = "attack"
)

func ValidADUType(t string) bool {
	switch t {
	case TypeMajorClaim, TypeSupporting, TypeOpposing, TypeEvidence:
		return true
	}
	return false
}

// IsClaimType reports whether ADUs of type t take part in canonicalization.
// Evidence spans are premises, not claims.
func IsClaimType(t string) bool {
	return t == TypeMajorClaim || t == TypeSupporting || t == TypeOpposing
}

func ValidRelationType(t string) bool {
	return t == RelationSupport || t == RelationAttack
}

// ADU is an argumentative span of one content unit, extracted from the body
// whose hash is SourceHash. Rows are never updated after the parent link is
// resolved; a changed body supersedes them.
type ADU struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SourceType   string           `gorm:"column:source_type;not null" json:"source_type"`
	SourceID     uuid.UUID        `gorm:"type:uuid;column:source_id;not null" json:"source_id"`
	SourceHash   string           `gorm:"column:source_hash;not null" json:"-"`
	Position     int              `gorm:"column:position;not null" json:"position"`
	ADUType      string           `gorm:"column:adu_type;not null" json:"adu_type"`
	Text         string           `gorm:"column:text;not null" json:"text"`
	SpanStart    int              `gorm:"column:span_start;not null" json:"span_start"`
	SpanEnd      int              `gorm:"column:span_end;not null" json:"span_end"`
	Confidence   float64          `gorm:"column:confidence;not null" json:"confidence"`
	ParentADUID  *uuid.UUID       `gorm:"type:uuid;column:parent_adu_id" json:"parent_adu_id,omitempty"`
	Embedding    *pgvector.Vector `gorm:"column:embedding;-:migration" json:"-"`
	SupersededAt *time.Time       `gorm:"column:superseded_at" json:"superseded_at,omitempty"`
	CreatedAt    time.Time        `gorm:"not null" json:"created_at"`
}

func (ADU) TableName() string { return "adu" }

func (a *ADU) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// CanonicalClaim is the deduplicated representative of equivalent claim ADUs.
type CanonicalClaim struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RepresentativeText  string           `gorm:"column:representative_text;not null" json:"representative_text"`
	ClaimType           string           `gorm:"column:claim_type;not null" json:"claim_type"`
	RepresentativeADUID uuid.UUID        `gorm:"type:uuid;column:representative_adu_id;not null" json:"representative_adu_id"`
	Embedding           *pgvector.Vector `gorm:"column:embedding;-:migration" json:"-"`
	ADUCount            int              `gorm:"column:adu_count;not null;default:0" json:"adu_count"`
	DiscussionCount     int              `gorm:"column:discussion_count;not null;default:0" json:"discussion_count"`
	AvgSimilarity       float64          `gorm:"column:avg_similarity;not null;default:0" json:"avg_similarity"`
	CreatedAt           time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"not null" json:"updated_at"`
}

func (CanonicalClaim) TableName() string { return "canonical_claim" }

func (c *CanonicalClaim) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CanonicalMapping links one ADU to its canonical claim.
type CanonicalMapping struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ADUID            uuid.UUID `gorm:"type:uuid;column:adu_id;not null;uniqueIndex" json:"adu_id"`
	CanonicalClaimID uuid.UUID `gorm:"type:uuid;column:canonical_claim_id;not null;index" json:"canonical_claim_id"`
	Similarity       float64   `gorm:"column:similarity;not null" json:"similarity"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

func (CanonicalMapping) TableName() string { return "adu_canonical_mapping" }

func (m *CanonicalMapping) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ClaimMatch is a nearest-neighbour candidate from the canonical corpus.
type ClaimMatch struct {
	ClaimID         uuid.UUID `json:"claim_id"`
	Similarity      float64   `json:"similarity"`
	DiscussionCount int       `json:"discussion_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Relation is a directed support/attack edge between two ADUs.
type Relation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceADUID  uuid.UUID `gorm:"type:uuid;column:source_adu_id;not null;index" json:"source_adu_id"`
	TargetADUID  uuid.UUID `gorm:"type:uuid;column:target_adu_id;not null;index" json:"target_adu_id"`
	RelationType string    `gorm:"column:relation_type;not null" json:"relation_type"`
	Confidence   float64   `gorm:"column:confidence;not null" json:"confidence"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (Relation) TableName() string { return "argument_relation" }

func (r *Relation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
