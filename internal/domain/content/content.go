package content

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const (
	TypePost  = "post"
	TypeReply = "reply"
)

const (
	AnalysisPending    = "pending"
	AnalysisProcessing = "processing"
	AnalysisCompleted  = "completed"
	AnalysisFailed     = "failed"
)

const (
	MaxBodyRunes  = 10000
	MaxTitleRunes = 300
	MaxReplyDepth = 64
)

// Hash is the idempotency key for analysis: a pure function of body.
func Hash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func ValidType(t string) bool { return t == TypePost || t == TypeReply }

type Post struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_id"`
	Title          string     `gorm:"column:title;not null" json:"title"`
	Body           string     `gorm:"column:body;not null" json:"body"`
	ContentHash    string     `gorm:"column:content_hash;not null" json:"content_hash"`
	AnalysisStatus string     `gorm:"column:analysis_status;not null;default:'pending';index" json:"analysis_status"`
	AnalysisError  string     `gorm:"column:analysis_error" json:"analysis_error,omitempty"`
	AnalyzedHash   string     `gorm:"column:analyzed_hash" json:"-"`
	Score          int        `gorm:"column:score;not null;default:0" json:"score"`
	VoteCount      int        `gorm:"column:vote_count;not null;default:0" json:"vote_count"`
	ReplyCount     int        `gorm:"column:reply_count;not null;default:0" json:"reply_count"`
	QuotedPostID   *uuid.UUID `gorm:"type:uuid;column:quoted_post_id" json:"quoted_post_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Post) TableName() string { return "post" }

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ContentHash == "" {
		p.ContentHash = Hash(p.Body)
	}
	return nil
}

// Reply lives in a thread under PostID. Path is an ltree of reply labels from
// the top-level reply down to this one; Depth is 1 for direct replies.
type Reply struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"post_id"`
	ParentReplyID  *uuid.UUID `gorm:"type:uuid;column:parent_reply_id;index" json:"parent_reply_id,omitempty"`
	AuthorID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_id"`
	Body           string     `gorm:"column:body;not null" json:"body"`
	ContentHash    string     `gorm:"column:content_hash;not null" json:"content_hash"`
	AnalysisStatus string     `gorm:"column:analysis_status;not null;default:'pending';index" json:"analysis_status"`
	AnalysisError  string     `gorm:"column:analysis_error" json:"analysis_error,omitempty"`
	AnalyzedHash   string     `gorm:"column:analyzed_hash" json:"-"`
	Score          int        `gorm:"column:score;not null;default:0" json:"score"`
	VoteCount      int        `gorm:"column:vote_count;not null;default:0" json:"vote_count"`
	ReplyCount     int        `gorm:"column:reply_count;not null;default:0" json:"reply_count"`
	Path           string     `gorm:"column:path;type:ltree;not null" json:"path"`
	Depth          int        `gorm:"column:depth;not null" json:"depth"`
	QuotedPostID   *uuid.UUID `gorm:"type:uuid;column:quoted_post_id" json:"quoted_post_id,omitempty"`
	TargetADUID    *uuid.UUID `gorm:"type:uuid;column:target_adu_id;index" json:"target_adu_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Reply) TableName() string { return "reply" }

func (r *Reply) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.ContentHash == "" {
		r.ContentHash = Hash(r.Body)
	}
	return nil
}

// PathLabel is this reply's ltree label (ltree labels cannot contain '-').
func PathLabel(id uuid.UUID) string {
	b := []byte(id.String())
	out := b[:0]
	for _, c := range b {
		if c != '-' {
			out = append(out, c)
		}
	}
	return "r" + string(out)
}

// ChildPath builds the ltree path for a reply under parentPath ("" for a
// top-level reply).
func ChildPath(parentPath string, id uuid.UUID) string {
	if parentPath == "" {
		return PathLabel(id)
	}
	return parentPath + "." + PathLabel(id)
}

// Unit is the type-agnostic view of a post or reply the analysis pipeline
// works on.
type Unit struct {
	Type           string
	ID             uuid.UUID
	AuthorID       uuid.UUID
	Body           string
	ContentHash    string
	AnalysisStatus string
	AnalysisError  string
	AnalyzedHash   string
	PostID         uuid.UUID
	ParentReplyID  *uuid.UUID
	TargetADUID    *uuid.UUID
	Deleted        bool
}

// NeedsAnalysis reports whether the unit's current body has not been analysed.
func (u *Unit) NeedsAnalysis() bool {
	if u == nil || u.Deleted {
		return false
	}
	return !(u.AnalysisStatus == AnalysisCompleted && u.AnalyzedHash == Hash(u.Body))
}

func UnitFromPost(p *Post) *Unit {
	return &Unit{
		Type:           TypePost,
		ID:             p.ID,
		AuthorID:       p.AuthorID,
		Body:           p.Body,
		ContentHash:    p.ContentHash,
		AnalysisStatus: p.AnalysisStatus,
		AnalysisError:  p.AnalysisError,
		AnalyzedHash:   p.AnalyzedHash,
		PostID:         p.ID,
		Deleted:        p.DeletedAt.Valid,
	}
}

func UnitFromReply(r *Reply) *Unit {
	return &Unit{
		Type:           TypeReply,
		ID:             r.ID,
		AuthorID:       r.AuthorID,
		Body:           r.Body,
		ContentHash:    r.ContentHash,
		AnalysisStatus: r.AnalysisStatus,
		AnalysisError:  r.AnalysisError,
		AnalyzedHash:   r.AnalyzedHash,
		PostID:         r.PostID,
		ParentReplyID:  r.ParentReplyID,
		TargetADUID:    r.TargetADUID,
		Deleted:        r.DeletedAt.Valid,
	}
}

// Vote is one voter's active vote on a post or reply.
type Vote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VoterID    uuid.UUID `gorm:"type:uuid;not null;index" json:"voter_id"`
	TargetType string    `gorm:"column:target_type;not null" json:"target_type"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;index" json:"target_id"`
	Value      int       `gorm:"column:value;not null" json:"value"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (Vote) TableName() string { return "vote" }

func (v *Vote) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Tally is the cached aggregate on a vote target.
type Tally struct {
	Score     int `json:"score"`
	VoteCount int `json:"vote_count"`
}

// Embedding is the full-text semantic vector of a post or reply.
type Embedding struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ContentType string           `gorm:"column:content_type;not null" json:"content_type"`
	ContentID   uuid.UUID        `gorm:"type:uuid;column:content_id;not null" json:"content_id"`
	ContentHash string           `gorm:"column:content_hash;not null" json:"content_hash"`
	Embedding   *pgvector.Vector `gorm:"column:embedding;-:migration" json:"-"`
	CreatedAt   time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null" json:"updated_at"`
}

func (Embedding) TableName() string { return "content_embedding" }

func (e *Embedding) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
