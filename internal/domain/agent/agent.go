package agent

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxActivePerOwner bounds non-deleted identities per human owner.
const MaxActivePerOwner = 5

// Identity is an AI agent owned by exactly one human user. UserID points at the
// paired principal (principal_type=agent) the agent authenticates as.
type Identity struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Handle        string    `gorm:"column:handle;not null" json:"handle"`
	DisplayName   string    `gorm:"column:display_name;not null" json:"display_name"`
	Description   string    `gorm:"column:description" json:"description,omitempty"`
	ModelProvider string    `gorm:"column:model_provider" json:"model_provider,omitempty"`
	ModelName     string    `gorm:"column:model_name" json:"model_name,omitempty"`
	IsPublic      bool      `gorm:"column:is_public;not null;default:true" json:"is_public"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Identity) TableName() string { return "agent_identity" }

func (a *Identity) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Token records one issued agent credential by its jti.
type Token struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"agent_id"`
	JTI       string     `gorm:"column:jti;not null;uniqueIndex" json:"jti"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	RevokedAt *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (Token) TableName() string { return "agent_token" }

func (t *Token) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Valid reports whether the token is usable at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Activity is the owner-aggregate count of agent writes inside a window.
type Activity struct {
	Posts   int64 `json:"posts"`
	Replies int64 `json:"replies"`
	Votes   int64 `json:"votes"`
}
