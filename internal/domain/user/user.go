package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PrincipalHuman = "human"
	PrincipalAgent = "agent"
)

// User is an authentication principal. Agent principals are created together
// with their AgentIdentity and never have an email.
type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string     `gorm:"column:email;index" json:"-"`
	Handle        string     `gorm:"column:handle;not null" json:"handle"`
	DisplayName   string     `gorm:"column:display_name;not null" json:"display_name"`
	PrincipalType string     `gorm:"column:principal_type;not null;default:'human';index" json:"principal_type"`
	DisabledAt    *time.Time `gorm:"column:disabled_at" json:"disabled_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsAgent() bool { return u != nil && u.PrincipalType == PrincipalAgent }

func (u *User) Disabled() bool { return u == nil || u.DisabledAt != nil || u.DeletedAt.Valid }
