package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusQueued     = "queued"
	StatusRunning    = "running"
	StatusFailed     = "failed"
	StatusSucceeded  = "succeeded"
	StatusDeadLetter = "dead_letter"
)

type JobRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	JobType        string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType     string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID       *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	Stage          string         `gorm:"column:stage;not null" json:"stage"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts    int            `gorm:"column:max_attempts;not null;default:5" json:"max_attempts"`
	RunAfter       *time.Time     `gorm:"column:run_after;index" json:"run_after,omitempty"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt       *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt    *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt    *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	DeadLetteredAt *time.Time     `gorm:"column:dead_lettered_at;index" json:"dead_lettered_at,omitempty"`
	Requeues       int            `gorm:"column:requeues;not null;default:0" json:"requeues"`
	Payload        datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result         datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (JobRun) TableName() string { return "job_run" }

func (j *JobRun) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
