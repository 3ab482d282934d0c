package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TrackedStatus is the chain consumer's view of a job it submitted
type TrackedStatus string

const (
	TrackedStatusPending    TrackedStatus = "pending"
	TrackedStatusSubmitting TrackedStatus = "submitting"
	TrackedStatusQueued     TrackedStatus = "queued"
	TrackedStatusRunning    TrackedStatus = "running"
	TrackedStatusCompleted  TrackedStatus = "completed"
	TrackedStatusFailed     TrackedStatus = "failed"
)

func (s TrackedStatus) IsTerminal() bool {
	return s == TrackedStatusCompleted || s == TrackedStatusFailed
}

// TrackedJob mirrors a remote job record. A job with a ParentID is only
// submitted after its parent has been observed as completed.
type TrackedJob struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Kind         JobKind        `json:"kind" gorm:"type:varchar(16);not null;index"`
	Params       datatypes.JSON `json:"params" gorm:"type:jsonb;not null"`
	Status       TrackedStatus  `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	ErrorMessage string         `json:"error_message" gorm:"type:text"`
	RemoteJobID  string         `json:"remote_job_id" gorm:"type:varchar(64);index"`
	ParentID     *uuid.UUID     `json:"parent_id,omitempty" gorm:"type:uuid;index"`
	PollAttempts int            `json:"poll_attempts" gorm:"default:0"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	Parent *TrackedJob `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
}
