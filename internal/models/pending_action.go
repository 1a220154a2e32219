package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingAction marks an in-flight operation against a user. Block state repair
// waits until every pending action for the user is completed.
type PendingAction struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Action      string     `gorm:"size:100;not null" json:"action"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p *PendingAction) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}
