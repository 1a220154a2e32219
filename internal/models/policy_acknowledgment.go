package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PolicyAcknowledgment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_policy_ack_user_version" json:"user_id"`
	PolicyVersion  string    `gorm:"size:50;not null;uniqueIndex:idx_policy_ack_user_version" json:"policy_version"`
	AcknowledgedAt time.Time `gorm:"not null" json:"acknowledged_at"`
	IPAddress      string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent      string    `gorm:"size:500" json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (a *PolicyAcknowledgment) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
