package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is an in-app message delivered to an admin.
type Notification struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Message          string         `gorm:"type:text" json:"message"`
	NotificationType string         `gorm:"size:50;not null;index" json:"notification_type"`
	Priority         string         `gorm:"size:20;not null;default:'normal'" json:"priority"`
	Metadata         datatypes.JSON `json:"metadata"`
	ReadAt           *time.Time     `json:"read_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}
