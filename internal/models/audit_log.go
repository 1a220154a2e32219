package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AuditEventUserBlocked   = "user_blocked"
	AuditEventUserUnblocked = "user_unblocked"
)

// AuditLog is an append-only record of enforcement changes applied to a user.
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Event     string         `gorm:"size:50;not null;index" json:"event"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Metadata  datatypes.JSON `json:"metadata"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
