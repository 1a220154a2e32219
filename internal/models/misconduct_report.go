package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MisconductReport is a career misconduct report filed under a specific policy version.
type MisconductReport struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"reporter_id"`
	TargetID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"target_id"`
	Reason        string        `gorm:"type:text;not null" json:"reason"`
	ViolationType ViolationType `gorm:"size:50;not null;default:'other'" json:"violation_type"`
	Status        FlagStatus    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PolicyVersion string        `gorm:"size:50;not null" json:"policy_version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (r *MisconductReport) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
