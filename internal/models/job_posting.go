package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	JobPostingOpen    = "open"
	JobPostingClosed  = "closed"
	JobPostingRemoved = "removed"
)

type JobPosting struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecruiterID   uuid.UUID `gorm:"type:uuid;not null;index" json:"recruiter_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Company       string    `gorm:"size:255" json:"company"`
	Location      string    `gorm:"size:255" json:"location"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	Status        string    `gorm:"size:20;not null;default:'open';index" json:"status"`
	RemovedReason string    `gorm:"type:text" json:"removed_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (j *JobPosting) BeforeCreate(tx *gorm.DB) error {
	assignID(&j.ID)
	return nil
}
