package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityType names the kind of record a flag points at.
type EntityType string

const (
	EntityJobPosting EntityType = "JobPosting"
	EntityUser       EntityType = "User"
	EntityResume     EntityType = "Resume"
)

type ViolationType string

const (
	ViolationSpam                 ViolationType = "spam"
	ViolationInappropriateContent ViolationType = "inappropriate_content"
	ViolationFakeInformation      ViolationType = "fake_information"
	ViolationHarassment           ViolationType = "harassment"
	ViolationCopyright            ViolationType = "copyright_violation"
	ViolationPrivacy              ViolationType = "privacy_violation"
	ViolationOther                ViolationType = "other"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type FlagStatus string

const (
	FlagStatusPending     FlagStatus = "pending"
	FlagStatusUnderReview FlagStatus = "under_review"
	FlagStatusResolved    FlagStatus = "resolved"
	FlagStatusRejected    FlagStatus = "rejected"
)

// Flag is a violation report raised by a user against a job posting, user or resume.
type Flag struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	FlaggedByID       uuid.UUID                   `gorm:"type:uuid;not null;index" json:"flagged_by_id"`
	FlaggedEntityType EntityType                  `gorm:"size:50;not null;index:idx_flags_entity" json:"flagged_entity_type"`
	FlaggedEntityID   uuid.UUID                   `gorm:"type:uuid;not null;index:idx_flags_entity" json:"flagged_entity_id"`
	ViolationType     ViolationType               `gorm:"size:50;not null;index" json:"violation_type"`
	Severity          Severity                    `gorm:"size:20;not null;default:'medium';index" json:"severity"`
	Status            FlagStatus                  `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Reason            string                      `gorm:"type:text;not null" json:"reason"`
	Details           string                      `gorm:"type:text" json:"details,omitempty"`
	EvidenceURLs      datatypes.JSONSlice[string] `json:"evidence_urls"`
	ResolvedByID      *uuid.UUID                  `gorm:"type:uuid" json:"resolved_by_id,omitempty"`
	ResolvedAt        *time.Time                  `json:"resolved_at,omitempty"`
	ResolutionNotes   string                      `gorm:"type:text" json:"resolution_notes,omitempty"`
	CreatedAt         time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
	FlaggedBy         *User                       `gorm:"foreignKey:FlaggedByID" json:"flagged_by,omitempty"`
}

func (f *Flag) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}

func (f *Flag) IsCritical() bool {
	return f.Severity == SeverityCritical
}
