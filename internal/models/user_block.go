package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BlockType string

const (
	BlockTypeFull      BlockType = "full"
	BlockTypePartial   BlockType = "partial"
	BlockTypeJobPortal BlockType = "job_portal"
	BlockTypeMessaging BlockType = "messaging"
)

type BlockStatus string

const (
	BlockStatusActive    BlockStatus = "active"
	BlockStatusExpired   BlockStatus = "expired"
	BlockStatusUnblocked BlockStatus = "unblocked"
)

// UserBlock is the authoritative record of a restriction placed on a user.
// At most one row per user is active; the partial unique index backs the
// row-lock check done by the block store.
type UserBlock struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_blocks_single_active,where:status = 'active'" json:"user_id"`
	BlockedByID      *uuid.UUID  `gorm:"type:uuid" json:"blocked_by_id"`
	UnblockedByID    *uuid.UUID  `gorm:"type:uuid" json:"unblocked_by_id,omitempty"`
	FlagID           *uuid.UUID  `gorm:"type:uuid;index" json:"flag_id,omitempty"`
	BlockType        BlockType   `gorm:"size:20;not null;default:'full'" json:"block_type"`
	Reason           string      `gorm:"type:text;not null" json:"reason"`
	Status           BlockStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	DurationDays     *int        `json:"duration_days"`
	ExpiresAt        *time.Time  `gorm:"index" json:"expires_at"`
	UnblockedAt      *time.Time  `json:"unblocked_at,omitempty"`
	UnblockReason    string      `gorm:"type:text" json:"unblock_reason,omitempty"`
	PolicyVersion    string      `gorm:"size:50" json:"policy_version,omitempty"`
	AutoReconciledAt *time.Time  `json:"auto_reconciled_at,omitempty"`
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	User             *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (b *UserBlock) BeforeCreate(tx *gorm.DB) error {
	assignID(&b.ID)
	return nil
}

func (b *UserBlock) IsPermanent() bool {
	return b.ExpiresAt == nil
}

// IsExpiredAt reports whether the block's window has closed at now.
func (b *UserBlock) IsExpiredAt(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// IsActiveAt reports whether the block restricts the user at now. A row still
// marked active with a past expiry is logically expired.
func (b *UserBlock) IsActiveAt(now time.Time) bool {
	return b.Status == BlockStatusActive && !b.IsExpiredAt(now)
}

// RestrictsJobPortal reports whether this block type denies job portal access.
func (b *UserBlock) RestrictsJobPortal() bool {
	return b.BlockType == BlockTypeFull || b.BlockType == BlockTypeJobPortal
}
