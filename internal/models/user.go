package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleRecruiter = "recruiter"
	RoleUser      = "user"
)

// AccessScope is the enforcement-side cache of a user's block state.
type AccessScope string

const (
	AccessScopeFull     AccessScope = "full"
	AccessScopeReadOnly AccessScope = "read_only"
)

// User holds the account fields the enforcement pipeline reads and writes.
// BlockedAt and AccessScope are owned by the enforcement worker; IsBlocked,
// BlockedReason and JobPortalAccess are written synchronously by direct blocks.
type User struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email                string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name                 string         `gorm:"size:255" json:"name"`
	Role                 string         `gorm:"size:20;default:'user'" json:"role"`
	BlockedAt            *time.Time     `json:"blocked_at"`
	AccessScope          AccessScope    `gorm:"size:20;not null;default:'full'" json:"access_scope"`
	IsBlocked            bool           `gorm:"not null;default:false" json:"is_blocked"`
	BlockedReason        *string        `gorm:"type:text" json:"blocked_reason"`
	JobPortalAccess      bool           `gorm:"not null;default:true" json:"job_portal_access"`
	NotificationsEnabled bool           `gorm:"not null;default:true" json:"notifications_enabled"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
