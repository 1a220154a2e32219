package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
)

type BlockUserRequest struct {
	Reason       string           `json:"reason"`
	BlockType    models.BlockType `json:"block_type"`
	DurationDays *int             `json:"duration_days"`
	FlagID       *uuid.UUID       `json:"flag_id"`
}

type UnblockUserRequest struct {
	Reason string `json:"reason"`
}

type BlockResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Block   *models.UserBlock `json:"block,omitempty"`
}

type BlockCheckResponse struct {
	Success            bool              `json:"success"`
	IsBlocked          bool              `json:"is_blocked"`
	Block              *models.UserBlock `json:"block"`
	CanAccessJobPortal bool              `json:"can_access_job_portal"`
}

type BlockListResponse struct {
	Success    bool               `json:"success"`
	Blocks     []models.UserBlock `json:"blocks"`
	Pagination PaginationResponse `json:"pagination"`
}

// AccessRestrictedResponse is returned by the job portal gate.
type AccessRestrictedResponse struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	Reason    string           `json:"reason"`
	ExpiresAt *time.Time       `json:"expires_at"`
	BlockType models.BlockType `json:"block_type"`
}
