package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/policydoc"
	"github.com/google/uuid"
)

type ReportMisconductRequest struct {
	TargetID      uuid.UUID            `json:"target_id"`
	Reason        string               `json:"reason"`
	ViolationType models.ViolationType `json:"violation_type"`
}

// PolicyTargetRequest names the user a career misconduct block or unblock applies to.
type PolicyTargetRequest struct {
	TargetID uuid.UUID `json:"target_id"`
	Reason   string    `json:"reason"`
}

type PolicyResponse struct {
	Success          bool                `json:"success"`
	Policy           *policydoc.Snapshot `json:"policy"`
	UserAcknowledged bool                `json:"user_acknowledged"`
}

type AcknowledgmentResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	ID             uuid.UUID `json:"id"`
	PolicyVersion  string    `json:"policy_version"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

type AcknowledgmentCheckResponse struct {
	Success                bool       `json:"success"`
	RequiresAcknowledgment bool       `json:"requires_acknowledgment"`
	CurrentVersion         string     `json:"current_version"`
	AcknowledgedVersion    *string    `json:"acknowledged_version"`
	AcknowledgedAt         *time.Time `json:"acknowledged_at"`
}

type ReportResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Report  *models.MisconductReport `json:"report"`
}

type ReportListResponse struct {
	Success    bool                      `json:"success"`
	Reports    []models.MisconductReport `json:"reports"`
	Pagination PaginationResponse        `json:"pagination"`
}

type CareerMisconductOverviewResponse struct {
	Success bool                `json:"success"`
	Policy  *policydoc.Snapshot `json:"policy"`
	Blocks  []models.UserBlock  `json:"blocks"`
}
