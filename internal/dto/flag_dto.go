package dto

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
)

type CreateFlagRequest struct {
	FlaggedEntityType models.EntityType    `json:"flagged_entity_type"`
	FlaggedEntityID   uuid.UUID            `json:"flagged_entity_id"`
	ViolationType     models.ViolationType `json:"violation_type"`
	Severity          models.Severity      `json:"severity"`
	Reason            string               `json:"reason"`
	Details           string               `json:"details"`
	EvidenceURLs      []string             `json:"evidence_urls"`
}

type UpdateFlagRequest struct {
	Status          *models.FlagStatus `json:"status"`
	Severity        *models.Severity   `json:"severity"`
	ResolutionNotes *string            `json:"resolution_notes"`
}

type ResolveFlagRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

type FlagResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Flag    *models.Flag `json:"flag"`
}

type FlagListResponse struct {
	Success    bool               `json:"success"`
	Flags      []models.Flag      `json:"flags"`
	Pagination PaginationResponse `json:"pagination"`
}
