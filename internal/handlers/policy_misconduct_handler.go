package handlers

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PolicyMisconductHandler struct {
	policyService *services.PolicyService
}

func NewPolicyMisconductHandler(policyService *services.PolicyService) *PolicyMisconductHandler {
	return &PolicyMisconductHandler{policyService: policyService}
}

func (h *PolicyMisconductHandler) Show(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	status, err := h.policyService.AcknowledgmentStatus(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	acknowledged := status.AcknowledgedVersion != nil && *status.AcknowledgedVersion == status.CurrentVersion

	return c.JSON(dto.PolicyResponse{
		Success:          true,
		Policy:           h.policyService.Snapshot(),
		UserAcknowledged: acknowledged,
	})
}

func (h *PolicyMisconductHandler) Acknowledge(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	ack, err := h.policyService.Acknowledge(c.UserContext(), userID, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AcknowledgmentResponse{
		Success:        true,
		Message:        "Policy acknowledged successfully",
		ID:             ack.ID,
		PolicyVersion:  ack.PolicyVersion,
		AcknowledgedAt: ack.AcknowledgedAt,
	})
}

func (h *PolicyMisconductHandler) CheckAcknowledgment(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	status, err := h.policyService.AcknowledgmentStatus(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AcknowledgmentCheckResponse{
		Success:                true,
		RequiresAcknowledgment: status.RequiresAcknowledgment,
		CurrentVersion:         status.CurrentVersion,
		AcknowledgedVersion:    status.AcknowledgedVersion,
		AcknowledgedAt:         status.AcknowledgedAt,
	})
}

func (h *PolicyMisconductHandler) Report(c *fiber.Ctx) error {
	reporterID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req dto.ReportMisconductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	report, err := h.policyService.ReportMisconduct(c.UserContext(), services.ReportMisconductParams{
		ReporterID:    reporterID,
		TargetID:      req.TargetID,
		Reason:        req.Reason,
		ViolationType: req.ViolationType,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReportResponse{
		Success: true,
		Message: "Misconduct report submitted successfully",
		Report:  report,
	})
}

// ListReports is the admin review queue for misconduct reports.
func (h *PolicyMisconductHandler) ListReports(c *fiber.Ctx) error {
	reports, info, err := h.policyService.ListReports(c.UserContext(), c.Query("status"), pageFromQuery(c, services.DefaultPerPage))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReportListResponse{Success: true, Reports: reports, Pagination: dto.NewPagination(info)})
}
