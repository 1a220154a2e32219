package handlers

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CareerMisconductHandler serves the policy engine endpoints. Blocks placed
// here are applied to the user record by the enforcement worker, so block and
// unblock answer 202.
type CareerMisconductHandler struct {
	policyService *services.PolicyService
}

func NewCareerMisconductHandler(policyService *services.PolicyService) *CareerMisconductHandler {
	return &CareerMisconductHandler{policyService: policyService}
}

func (h *CareerMisconductHandler) Index(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	overview, err := h.policyService.Overview(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.CareerMisconductOverviewResponse{
		Success: true,
		Policy:  overview.Policy,
		Blocks:  overview.ActiveBlocks,
	})
}

func (h *CareerMisconductHandler) Create(c *fiber.Ctx) error {
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

func (h *CareerMisconductHandler) Block(c *fiber.Ctx) error {
	reviewerID, req, ok, err := h.parseTarget(c)
	if !ok {
		return err
	}

	block, err := h.policyService.BlockUser(c.UserContext(), reviewerID, req.TargetID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.BlockResponse{
		Success: true,
		Message: "Block recorded; enforcement scheduled",
		Block:   block,
	})
}

func (h *CareerMisconductHandler) Unblock(c *fiber.Ctx) error {
	reviewerID, req, ok, err := h.parseTarget(c)
	if !ok {
		return err
	}

	block, err := h.policyService.UnblockUser(c.UserContext(), reviewerID, req.TargetID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.BlockResponse{
		Success: true,
		Message: "Unblock recorded; enforcement scheduled",
		Block:   block,
	})
}

// parseTarget reads the caller and the target_id body field. When ok is false
// the error response has been written and err is what the handler returns.
func (h *CareerMisconductHandler) parseTarget(c *fiber.Ctx) (reviewerID uuid.UUID, req dto.PolicyTargetRequest, ok bool, err error) {
	reviewerID, err = currentUserID(c)
	if err != nil {
		return uuid.Nil, req, false, respondError(c, err)
	}
	if err := c.BodyParser(&req); err != nil {
		return uuid.Nil, req, false, badRequest(c, "Invalid request body")
	}
	if req.TargetID == uuid.Nil {
		return uuid.Nil, req, false, respondError(c, &services.ValidationError{
			Fields: map[string]string{"target_id": "is required"},
		})
	}
	return reviewerID, req, true, nil
}
