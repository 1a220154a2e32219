package handlers

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// UserBlockerHandler serves the admin blocking endpoints. Blocks placed here
// update the user's cached block columns in the same transaction.
type UserBlockerHandler struct {
	blockService *services.BlockService
}

func NewUserBlockerHandler(blockService *services.BlockService) *UserBlockerHandler {
	return &UserBlockerHandler{blockService: blockService}
}

func (h *UserBlockerHandler) List(c *fiber.Ctx) error {
	blocks, info, err := h.blockService.ListActive(c.UserContext(), pageFromQuery(c, services.DefaultPerPage))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BlockListResponse{Success: true, Blocks: blocks, Pagination: dto.NewPagination(info)})
}

func (h *UserBlockerHandler) Check(c *fiber.Ctx) error {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	status, err := h.blockService.ObserveStatus(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BlockCheckResponse{
		Success:            true,
		IsBlocked:          status.IsBlocked,
		Block:              status.Block,
		CanAccessJobPortal: !status.IsBlocked || !status.Block.RestrictsJobPortal(),
	})
}

func (h *UserBlockerHandler) Block(c *fiber.Ctx) error {
	reviewerID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	var req dto.BlockUserRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if req.Reason == "" {
		req.Reason = "Policy violation"
	}

	block, err := h.blockService.Block(c.UserContext(), services.BlockParams{
		UserID:       userID,
		ReviewerID:   &reviewerID,
		Reason:       req.Reason,
		BlockType:    req.BlockType,
		DurationDays: req.DurationDays,
		FlagID:       req.FlagID,
		Mode:         services.ReconcileInline,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BlockResponse{Success: true, Message: "User blocked successfully", Block: block})
}

func (h *UserBlockerHandler) Unblock(c *fiber.Ctx) error {
	reviewerID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	var req dto.UnblockUserRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	block, err := h.blockService.Unblock(c.UserContext(), services.UnblockParams{
		UserID:     userID,
		ReviewerID: &reviewerID,
		Reason:     req.Reason,
		Mode:       services.ReconcileInline,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BlockResponse{Success: true, Message: "User unblocked successfully", Block: block})
}

func (h *UserBlockerHandler) History(c *fiber.Ctx) error {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	blocks, info, err := h.blockService.History(c.UserContext(), userID, pageFromQuery(c, 10))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BlockListResponse{Success: true, Blocks: blocks, Pagination: dto.NewPagination(info)})
}
