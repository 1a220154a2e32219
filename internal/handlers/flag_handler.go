package handlers

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type FlagHandler struct {
	flagService *services.FlagService
}

func NewFlagHandler(flagService *services.FlagService) *FlagHandler {
	return &FlagHandler{flagService: flagService}
}

func (h *FlagHandler) List(c *fiber.Ctx) error {
	filter := services.FlagFilter{
		Status:     c.Query("status"),
		Severity:   c.Query("severity"),
		EntityType: c.Query("entity_type"),
	}
	flags, info, err := h.flagService.List(c.UserContext(), filter, pageFromQuery(c, services.DefaultPerPage))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FlagListResponse{Success: true, Flags: flags, Pagination: dto.NewPagination(info)})
}

func (h *FlagHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.flagService.Statistics(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "statistics": stats})
}

func (h *FlagHandler) Get(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid flag ID")
	}
	flag, err := h.flagService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FlagResponse{Success: true, Flag: flag})
}

func (h *FlagHandler) Create(c *fiber.Ctx) error {
	reporterID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req dto.CreateFlagRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	flag, err := h.flagService.Create(c.UserContext(), services.CreateFlagParams{
		ReporterID:    reporterID,
		EntityType:    req.FlaggedEntityType,
		EntityID:      req.FlaggedEntityID,
		ViolationType: req.ViolationType,
		Severity:      req.Severity,
		Reason:        req.Reason,
		Details:       req.Details,
		EvidenceURLs:  req.EvidenceURLs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FlagResponse{
		Success: true,
		Message: "Content flagged successfully. Our team will review it shortly.",
		Flag:    flag,
	})
}

func (h *FlagHandler) Update(c *fiber.Ctx) error {
	reviewerID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid flag ID")
	}

	var req dto.UpdateFlagRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	flag, err := h.flagService.Update(c.UserContext(), id, reviewerID, services.UpdateFlagParams{
		Status:          req.Status,
		Severity:        req.Severity,
		ResolutionNotes: req.ResolutionNotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FlagResponse{Success: true, Message: "Flag updated successfully", Flag: flag})
}

func (h *FlagHandler) Resolve(c *fiber.Ctx) error {
	reviewerID, err := currentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid flag ID")
	}

	var req dto.ResolveFlagRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	flag, err := h.flagService.Resolve(c.UserContext(), id, reviewerID, req.ResolutionNotes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FlagResponse{Success: true, Message: "Flag resolved successfully", Flag: flag})
}
