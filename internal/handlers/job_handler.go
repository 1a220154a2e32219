package handlers

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// JobHandler serves the job portal. Routes are mounted behind the access gate.
type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobService *services.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

func (h *JobHandler) List(c *fiber.Ctx) error {
	jobs, info, err := h.jobService.ListJobs(c.UserContext(), pageFromQuery(c, services.DefaultPerPage))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"jobs":       jobs,
		"pagination": dto.NewPagination(info),
	})
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid job ID")
	}
	job, err := h.jobService.GetJob(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "job": job})
}
