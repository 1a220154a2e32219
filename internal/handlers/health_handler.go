package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// QueuePinger reports whether the job queue backend is reachable.
type QueuePinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	queue QueuePinger
}

func NewHealthHandler(queue QueuePinger) *HealthHandler {
	return &HealthHandler{queue: queue}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	queueStatus := "ok"
	if h.queue != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.queue.Ping(ctx); err != nil {
			queueStatus = "unhealthy: " + err.Error()
		}
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Queue:     queueStatus,
	})
}
