package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// BlockChecker reads a user's authoritative block state.
type BlockChecker interface {
	ObserveStatus(ctx context.Context, userID uuid.UUID) (*services.BlockStatus, error)
}

// JobPortalGate denies job portal requests from users under a full or
// job_portal block. Anonymous requests pass through, and so does every request
// whose block lookup fails.
func JobPortalGate(checker BlockChecker, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !identity.IsAuthenticated(c) {
			m.IncrementGateDecision("anonymous")
			return c.Next()
		}

		userID, err := identity.GetUserID(c)
		if err != nil {
			slog.Error("job portal gate: unreadable identity", "error", err, "trace_id", requestID(c))
			m.IncrementGateDecision("fail_open")
			return c.Next()
		}

		status, err := observe(c.UserContext(), checker, userID)
		if err != nil {
			slog.Error("job portal gate: block lookup failed",
				"user_id", userID.String(), "error", err, "trace_id", requestID(c))
			m.IncrementGateDecision("fail_open")
			return c.Next()
		}

		if status.IsBlocked && status.Block != nil && status.Block.RestrictsJobPortal() {
			m.IncrementGateDecision("denied")
			return c.Status(fiber.StatusForbidden).JSON(dto.AccessRestrictedResponse{
				Success:   false,
				Error:     "Access Restricted",
				Message:   "Your access to the job portal has been restricted due to policy violations.",
				Reason:    status.Block.Reason,
				ExpiresAt: status.Block.ExpiresAt,
				BlockType: status.Block.BlockType,
			})
		}

		m.IncrementGateDecision("allowed")
		return c.Next()
	}
}

// observe isolates the lookup so a panic inside it fails open without
// swallowing panics from downstream handlers.
func observe(ctx context.Context, checker BlockChecker, userID uuid.UUID) (status *services.BlockStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("block lookup panic: %v", r)
		}
	}()
	return checker.ObserveStatus(ctx, userID)
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
