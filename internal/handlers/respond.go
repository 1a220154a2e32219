package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError maps service errors to status codes and the error envelope.
func respondError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Success: false,
			Error:   "Validation Failed",
			Message: verr.Error(),
			Errors:  verr.Fields,
		})
	case errors.Is(err, services.ErrDuplicateFlag), errors.Is(err, services.ErrAlreadyBlocked):
		return errorJSON(c, fiber.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, services.ErrNotBlocked):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case services.IsNotFound(err):
		return errorJSON(c, fiber.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, services.ErrForbidden):
		return errorJSON(c, fiber.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, identity.ErrUnauthenticated):
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Authentication required")
	default:
		slog.Error("request failed",
			"error", err,
			"action", c.Method()+" "+c.Route().Path,
			"trace_id", c.Locals("requestid"))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal Server Error", "Something went wrong")
	}
}

func errorJSON(c *fiber.Ctx, status int, title, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Success: false, Error: title, Message: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, "Bad Request", message)
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := identity.GetUserID(c)
	if err != nil {
		return uuid.Nil, identity.ErrUnauthenticated
	}
	return id, nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func pageFromQuery(c *fiber.Ctx, defaultPerPage int) services.Page {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", strconv.Itoa(defaultPerPage)))
	return services.NewPage(page, perPage)
}
