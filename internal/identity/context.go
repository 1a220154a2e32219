// Package identity reads the authenticated caller from the request context.
package identity

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenKey = "user"
	userKey  = "current_user"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// GetUserID extracts the user UUID from the JWT sub claim.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals(tokenKey).(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// IsAuthenticated reports whether a verified token is attached to the request.
func IsAuthenticated(c *fiber.Ctx) bool {
	token, ok := c.Locals(tokenKey).(*jwt.Token)
	return ok && token != nil && token.Valid
}

// SetUser stores the loaded user record for later handlers.
func SetUser(c *fiber.Ctx, user *models.User) {
	c.Locals(userKey, user)
}

// GetUser returns the user loaded by the role middleware, if any.
func GetUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}
