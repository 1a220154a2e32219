package middleware

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RequireRole loads the caller from the users table and allows the request
// only when their role is one of roles. Roles are never read from token claims.
func RequireRole(db *gorm.DB, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Success: false, Error: "Unauthorized", Message: "Authentication required",
			})
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Success: false, Error: "Unauthorized", Message: "User not found",
			})
		}

		if !contains(roles, user.Role) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Success: false, Error: "Forbidden", Message: forbiddenMessage(roles),
			})
		}

		identity.SetUser(c, &user)
		return c.Next()
	}
}

// AdminRequired allows admins only.
func AdminRequired(db *gorm.DB) fiber.Handler {
	return RequireRole(db, models.RoleAdmin)
}

func forbiddenMessage(roles []string) string {
	if len(roles) == 1 && roles[0] == models.RoleAdmin {
		return "Unauthorized. Admin access required."
	}
	return "You do not have permission to perform this action"
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
