package middleware

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtConfig(cfg, nil))
}

// OptionalJWT attaches the token when a valid one is sent. Requests without a
// token, or with an invalid or expired one, continue as anonymous.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	conf := jwtConfig(cfg, func(c *fiber.Ctx) bool {
		return c.Get(fiber.HeaderAuthorization) == ""
	})
	conf.ErrorHandler = func(c *fiber.Ctx, _ error) error {
		return c.Next()
	}
	return jwtware.New(conf)
}

func jwtConfig(cfg *config.Config, filter func(*fiber.Ctx) bool) jwtware.Config {
	return jwtware.Config{
		Filter:     filter,
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Success: false,
				Error:   "Unauthorized",
				Message: "Unauthorized: invalid or expired token",
			})
		},
	}
}
