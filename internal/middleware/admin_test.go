package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)
	recruiter := testutil.CreateUser(t, db, models.RoleRecruiter)
	member := testutil.CreateUser(t, db, models.RoleUser)

	cfg := &config.Config{JWTSecret: testSecret}
	app := fiber.New()
	app.Use(JWTProtected(cfg))
	app.Get("/admin", AdminRequired(db), func(c *fiber.Ctx) error {
		return c.SendString(identity.GetUser(c).Role)
	})
	app.Get("/flaggers", RequireRole(db, models.RoleRecruiter, models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := []struct {
		name   string
		path   string
		userID uuid.UUID
		want   int
	}{
		{"admin on admin route", "/admin", admin.ID, fiber.StatusOK},
		{"recruiter on admin route", "/admin", recruiter.ID, fiber.StatusForbidden},
		{"recruiter on flagger route", "/flaggers", recruiter.ID, fiber.StatusNoContent},
		{"member on flagger route", "/flaggers", member.ID, fiber.StatusForbidden},
		{"unknown user", "/admin", uuid.New(), fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, tc.userID))
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
