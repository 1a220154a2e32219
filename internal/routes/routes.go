package routes

import (
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	m *metrics.Metrics,
	gate middleware.BlockChecker,
	healthHandler *handlers.HealthHandler,
	flagHandler *handlers.FlagHandler,
	blockerHandler *handlers.UserBlockerHandler,
	policyHandler *handlers.PolicyMisconductHandler,
	careerHandler *handlers.CareerMisconductHandler,
	jobHandler *handlers.JobHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/health", healthHandler.Check)

	v1 := api.Group("/v1")

	// Job portal: anonymous browsing allowed, blocked users are turned away
	jobs := v1.Group("/jobs", middleware.OptionalJWT(cfg), middleware.JobPortalGate(gate, m))
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:id", jobHandler.Get)

	auth := middleware.JWTProtected(cfg)
	admin := middleware.AdminRequired(db)

	// Flags
	flags := v1.Group("/flags", auth)
	flags.Get("/", flagHandler.List)
	flags.Get("/statistics", flagHandler.Statistics)
	flags.Get("/:id", flagHandler.Get)
	flags.Post("/", middleware.RequireRole(db, models.RoleRecruiter, models.RoleAdmin), flagHandler.Create)
	flags.Patch("/:id/resolve", admin, flagHandler.Resolve)
	flags.Patch("/:id", admin, flagHandler.Update)

	// Policy document, acknowledgments and misconduct reports
	policy := v1.Group("/policy_misconduct", auth)
	policy.Get("/", policyHandler.Show)
	policy.Post("/acknowledge", policyHandler.Acknowledge)
	policy.Get("/check_acknowledgment", policyHandler.CheckAcknowledgment)
	policy.Post("/report", policyHandler.Report)
	policy.Get("/reports", admin, policyHandler.ListReports)

	// Direct block management (admin)
	blocker := v1.Group("/user_blocker", auth, admin)
	blocker.Get("/", blockerHandler.List)
	blocker.Get("/:user_id/check", blockerHandler.Check)
	blocker.Post("/:user_id/block", blockerHandler.Block)
	blocker.Post("/:user_id/unblock", blockerHandler.Unblock)
	blocker.Get("/:user_id/history", blockerHandler.History)

	// Policy-driven enforcement
	career := v1.Group("/career_misconducts", auth)
	career.Get("/", careerHandler.Index)
	career.Post("/", careerHandler.Create)
	career.Post("/block", admin, careerHandler.Block)
	career.Post("/unblock", admin, careerHandler.Unblock)
}
