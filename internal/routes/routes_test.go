package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/policydoc"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type apiEnv struct {
	app       *fiber.App
	db        *gorm.DB
	jobs      *testutil.Jobs
	admin     *models.User
	recruiter *models.User
	member    *models.User
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	db := testutil.NewDB(t)
	jobs := &testutil.Jobs{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cfg := &config.Config{JWTSecret: testSecret}

	snapshot := &policydoc.Snapshot{
		Version:            "2024.11.1",
		Title:              "Career Misconduct Policy",
		Content:            "Be honest and respectful.",
		SeverityLevel:      "warning",
		DefaultBlockReason: "Career misconduct policy violation",
	}

	notifier := services.NewNotificationService(db, "", m)
	blocks := services.NewBlockService(db, jobs, m)
	policy := services.NewPolicyService(db, blocks, notifier, jobs, snapshot, services.PolicyConfig{
		AutoBlockEnabled:      true,
		AutoBlockDurationDays: 30,
		AlertHighSeverity:     true,
	})
	flags := services.NewFlagService(db, blocks, policy, notifier, m)

	app := fiber.New()
	Setup(app, cfg, db, m, blocks,
		handlers.NewHealthHandler(nil),
		handlers.NewFlagHandler(flags),
		handlers.NewUserBlockerHandler(blocks),
		handlers.NewPolicyMisconductHandler(policy),
		handlers.NewCareerMisconductHandler(policy),
		handlers.NewJobHandler(services.NewJobService(db)),
	)

	return &apiEnv{
		app:       app,
		db:        db,
		jobs:      jobs,
		admin:     testutil.CreateUser(t, db, models.RoleAdmin),
		recruiter: testutil.CreateUser(t, db, models.RoleRecruiter),
		member:    testutil.CreateUser(t, db, models.RoleUser),
	}
}

func token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// call sends a JSON request as user (nil for anonymous) and decodes the response body.
func (e *apiEnv) call(t *testing.T, method, path string, user *models.User, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, user.ID))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func TestFlags_CreateAndDuplicate(t *testing.T) {
	e := newAPIEnv(t)
	posting := testutil.CreateJobPosting(t, e.db, e.recruiter.ID)

	body := map[string]interface{}{
		"flagged_entity_type": "JobPosting",
		"flagged_entity_id":   posting.ID,
		"violation_type":      "fake_information",
		"severity":            "high",
		"reason":              "Company does not exist",
	}

	status, resp := e.call(t, http.MethodPost, "/api/v1/flags", e.recruiter, body)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, resp["success"])
	flag := resp["flag"].(map[string]interface{})
	assert.Equal(t, "pending", flag["status"])

	status, resp = e.call(t, http.MethodPost, "/api/v1/flags", e.recruiter, body)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, false, resp["success"])
}

func TestFlags_CreateRequiresRecruiterOrAdmin(t *testing.T) {
	e := newAPIEnv(t)
	posting := testutil.CreateJobPosting(t, e.db, e.recruiter.ID)

	status, _ := e.call(t, http.MethodPost, "/api/v1/flags", e.member, map[string]interface{}{
		"flagged_entity_type": "JobPosting",
		"flagged_entity_id":   posting.ID,
		"violation_type":      "spam",
		"reason":              "spam",
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = e.call(t, http.MethodGet, "/api/v1/flags", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestFlags_ValidationAndNotFound(t *testing.T) {
	e := newAPIEnv(t)

	status, resp := e.call(t, http.MethodPost, "/api/v1/flags", e.admin, map[string]interface{}{
		"flagged_entity_type": "Company",
		"flagged_entity_id":   uuid.New(),
		"violation_type":      "spam",
		"reason":              "spam",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, resp["errors"], "flagged_entity_type")

	status, _ = e.call(t, http.MethodPost, "/api/v1/flags", e.admin, map[string]interface{}{
		"flagged_entity_type": "User",
		"flagged_entity_id":   uuid.New(),
		"violation_type":      "spam",
		"reason":              "spam",
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = e.call(t, http.MethodGet, "/api/v1/flags/"+uuid.NewString(), e.member, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = e.call(t, http.MethodGet, "/api/v1/flags/not-a-uuid", e.member, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestFlags_UpdateIsAdminOnly(t *testing.T) {
	e := newAPIEnv(t)
	posting := testutil.CreateJobPosting(t, e.db, e.recruiter.ID)

	_, resp := e.call(t, http.MethodPost, "/api/v1/flags", e.recruiter, map[string]interface{}{
		"flagged_entity_type": "JobPosting",
		"flagged_entity_id":   posting.ID,
		"violation_type":      "spam",
		"reason":              "duplicate listing",
	})
	flagID := resp["flag"].(map[string]interface{})["id"].(string)

	status, _ := e.call(t, http.MethodPatch, "/api/v1/flags/"+flagID, e.recruiter, map[string]interface{}{"status": "rejected"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, resp = e.call(t, http.MethodPatch, "/api/v1/flags/"+flagID, e.admin, map[string]interface{}{"status": "rejected"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "rejected", resp["flag"].(map[string]interface{})["status"])
}

func TestUserBlocker_BlockConflictAndUnblock(t *testing.T) {
	e := newAPIEnv(t)
	target := testutil.CreateUser(t, e.db, models.RoleUser)
	base := "/api/v1/user_blocker/" + target.ID.String()

	status, _ := e.call(t, http.MethodPost, base+"/block", e.member, map[string]interface{}{"reason": "spam"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, resp := e.call(t, http.MethodPost, base+"/block", e.admin, map[string]interface{}{
		"reason":        "fake job postings",
		"block_type":    "job_portal",
		"duration_days": 30,
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "active", resp["block"].(map[string]interface{})["status"])

	status, _ = e.call(t, http.MethodPost, base+"/block", e.admin, map[string]interface{}{"reason": "again"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, resp = e.call(t, http.MethodGet, base+"/check", e.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, resp["is_blocked"])
	assert.Equal(t, false, resp["can_access_job_portal"])

	status, resp = e.call(t, http.MethodPost, base+"/unblock", e.admin, map[string]interface{}{"reason": "appeal granted"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "unblocked", resp["block"].(map[string]interface{})["status"])

	status, _ = e.call(t, http.MethodPost, base+"/unblock", e.admin, nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, resp = e.call(t, http.MethodGet, base+"/history", e.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, resp["blocks"], 1)
}

func TestCareerMisconducts_BlockIsAccepted(t *testing.T) {
	e := newAPIEnv(t)
	target := testutil.CreateUser(t, e.db, models.RoleUser)

	status, resp := e.call(t, http.MethodPost, "/api/v1/career_misconducts/block", e.admin, map[string]interface{}{
		"target_id": target.ID,
	})
	require.Equal(t, fiber.StatusAccepted, status)
	block := resp["block"].(map[string]interface{})
	assert.Equal(t, "Career misconduct policy violation", block["reason"])
	assert.Len(t, e.jobs.OfType(jobqueue.JobTypeEnforceBlockState), 1)

	status, _ = e.call(t, http.MethodPost, "/api/v1/career_misconducts/block", e.admin, map[string]interface{}{})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = e.call(t, http.MethodPost, "/api/v1/career_misconducts/block", e.admin, map[string]interface{}{
		"target_id": e.admin.ID,
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = e.call(t, http.MethodPost, "/api/v1/career_misconducts/unblock", e.admin, map[string]interface{}{
		"target_id": target.ID,
	})
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Len(t, e.jobs.OfType(jobqueue.JobTypeEnforceBlockState), 2)
}

func TestCareerMisconducts_ReportAndReview(t *testing.T) {
	e := newAPIEnv(t)

	status, _ := e.call(t, http.MethodPost, "/api/v1/career_misconducts", e.member, map[string]interface{}{
		"target_id":      e.recruiter.ID,
		"reason":         "asked for payment to apply",
		"violation_type": "fake_information",
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = e.call(t, http.MethodGet, "/api/v1/policy_misconduct/reports", e.member, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, resp := e.call(t, http.MethodGet, "/api/v1/policy_misconduct/reports", e.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, resp["reports"], 1)
}

func TestJobs_GateAppliesToBlockedUsers(t *testing.T) {
	e := newAPIEnv(t)
	posting := testutil.CreateJobPosting(t, e.db, e.recruiter.ID)

	status, _ := e.call(t, http.MethodGet, "/api/v1/jobs/"+posting.ID.String(), nil, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = e.call(t, http.MethodPost, "/api/v1/user_blocker/"+e.member.ID.String()+"/block", e.admin, map[string]interface{}{
		"reason":     "messaging abuse",
		"block_type": "messaging",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = e.call(t, http.MethodGet, "/api/v1/jobs", e.member, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = e.call(t, http.MethodPost, "/api/v1/user_blocker/"+e.member.ID.String()+"/unblock", e.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = e.call(t, http.MethodPost, "/api/v1/user_blocker/"+e.member.ID.String()+"/block", e.admin, map[string]interface{}{
		"reason":        "fake job postings",
		"block_type":    "job_portal",
		"duration_days": 7,
	})
	require.Equal(t, fiber.StatusOK, status)

	status, resp := e.call(t, http.MethodGet, "/api/v1/jobs", e.member, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Access Restricted", resp["error"])
	assert.Equal(t, "fake job postings", resp["reason"])
	assert.NotNil(t, resp["expires_at"])
}
