// Package testutil provides sqlite-backed fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens an isolated in-memory database with every model migrated.
// A single connection mirrors the per-row lock ordering of postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser inserts a user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	user := &models.User{
		Email: uuid.NewString() + "@example.com",
		Name:  role + " user",
		Role:  role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateJobPosting inserts an open job posting owned by recruiterID.
func CreateJobPosting(t *testing.T, db *gorm.DB, recruiterID uuid.UUID) *models.JobPosting {
	t.Helper()

	job := &models.JobPosting{
		RecruiterID: recruiterID,
		Title:       "Backend Engineer",
		Company:     "Acme",
		Location:    "Remote",
		Status:      models.JobPostingOpen,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

// ReloadUser re-reads a user row.
func ReloadUser(t *testing.T, db *gorm.DB, id uuid.UUID) *models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return &user
}

// Jobs records enqueued jobs without running them.
type Jobs struct {
	mu   sync.Mutex
	jobs []*jobqueue.Job
	Err  error
}

func (r *Jobs) Enqueue(_ context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	job := jobqueue.NewJob(jobType, payload, jobqueue.DefaultMaxAttempts)
	r.jobs = append(r.jobs, job)
	return job, nil
}

// OfType returns recorded jobs with the given type, oldest first.
func (r *Jobs) OfType(jobType jobqueue.JobType) []*jobqueue.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*jobqueue.Job
	for _, j := range r.jobs {
		if j.Type == jobType {
			out = append(out, j)
		}
	}
	return out
}

func (r *Jobs) Reset() {
	r.mu.Lock()
	r.jobs = nil
	r.mu.Unlock()
}
