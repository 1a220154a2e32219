package enforcement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/policydoc"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	jobs   *testutil.Jobs
	blocks *services.BlockService
	policy *services.PolicyService
	worker *Worker
}

func newFixture(t *testing.T, jobs jobqueue.Enqueuer) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	recorder, _ := jobs.(*testutil.Jobs)
	blocks := services.NewBlockService(db, jobs, nil)
	snapshot := &policydoc.Snapshot{Version: "2024.11.1", Title: "Policy", SeverityLevel: "warning", DefaultBlockReason: "Policy violation"}
	policy := services.NewPolicyService(db, blocks, services.NewNotificationService(db, "", nil), jobs, snapshot, services.PolicyConfig{
		AutoBlockEnabled:      true,
		AutoBlockDurationDays: 30,
	})
	return &fixture{
		db:     db,
		jobs:   recorder,
		blocks: blocks,
		policy: policy,
		worker: NewWorker(db, jobs, policy),
	}
}

func auditEvents(t *testing.T, db *gorm.DB, userID uuid.UUID) []string {
	t.Helper()
	var logs []models.AuditLog
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at").Find(&logs).Error)
	events := make([]string, 0, len(logs))
	for _, l := range logs {
		events = append(events, l.Event)
	}
	return events
}

func TestReconcile_ActiveBlockIsIdempotent(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	user := testutil.CreateUser(t, f.db, models.RoleUser)

	_, err := f.policy.BlockUser(ctx, admin.ID, user.ID, "fake credentials")
	require.NoError(t, err)

	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	f.worker.now = func() time.Time { return now }

	require.NoError(t, f.worker.Reconcile(ctx, user.ID))
	first := testutil.ReloadUser(t, f.db, user.ID)
	assert.Equal(t, models.AccessScopeReadOnly, first.AccessScope)
	require.NotNil(t, first.BlockedAt)
	assert.True(t, first.BlockedAt.Equal(now))

	f.worker.now = func() time.Time { return now.Add(time.Hour) }
	require.NoError(t, f.worker.Reconcile(ctx, user.ID))
	second := testutil.ReloadUser(t, f.db, user.ID)
	assert.Equal(t, first.AccessScope, second.AccessScope)
	require.NotNil(t, second.BlockedAt)
	assert.True(t, second.BlockedAt.Equal(*first.BlockedAt))

	assert.Equal(t, []string{models.AuditEventUserBlocked, models.AuditEventUserBlocked}, auditEvents(t, f.db, user.ID))
}

func TestReconcile_ClearsStateAfterUnblock(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	user := testutil.CreateUser(t, f.db, models.RoleUser)

	_, err := f.policy.BlockUser(ctx, admin.ID, user.ID, "spam")
	require.NoError(t, err)
	require.NoError(t, f.worker.Reconcile(ctx, user.ID))

	_, err = f.policy.UnblockUser(ctx, admin.ID, user.ID, "appeal granted")
	require.NoError(t, err)
	require.NoError(t, f.worker.Reconcile(ctx, user.ID))

	reloaded := testutil.ReloadUser(t, f.db, user.ID)
	assert.Equal(t, models.AccessScopeFull, reloaded.AccessScope)
	assert.Nil(t, reloaded.BlockedAt)

	var last models.AuditLog
	require.NoError(t, f.db.Where("user_id = ? AND event = ?", user.ID, models.AuditEventUserUnblocked).First(&last).Error)
	assert.Contains(t, string(last.Metadata), `"previous_access_scope":"read_only"`)
}

func TestReconcile_ExpiresStaleActiveRow(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleUser)

	past := time.Now().UTC().Add(-time.Hour)
	block := models.UserBlock{
		UserID:    user.ID,
		BlockType: models.BlockTypeFull,
		Reason:    "old",
		Status:    models.BlockStatusActive,
		ExpiresAt: &past,
	}
	require.NoError(t, f.db.Create(&block).Error)

	require.NoError(t, f.worker.Reconcile(ctx, user.ID))

	var stored models.UserBlock
	require.NoError(t, f.db.First(&stored, "id = ?", block.ID).Error)
	assert.Equal(t, models.BlockStatusExpired, stored.Status)
	assert.Equal(t, models.AccessScopeFull, testutil.ReloadUser(t, f.db, user.ID).AccessScope)
	assert.Equal(t, []string{models.AuditEventUserUnblocked}, auditEvents(t, f.db, user.ID))
}

func TestReconcile_UnknownUserIsPermanent(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})

	err := f.worker.Reconcile(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, jobqueue.IsPermanent(err))
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestRepair_DefersWhilePendingAction(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	user := testutil.CreateUser(t, f.db, models.RoleUser)

	_, err := f.policy.BlockUser(ctx, admin.ID, user.ID, "spam")
	require.NoError(t, err)
	pending := models.PendingAction{UserID: user.ID, Action: "profile_export"}
	require.NoError(t, f.db.Create(&pending).Error)
	f.jobs.Reset()

	action, err := f.worker.Repair(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, RepairDeferred, action)
	assert.Empty(t, f.jobs.OfType(jobqueue.JobTypeEnforceBlockState))

	now := time.Now().UTC()
	require.NoError(t, f.db.Model(&pending).Update("completed_at", now).Error)

	action, err = f.worker.Repair(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, RepairScheduled, action)
	assert.Len(t, f.jobs.OfType(jobqueue.JobTypeEnforceBlockState), 1)

	var block models.UserBlock
	require.NoError(t, f.db.Where("user_id = ? AND status = ?", user.ID, models.BlockStatusActive).First(&block).Error)
	assert.NotNil(t, block.AutoReconciledAt)

	action, err = f.worker.Repair(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, RepairNone, action)
}

func TestRepair_StaleBlockedAt(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, models.RoleUser)
	require.NoError(t, f.db.Model(user).Update("blocked_at", time.Now().UTC()).Error)

	action, err := f.worker.Repair(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, RepairScheduled, action)
	assert.Len(t, f.jobs.OfType(jobqueue.JobTypeEnforceBlockState), 1)

	clean := testutil.CreateUser(t, f.db, models.RoleUser)
	action, err = f.worker.Repair(ctx, clean.ID)
	require.NoError(t, err)
	assert.Equal(t, RepairNone, action)
}

func TestRepair_UnknownUserIsPermanent(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})

	_, err := f.worker.Repair(context.Background(), uuid.New())
	assert.True(t, jobqueue.IsPermanent(err))
}

func TestRepair_ConcurrentRunsScheduleOnce(t *testing.T) {
	f := newFixture(t, &testutil.Jobs{})
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, models.RoleAdmin)
	user := testutil.CreateUser(t, f.db, models.RoleUser)

	_, err := f.policy.BlockUser(ctx, admin.ID, user.ID, "spam")
	require.NoError(t, err)
	f.jobs.Reset()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		scheduled int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			action, err := f.worker.Repair(ctx, user.ID)
			assert.NoError(t, err)
			if action == RepairScheduled {
				mu.Lock()
				scheduled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, scheduled)
	assert.Len(t, f.jobs.OfType(jobqueue.JobTypeEnforceBlockState), 1)
}
