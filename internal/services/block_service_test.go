package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestBlock_ConcurrentRequestsCreateSingleActiveBlock(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.blocks.Block(ctx, BlockParams{
				UserID:    user.ID,
				Reason:    "spam",
				BlockType: models.BlockTypeFull,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyBlocked)
	}
	assert.Equal(t, 1, succeeded)

	var active int64
	require.NoError(t, env.db.Model(&models.UserBlock{}).
		Where("user_id = ? AND status = ?", user.ID, models.BlockStatusActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestBlock_TimedBlockExpiresWhenObserved(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser)
	ctx := context.Background()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	env.setNow(start)

	block, err := env.blocks.Block(ctx, BlockParams{
		UserID:       user.ID,
		Reason:       "fake listings",
		BlockType:    models.BlockTypeFull,
		DurationDays: intPtr(30),
	})
	require.NoError(t, err)
	require.NotNil(t, block.ExpiresAt)
	assert.True(t, block.ExpiresAt.Equal(start.AddDate(0, 0, 30)))

	status, err := env.blocks.ObserveStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.IsBlocked)

	env.jobs.Reset()
	env.setNow(start.AddDate(0, 0, 31))

	status, err = env.blocks.ObserveStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.IsBlocked)
	assert.Nil(t, status.Block)

	var stored models.UserBlock
	require.NoError(t, env.db.First(&stored, "id = ?", block.ID).Error)
	assert.Equal(t, models.BlockStatusExpired, stored.Status)
	assert.Len(t, env.jobs.OfType(jobqueue.JobTypeEnforceBlockState), 1)
}

func TestBlock_ReplacesLogicallyExpiredBlock(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser)
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	env.setNow(start)
	first, err := env.blocks.Block(ctx, BlockParams{UserID: user.ID, Reason: "first", DurationDays: intPtr(1)})
	require.NoError(t, err)

	env.setNow(start.AddDate(0, 0, 2))
	second, err := env.blocks.Block(ctx, BlockParams{UserID: user.ID, Reason: "second"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	var old models.UserBlock
	require.NoError(t, env.db.First(&old, "id = ?", first.ID).Error)
	assert.Equal(t, models.BlockStatusExpired, old.Status)
}

func TestBlock_InlineModeUpdatesUserRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	full := testutil.CreateUser(t, env.db, models.RoleUser)
	_, err := env.blocks.Block(ctx, BlockParams{UserID: full.ID, Reason: "harassment", BlockType: models.BlockTypeFull})
	require.NoError(t, err)

	reloaded := testutil.ReloadUser(t, env.db, full.ID)
	assert.True(t, reloaded.IsBlocked)
	require.NotNil(t, reloaded.BlockedReason)
	assert.Equal(t, "harassment", *reloaded.BlockedReason)
	assert.Nil(t, reloaded.BlockedAt)

	portal := testutil.CreateUser(t, env.db, models.RoleUser)
	_, err = env.blocks.Block(ctx, BlockParams{UserID: portal.ID, Reason: "spam", BlockType: models.BlockTypeJobPortal})
	require.NoError(t, err)

	reloaded = testutil.ReloadUser(t, env.db, portal.ID)
	assert.False(t, reloaded.IsBlocked)
	assert.False(t, reloaded.JobPortalAccess)
}

func TestBlock_Validation(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser)

	_, err := env.blocks.Block(context.Background(), BlockParams{UserID: user.ID, Reason: "x", BlockType: "everything"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "block_type")

	_, err = env.blocks.Block(context.Background(), BlockParams{UserID: user.ID, Reason: "  "})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "reason")
}

func TestBlock_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.blocks.Block(context.Background(), BlockParams{UserID: uuid.New(), Reason: "spam"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUnblock_PermanentBlockRecordsReviewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := testutil.CreateUser(t, env.db, models.RoleAdmin)
	user := testutil.CreateUser(t, env.db, models.RoleUser)

	block, err := env.blocks.Block(ctx, BlockParams{UserID: user.ID, ReviewerID: &reviewer.ID, Reason: "fraud"})
	require.NoError(t, err)
	assert.True(t, block.IsPermanent())

	lifted, err := env.blocks.Unblock(ctx, UnblockParams{UserID: user.ID, ReviewerID: &reviewer.ID, Reason: "appeal granted"})
	require.NoError(t, err)
	assert.Equal(t, block.ID, lifted.ID)

	var stored models.UserBlock
	require.NoError(t, env.db.First(&stored, "id = ?", block.ID).Error)
	assert.Equal(t, models.BlockStatusUnblocked, stored.Status)
	require.NotNil(t, stored.UnblockedByID)
	assert.Equal(t, reviewer.ID, *stored.UnblockedByID)
	assert.Equal(t, "appeal granted", stored.UnblockReason)
	assert.NotNil(t, stored.UnblockedAt)

	reloaded := testutil.ReloadUser(t, env.db, user.ID)
	assert.False(t, reloaded.IsBlocked)
	assert.Nil(t, reloaded.BlockedReason)
	assert.True(t, reloaded.JobPortalAccess)

	status, err := env.blocks.ObserveStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.IsBlocked)
}

func TestUnblock_WithoutActiveBlock(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser)

	_, err := env.blocks.Unblock(context.Background(), UnblockParams{UserID: user.ID})
	assert.ErrorIs(t, err, ErrNotBlocked)
}

func TestUnblock_LogicallyExpiredBlockIsNotBlocked(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, models.RoleUser)
	ctx := context.Background()

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	env.setNow(start)
	block, err := env.blocks.Block(ctx, BlockParams{UserID: user.ID, Reason: "spam", DurationDays: intPtr(7)})
	require.NoError(t, err)

	env.setNow(start.AddDate(0, 0, 8))
	_, err = env.blocks.Unblock(ctx, UnblockParams{UserID: user.ID, Reason: "late appeal"})
	assert.ErrorIs(t, err, ErrNotBlocked)

	var stored models.UserBlock
	require.NoError(t, env.db.First(&stored, "id = ?", block.ID).Error)
	assert.Equal(t, models.BlockStatusExpired, stored.Status)
}

func TestCanAccessJobPortal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		blockType models.BlockType
		allowed   bool
	}{
		{models.BlockTypeFull, false},
		{models.BlockTypeJobPortal, false},
		{models.BlockTypeMessaging, true},
		{models.BlockTypePartial, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.blockType), func(t *testing.T) {
			user := testutil.CreateUser(t, env.db, models.RoleUser)
			_, err := env.blocks.Block(ctx, BlockParams{UserID: user.ID, Reason: "r", BlockType: tc.blockType})
			require.NoError(t, err)

			allowed, err := env.blocks.CanAccessJobPortal(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, allowed)
		})
	}

	unblocked := testutil.CreateUser(t, env.db, models.RoleUser)
	allowed, err := env.blocks.CanAccessJobPortal(ctx, unblocked.ID)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestExpireDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	env.setNow(start)

	short := testutil.CreateUser(t, env.db, models.RoleUser)
	long := testutil.CreateUser(t, env.db, models.RoleUser)
	permanent := testutil.CreateUser(t, env.db, models.RoleUser)

	_, err := env.blocks.Block(ctx, BlockParams{UserID: short.ID, Reason: "r", DurationDays: intPtr(1)})
	require.NoError(t, err)
	_, err = env.blocks.Block(ctx, BlockParams{UserID: long.ID, Reason: "r", DurationDays: intPtr(90)})
	require.NoError(t, err)
	_, err = env.blocks.Block(ctx, BlockParams{UserID: permanent.ID, Reason: "r"})
	require.NoError(t, err)

	env.jobs.Reset()
	env.setNow(start.AddDate(0, 0, 5))

	n, err := env.blocks.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs := env.jobs.OfType(jobqueue.JobTypeEnforceBlockState)
	require.Len(t, jobs, 1)
	assert.Equal(t, short.ID.String(), jobs[0].Payload["user_id"])

	n, err = env.blocks.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistoryAndListActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, models.RoleUser)

	_, err := env.blocks.Block(ctx, BlockParams{UserID: user.ID, Reason: "first"})
	require.NoError(t, err)
	_, err = env.blocks.Unblock(ctx, UnblockParams{UserID: user.ID})
	require.NoError(t, err)
	_, err = env.blocks.Block(ctx, BlockParams{UserID: user.ID, Reason: "second"})
	require.NoError(t, err)

	history, info, err := env.blocks.History(ctx, user.ID, NewPage(1, 10))
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.EqualValues(t, 2, info.TotalCount)

	active, info, err := env.blocks.ListActive(ctx, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.EqualValues(t, 1, info.TotalCount)
	assert.Equal(t, "second", active[0].Reason)
	require.NotNil(t, active[0].User)
	assert.Equal(t, user.ID, active[0].User.ID)
}
