package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGHandler_PersistsErrorsWithJobFields(t *testing.T) {
	db := testutil.NewDB(t)
	h := NewPGHandler(db, slog.LevelError)
	t.Cleanup(h.Stop)

	logger := slog.New(h).With("trace_id", "req-1")
	logger.Warn("ignored")
	logger.Error("job moved to dead letter",
		"job_id", "job-42",
		"job_type", "enforce_block_state",
		"user_id", "user-7",
		"error", errors.New("db unavailable"),
		"attempt", 2)
	h.flush()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "job-42", entry.JobID)
	assert.Equal(t, "enforce_block_state", entry.JobType)
	assert.Equal(t, "req-1", entry.TraceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "user-7", *entry.UserID)
	assert.Equal(t, "db unavailable", entry.Error)
	assert.Contains(t, string(entry.Extra), "attempt")
}

func TestPurgeOlderThan(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.SystemLog{Timestamp: now.AddDate(0, 0, -40), Level: "ERROR", Message: "old"}).Error)
	require.NoError(t, db.Create(&models.SystemLog{Timestamp: now.AddDate(0, 0, -1), Level: "ERROR", Message: "recent"}).Error)

	deleted := PurgeOlderThan(db, now.AddDate(0, 0, -30))
	assert.EqualValues(t, 1, deleted)

	var remaining []models.SystemLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].Message)
}
