package enforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RepairAction is what a repair run decided for a user.
type RepairAction string

const (
	RepairNone      RepairAction = "none"
	RepairDeferred  RepairAction = "deferred"
	RepairScheduled RepairAction = "scheduled"
)

// Repair re-enqueues enforcement for a user whose record may not reflect their
// block state. Users with outstanding pending actions are left for a later sweep.
// The checks run under a lock on the user row; the job is enqueued after commit.
func (w *Worker) Repair(ctx context.Context, userID uuid.UUID) (RepairAction, error) {
	action := RepairNone

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jobqueue.Permanent(services.ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		var block models.UserBlock
		err = tx.Where("user_id = ? AND status = ?", userID, models.BlockStatusActive).First(&block).Error
		hasBlock := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load active block: %w", err)
		}

		if !hasBlock {
			if user.BlockedAt != nil {
				action = RepairScheduled
			}
			return nil
		}

		var pending int64
		if err := tx.Model(&models.PendingAction{}).
			Where("user_id = ? AND completed_at IS NULL", userID).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("failed to check pending actions: %w", err)
		}
		if pending > 0 {
			slog.Info("block repair deferred", "user_id", userID.String(), "pending_actions", pending)
			action = RepairDeferred
			return nil
		}

		if block.AutoReconciledAt != nil {
			return nil
		}

		result := tx.Model(&models.UserBlock{}).
			Where("id = ? AND auto_reconciled_at IS NULL", block.ID).
			Update("auto_reconciled_at", w.now())
		if result.Error != nil {
			return fmt.Errorf("failed to stamp block: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			action = RepairScheduled
		}
		return nil
	})
	if err != nil {
		return RepairNone, err
	}

	if action == RepairScheduled {
		return action, w.enqueueEnforcement(ctx, userID)
	}
	return action, nil
}

// RepairCandidates lists users with an active block that was never repaired and
// users whose blocked_at outlived their last active block.
func (w *Worker) RepairCandidates(ctx context.Context) ([]uuid.UUID, error) {
	db := w.db.WithContext(ctx)

	var unreconciled []uuid.UUID
	if err := db.Model(&models.UserBlock{}).
		Where("status = ? AND auto_reconciled_at IS NULL", models.BlockStatusActive).
		Pluck("user_id", &unreconciled).Error; err != nil {
		return nil, fmt.Errorf("failed to find unreconciled blocks: %w", err)
	}

	var stale []uuid.UUID
	if err := db.Model(&models.User{}).
		Where("blocked_at IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM user_blocks WHERE user_blocks.user_id = users.id AND user_blocks.status = ?)", models.BlockStatusActive).
		Pluck("id", &stale).Error; err != nil {
		return nil, fmt.Errorf("failed to find stale block state: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(unreconciled)+len(stale))
	ids := make([]uuid.UUID, 0, len(unreconciled)+len(stale))
	for _, id := range append(unreconciled, stale...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (w *Worker) enqueueEnforcement(ctx context.Context, userID uuid.UUID) error {
	payload := jobqueue.UserJobPayload{UserID: userID}.ToMap()
	if _, err := w.jobs.Enqueue(ctx, jobqueue.JobTypeEnforceBlockState, payload); err != nil {
		return fmt.Errorf("failed to enqueue enforcement: %w", err)
	}
	return nil
}
