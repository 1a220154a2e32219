// Package enforcement applies block state to user records asynchronously and
// repairs users whose records drifted from their blocks.
package enforcement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Worker reconciles blocked_at and access_scope with the user's block rows.
// It is the only writer of those two columns.
type Worker struct {
	db     *gorm.DB
	jobs   jobqueue.Enqueuer
	policy *services.PolicyService
	now    func() time.Time
}

func NewWorker(db *gorm.DB, jobs jobqueue.Enqueuer, policy *services.PolicyService) *Worker {
	return &Worker{
		db:     db,
		jobs:   jobs,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register binds the enforcement, repair and auto-block handlers to q.
func (w *Worker) Register(q jobqueue.Queue) {
	q.Register(jobqueue.JobTypeEnforceBlockState, w.handleEnforce)
	q.Register(jobqueue.JobTypeRepairBlockState, w.handleRepair)
	q.Register(jobqueue.JobTypeAutoBlock, w.handleAutoBlock)
}

func (w *Worker) handleEnforce(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.UserJobPayloadFromMap(job.Payload)
	if err != nil {
		return jobqueue.Permanent(fmt.Errorf("invalid enforcement payload: %w", err))
	}
	return w.Reconcile(ctx, payload.UserID)
}

func (w *Worker) handleRepair(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.UserJobPayloadFromMap(job.Payload)
	if err != nil {
		return jobqueue.Permanent(fmt.Errorf("invalid repair payload: %w", err))
	}
	_, err = w.Repair(ctx, payload.UserID)
	return err
}

func (w *Worker) handleAutoBlock(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.AutoBlockJobPayloadFromMap(job.Payload)
	if err != nil {
		return jobqueue.Permanent(fmt.Errorf("invalid auto-block payload: %w", err))
	}
	if _, err := w.policy.ApplyAutoBlock(ctx, payload.FlagID); err != nil {
		if errors.Is(err, services.ErrFlagNotFound) || errors.Is(err, services.ErrUserNotFound) {
			return jobqueue.Permanent(err)
		}
		return err
	}
	return nil
}

// Reconcile applies the user's current block state to the user record and writes
// an audit entry. Running it twice leaves the user in the same state.
func (w *Worker) Reconcile(ctx context.Context, userID uuid.UUID) error {
	now := w.now()

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jobqueue.Permanent(services.ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		block, err := currentBlock(tx, userID, now)
		if err != nil {
			return err
		}

		if block != nil {
			return w.applyBlocked(tx, &user, block, now)
		}
		return w.applyUnblocked(tx, &user)
	})
}

func (w *Worker) applyBlocked(tx *gorm.DB, user *models.User, block *models.UserBlock, now time.Time) error {
	blockedAt := now
	if user.BlockedAt != nil {
		blockedAt = *user.BlockedAt
	}
	if err := tx.Model(user).Updates(map[string]interface{}{
		"blocked_at":   blockedAt,
		"access_scope": models.AccessScopeReadOnly,
	}).Error; err != nil {
		return fmt.Errorf("failed to apply block state: %w", err)
	}

	if err := writeAudit(tx, models.AuditEventUserBlocked, user.ID, map[string]interface{}{
		"block_id":       block.ID.String(),
		"block_type":     block.BlockType,
		"reason":         block.Reason,
		"expires_at":     block.ExpiresAt,
		"policy_version": block.PolicyVersion,
	}); err != nil {
		return err
	}

	slog.Info("block state enforced", "user_id", user.ID.String(), "block_id", block.ID.String())
	return nil
}

func (w *Worker) applyUnblocked(tx *gorm.DB, user *models.User) error {
	previous := map[string]interface{}{
		"previous_blocked_at":   user.BlockedAt,
		"previous_access_scope": user.AccessScope,
	}
	if err := tx.Model(user).Updates(map[string]interface{}{
		"blocked_at":   nil,
		"access_scope": models.AccessScopeFull,
	}).Error; err != nil {
		return fmt.Errorf("failed to clear block state: %w", err)
	}

	if err := writeAudit(tx, models.AuditEventUserUnblocked, user.ID, previous); err != nil {
		return err
	}

	slog.Info("block state cleared", "user_id", user.ID.String())
	return nil
}

// currentBlock returns the user's block in force at now. A row still marked
// active whose expiry has passed is moved to expired first.
func currentBlock(tx *gorm.DB, userID uuid.UUID, now time.Time) (*models.UserBlock, error) {
	var block models.UserBlock
	err := tx.Where("user_id = ? AND status = ?", userID, models.BlockStatusActive).
		Order("created_at DESC").
		First(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active block: %w", err)
	}

	if !block.IsExpiredAt(now) {
		return &block, nil
	}
	if err := tx.Model(&models.UserBlock{}).
		Where("id = ? AND status = ?", block.ID, models.BlockStatusActive).
		Update("status", models.BlockStatusExpired).Error; err != nil {
		return nil, fmt.Errorf("failed to expire block: %w", err)
	}
	return nil, nil
}

func writeAudit(tx *gorm.DB, event string, userID uuid.UUID, metadata map[string]interface{}) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}
	entry := models.AuditLog{
		Event:    event,
		UserID:   userID,
		Metadata: datatypes.JSON(raw),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
