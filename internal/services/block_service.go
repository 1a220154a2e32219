package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconcileMode selects how a block reaches the user record.
type ReconcileMode string

const (
	// ReconcileInline writes is_blocked, blocked_reason and job_portal_access in
	// the same transaction as the block row. Used by admin and auto-block paths.
	ReconcileInline ReconcileMode = "inline"
	// ReconcileDeferred only writes the block row; the enforcement worker
	// applies every side effect. Used by the policy engine.
	ReconcileDeferred ReconcileMode = "deferred"
)

type BlockParams struct {
	UserID        uuid.UUID        `json:"user_id" validate:"required"`
	ReviewerID    *uuid.UUID       `json:"reviewer_id"`
	Reason        string           `json:"reason" validate:"required,max=2000"`
	BlockType     models.BlockType `json:"block_type" validate:"required,oneof=full partial job_portal messaging"`
	DurationDays  *int             `json:"duration_days" validate:"omitempty,min=1,max=3650"`
	FlagID        *uuid.UUID       `json:"flag_id"`
	PolicyVersion string           `json:"policy_version"`
	Mode          ReconcileMode    `json:"-"`
}

type UnblockParams struct {
	UserID     uuid.UUID     `json:"user_id" validate:"required"`
	ReviewerID *uuid.UUID    `json:"reviewer_id"`
	Reason     string        `json:"reason" validate:"max=2000"`
	Mode       ReconcileMode `json:"-"`
}

// BlockStatus is the authoritative block state of a user.
type BlockStatus struct {
	IsBlocked bool              `json:"is_blocked"`
	Block     *models.UserBlock `json:"block"`
}

// BlockService is the single store for user blocks. Every path that creates or
// lifts a block goes through it so the one-active-block rule holds.
type BlockService struct {
	db      *gorm.DB
	jobs    jobqueue.Enqueuer
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBlockService(db *gorm.DB, jobs jobqueue.Enqueuer, m *metrics.Metrics) *BlockService {
	return &BlockService{
		db:      db,
		jobs:    jobs,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Block creates an active block for the user. The user row is locked for the
// duration of the check-then-create.
func (s *BlockService) Block(ctx context.Context, p BlockParams) (*models.UserBlock, error) {
	p.Reason = strings.TrimSpace(p.Reason)
	if p.BlockType == "" {
		p.BlockType = models.BlockTypeFull
	}
	if p.Mode == "" {
		p.Mode = ReconcileInline
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	now := s.now()
	var block models.UserBlock
	expiredStale := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, p.UserID)
		if err != nil {
			return err
		}

		active, err := findActiveBlock(tx, p.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			if !active.IsExpiredAt(now) {
				return ErrAlreadyBlocked
			}
			if _, err := expireBlock(tx, active.ID, now); err != nil {
				return err
			}
			expiredStale = true
		}

		block = models.UserBlock{
			UserID:        p.UserID,
			BlockedByID:   p.ReviewerID,
			FlagID:        p.FlagID,
			BlockType:     p.BlockType,
			Reason:        p.Reason,
			Status:        models.BlockStatusActive,
			DurationDays:  p.DurationDays,
			PolicyVersion: p.PolicyVersion,
		}
		if p.DurationDays != nil {
			expiresAt := now.AddDate(0, 0, *p.DurationDays)
			block.ExpiresAt = &expiresAt
		}

		if err := tx.Create(&block).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyBlocked
			}
			return fmt.Errorf("failed to create block: %w", err)
		}

		if p.Mode == ReconcileInline {
			return applyBlockCache(tx, user, &block)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expiredStale {
		s.metrics.IncrementBlockLifted(string(models.BlockStatusExpired), 1)
	}
	s.metrics.IncrementBlockCreated(string(block.BlockType), string(p.Mode))
	slog.Info("user blocked",
		"user_id", p.UserID.String(),
		"block_id", block.ID.String(),
		"block_type", string(block.BlockType),
		"mode", string(p.Mode),
		"permanent", block.IsPermanent())

	s.scheduleReconcile(ctx, p.UserID)
	return &block, nil
}

// Unblock lifts the user's active block.
func (s *BlockService) Unblock(ctx context.Context, p UnblockParams) (*models.UserBlock, error) {
	p.Reason = strings.TrimSpace(p.Reason)
	if p.Mode == "" {
		p.Mode = ReconcileInline
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	now := s.now()
	var block *models.UserBlock
	expiredInstead := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, p.UserID)
		if err != nil {
			return err
		}

		active, err := findActiveBlock(tx, p.UserID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNotBlocked
		}
		if active.IsExpiredAt(now) {
			if _, err := expireBlock(tx, active.ID, now); err != nil {
				return err
			}
			expiredInstead = true
			return nil
		}

		updates := map[string]interface{}{
			"status":          models.BlockStatusUnblocked,
			"unblocked_by_id": p.ReviewerID,
			"unblocked_at":    now,
			"unblock_reason":  p.Reason,
		}
		if err := tx.Model(active).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to unblock: %w", err)
		}
		active.Status = models.BlockStatusUnblocked
		active.UnblockedByID = p.ReviewerID
		active.UnblockedAt = &now
		active.UnblockReason = p.Reason
		block = active

		if p.Mode == ReconcileInline {
			return restoreBlockCache(tx, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleReconcile(ctx, p.UserID)

	if expiredInstead {
		s.metrics.IncrementBlockLifted(string(models.BlockStatusExpired), 1)
		return nil, ErrNotBlocked
	}

	s.metrics.IncrementBlockLifted(string(models.BlockStatusUnblocked), 1)
	slog.Info("user unblocked",
		"user_id", p.UserID.String(),
		"block_id", block.ID.String(),
		"mode", string(p.Mode))
	return block, nil
}

// ObserveStatus reads the user's block state and reconciles it: an active row
// whose expiry has passed is moved to expired and enforcement is scheduled.
func (s *BlockService) ObserveStatus(ctx context.Context, userID uuid.UUID) (*BlockStatus, error) {
	active, err := findActiveBlock(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return &BlockStatus{IsBlocked: false}, nil
	}

	now := s.now()
	if !active.IsExpiredAt(now) {
		return &BlockStatus{IsBlocked: true, Block: active}, nil
	}

	expired, err := expireBlock(s.db.WithContext(ctx), active.ID, now)
	if err != nil {
		return nil, err
	}
	if expired {
		s.metrics.IncrementBlockLifted(string(models.BlockStatusExpired), 1)
		slog.Info("block expired", "user_id", userID.String(), "block_id", active.ID.String())
		s.scheduleReconcile(ctx, userID)
	}
	return &BlockStatus{IsBlocked: false}, nil
}

// CanAccessJobPortal is false while a full or job_portal block is in force.
func (s *BlockService) CanAccessJobPortal(ctx context.Context, userID uuid.UUID) (bool, error) {
	status, err := s.ObserveStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	if !status.IsBlocked {
		return true, nil
	}
	return !status.Block.RestrictsJobPortal(), nil
}

// ExpireDue moves every active block past its expiry to expired and schedules
// enforcement for the affected users.
func (s *BlockService) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()

	var due []models.UserBlock
	if err := s.db.WithContext(ctx).
		Select("id", "user_id").
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.BlockStatusActive, now).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to find expired blocks: %w", err)
	}

	count := 0
	for _, b := range due {
		expired, err := expireBlock(s.db.WithContext(ctx), b.ID, now)
		if err != nil {
			return count, err
		}
		if expired {
			count++
			s.scheduleReconcile(ctx, b.UserID)
		}
	}

	if count > 0 {
		s.metrics.IncrementBlockLifted(string(models.BlockStatusExpired), count)
		slog.Info("expired blocks swept", "count", count)
	}
	return count, nil
}

// ActiveBlocks returns the user's blocks that are currently in force.
func (s *BlockService) ActiveBlocks(ctx context.Context, userID uuid.UUID) ([]models.UserBlock, error) {
	var blocks []models.UserBlock
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.BlockStatusActive).
		Order("created_at DESC").
		Find(&blocks).Error; err != nil {
		return nil, err
	}

	now := s.now()
	active := blocks[:0]
	for _, b := range blocks {
		if b.IsActiveAt(now) {
			active = append(active, b)
		}
	}
	return active, nil
}

// History returns every block ever placed on the user, newest first.
func (s *BlockService) History(ctx context.Context, userID uuid.UUID, page Page) ([]models.UserBlock, PageInfo, error) {
	var blocks []models.UserBlock
	var total int64

	query := s.db.WithContext(ctx).Model(&models.UserBlock{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	if err := query.Order("created_at DESC").Limit(page.PerPage).Offset(page.Offset()).Find(&blocks).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return blocks, page.Info(total), nil
}

// ListActive returns the currently blocked users with their block rows.
func (s *BlockService) ListActive(ctx context.Context, page Page) ([]models.UserBlock, PageInfo, error) {
	var blocks []models.UserBlock
	var total int64

	query := s.db.WithContext(ctx).Model(&models.UserBlock{}).Where("status = ?", models.BlockStatusActive)
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	if err := query.Preload("User").Order("created_at DESC").Limit(page.PerPage).Offset(page.Offset()).Find(&blocks).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return blocks, page.Info(total), nil
}

func (s *BlockService) scheduleReconcile(ctx context.Context, userID uuid.UUID) {
	if s.jobs == nil {
		return
	}
	payload := jobqueue.UserJobPayload{UserID: userID}.ToMap()
	if _, err := s.jobs.Enqueue(ctx, jobqueue.JobTypeEnforceBlockState, payload); err != nil {
		// The repair sweep picks up users whose reconciliation never ran.
		slog.Error("failed to schedule block enforcement", "user_id", userID.String(), "error", err)
	}
}

// lockUser loads the user row with SELECT ... FOR UPDATE.
func lockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

// findActiveBlock returns the row marked active, which may be logically expired.
func findActiveBlock(tx *gorm.DB, userID uuid.UUID) (*models.UserBlock, error) {
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
	return &block, nil
}

// expireBlock transitions an active row to expired. It reports false when
// another caller already moved the row out of the active state.
func expireBlock(tx *gorm.DB, blockID uuid.UUID, now time.Time) (bool, error) {
	result := tx.Model(&models.UserBlock{}).
		Where("id = ? AND status = ?", blockID, models.BlockStatusActive).
		Updates(map[string]interface{}{
			"status":     models.BlockStatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to expire block: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func applyBlockCache(tx *gorm.DB, user *models.User, block *models.UserBlock) error {
	var updates map[string]interface{}
	switch block.BlockType {
	case models.BlockTypeFull:
		updates = map[string]interface{}{"is_blocked": true, "blocked_reason": block.Reason}
	case models.BlockTypeJobPortal:
		updates = map[string]interface{}{"job_portal_access": false}
	default:
		return nil
	}
	if err := tx.Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update user block status: %w", err)
	}
	return nil
}

func restoreBlockCache(tx *gorm.DB, user *models.User) error {
	err := tx.Model(user).Updates(map[string]interface{}{
		"is_blocked":        false,
		"blocked_reason":    nil,
		"job_portal_access": true,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to restore user status: %w", err)
	}
	return nil
}
