package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/policydoc"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PolicyConfig holds the enforcement switches the policy engine is built with.
type PolicyConfig struct {
	AutoBlockEnabled      bool
	AutoBlockDurationDays int
	AlertHighSeverity     bool
}

// Escalation is what the policy requires after a flag is stored.
type Escalation struct {
	UnderReview       bool
	NotifyCritical    bool
	NotifyCreated     bool
	ScheduleAutoBlock bool
}

type ReportMisconductParams struct {
	ReporterID    uuid.UUID            `json:"reporter_id" validate:"required"`
	TargetID      uuid.UUID            `json:"target_id" validate:"required"`
	Reason        string               `json:"reason" validate:"required,max=5000"`
	ViolationType models.ViolationType `json:"violation_type" validate:"omitempty,oneof=spam inappropriate_content fake_information harassment copyright_violation privacy_violation other"`
}

// PolicyOverview is the policy document together with the caller's active blocks.
type PolicyOverview struct {
	Policy       *policydoc.Snapshot `json:"policy"`
	ActiveBlocks []models.UserBlock  `json:"active_blocks"`
}

type AcknowledgmentStatus struct {
	RequiresAcknowledgment bool       `json:"requires_acknowledgment"`
	CurrentVersion         string     `json:"current_version"`
	AcknowledgedVersion    *string    `json:"acknowledged_version"`
	AcknowledgedAt         *time.Time `json:"acknowledged_at"`
}

// PolicyService applies the career misconduct policy: escalation rules,
// misconduct reports, policy-driven blocks and auto-blocking.
type PolicyService struct {
	db       *gorm.DB
	blocks   *BlockService
	notifier Notifier
	jobs     jobqueue.Enqueuer
	snapshot *policydoc.Snapshot
	cfg      PolicyConfig
	now      func() time.Time
}

func NewPolicyService(db *gorm.DB, blocks *BlockService, notifier Notifier, jobs jobqueue.Enqueuer, snapshot *policydoc.Snapshot, cfg PolicyConfig) *PolicyService {
	if cfg.AutoBlockDurationDays <= 0 {
		cfg.AutoBlockDurationDays = 30
	}
	return &PolicyService{
		db:       db,
		blocks:   blocks,
		notifier: notifier,
		jobs:     jobs,
		snapshot: snapshot,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *PolicyService) Snapshot() *policydoc.Snapshot {
	return s.snapshot
}

// EscalationFor returns the escalation rules for a new flag.
func (s *PolicyService) EscalationFor(severity models.Severity, entityType models.EntityType) Escalation {
	switch severity {
	case models.SeverityCritical:
		return Escalation{
			UnderReview:       true,
			NotifyCritical:    true,
			NotifyCreated:     s.cfg.AlertHighSeverity,
			ScheduleAutoBlock: s.cfg.AutoBlockEnabled && entityType == models.EntityUser,
		}
	case models.SeverityHigh:
		return Escalation{NotifyCreated: s.cfg.AlertHighSeverity}
	default:
		return Escalation{}
	}
}

// ReportMisconduct records a misconduct report against a user under the current policy version.
func (s *PolicyService) ReportMisconduct(ctx context.Context, p ReportMisconductParams) (*models.MisconductReport, error) {
	p.Reason = strings.TrimSpace(p.Reason)
	if p.ViolationType == "" {
		p.ViolationType = models.ViolationOther
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	if p.ReporterID == p.TargetID {
		return nil, newValidationError("target_id", "cannot report yourself")
	}

	if err := s.ensureUserExists(ctx, p.TargetID); err != nil {
		return nil, err
	}

	report := models.MisconductReport{
		ReporterID:    p.ReporterID,
		TargetID:      p.TargetID,
		Reason:        p.Reason,
		ViolationType: p.ViolationType,
		Status:        models.FlagStatusPending,
		PolicyVersion: s.snapshot.Version,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to create misconduct report: %w", err)
	}

	slog.Info("misconduct reported",
		"report_id", report.ID.String(),
		"target_id", p.TargetID.String(),
		"policy_version", report.PolicyVersion)

	s.notifier.Notify(ctx, Event{
		Type:          EventMisconductReported,
		ViolationType: report.ViolationType,
		ReportID:      &report.ID,
		EntityType:    models.EntityUser,
		EntityID:      &report.TargetID,
		Reason:        report.Reason,
	})
	return &report, nil
}

// ListReports returns misconduct reports, newest first.
func (s *PolicyService) ListReports(ctx context.Context, status string, page Page) ([]models.MisconductReport, PageInfo, error) {
	var reports []models.MisconductReport
	var total int64

	query := s.db.WithContext(ctx).Model(&models.MisconductReport{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	if err := query.Order("created_at DESC").Limit(page.PerPage).Offset(page.Offset()).Find(&reports).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return reports, page.Info(total), nil
}

// BlockUser places a permanent full block under the current policy version.
// Side effects on the user record are left to the enforcement worker.
func (s *PolicyService) BlockUser(ctx context.Context, reviewerID, targetID uuid.UUID, reason string) (*models.UserBlock, error) {
	if reviewerID == targetID {
		return nil, newValidationError("target_id", "cannot block yourself")
	}
	if strings.TrimSpace(reason) == "" {
		reason = s.snapshot.DefaultBlockReason
	}

	return s.blocks.Block(ctx, BlockParams{
		UserID:        targetID,
		ReviewerID:    &reviewerID,
		Reason:        reason,
		BlockType:     models.BlockTypeFull,
		PolicyVersion: s.snapshot.Version,
		Mode:          ReconcileDeferred,
	})
}

// UnblockUser lifts the target's active block and schedules enforcement.
func (s *PolicyService) UnblockUser(ctx context.Context, reviewerID, targetID uuid.UUID, reason string) (*models.UserBlock, error) {
	return s.blocks.Unblock(ctx, UnblockParams{
		UserID:     targetID,
		ReviewerID: &reviewerID,
		Reason:     reason,
		Mode:       ReconcileDeferred,
	})
}

// Overview returns the policy document and the user's active blocks.
func (s *PolicyService) Overview(ctx context.Context, userID uuid.UUID) (*PolicyOverview, error) {
	blocks, err := s.blocks.ActiveBlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PolicyOverview{Policy: s.snapshot, ActiveBlocks: blocks}, nil
}

// ScheduleAutoBlock enqueues the auto-block job for a critical flag.
func (s *PolicyService) ScheduleAutoBlock(ctx context.Context, flag *models.Flag) {
	if s.jobs == nil {
		return
	}
	payload := jobqueue.AutoBlockJobPayload{FlagID: flag.ID}.ToMap()
	if _, err := s.jobs.Enqueue(ctx, jobqueue.JobTypeAutoBlock, payload); err != nil {
		slog.Error("failed to schedule auto-block", "flag_id", flag.ID.String(), "error", err)
		return
	}
	slog.Info("auto-block scheduled", "flag_id", flag.ID.String(), "user_id", flag.FlaggedEntityID.String())
}

// ApplyAutoBlock blocks the user targeted by a critical flag. It returns a nil
// block when there is nothing to do: the flag targets another entity kind,
// auto-blocking is off, or the user is already blocked.
func (s *PolicyService) ApplyAutoBlock(ctx context.Context, flagID uuid.UUID) (*models.UserBlock, error) {
	var flag models.Flag
	if err := s.db.WithContext(ctx).First(&flag, "id = ?", flagID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlagNotFound
		}
		return nil, fmt.Errorf("failed to load flag: %w", err)
	}
	if flag.FlaggedEntityType != models.EntityUser || !s.cfg.AutoBlockEnabled {
		return nil, nil
	}

	days := s.cfg.AutoBlockDurationDays
	block, err := s.blocks.Block(ctx, BlockParams{
		UserID:        flag.FlaggedEntityID,
		Reason:        fmt.Sprintf("Auto-blocked due to critical flag: %s", flag.ViolationType),
		BlockType:     models.BlockTypeFull,
		DurationDays:  &days,
		FlagID:        &flag.ID,
		PolicyVersion: s.snapshot.Version,
		Mode:          ReconcileInline,
	})
	if errors.Is(err, ErrAlreadyBlocked) {
		slog.Info("auto-block skipped, user already blocked", "flag_id", flag.ID.String(), "user_id", flag.FlaggedEntityID.String())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, Event{
		Type:          EventAutoBlockApplied,
		Severity:      flag.Severity,
		ViolationType: flag.ViolationType,
		FlagID:        &flag.ID,
		BlockID:       &block.ID,
		EntityType:    models.EntityUser,
		EntityID:      &flag.FlaggedEntityID,
		Reason:        block.Reason,
	})
	return block, nil
}

// Acknowledge records that the user accepted the current policy version.
// Acknowledging the same version twice keeps the first record.
func (s *PolicyService) Acknowledge(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) (*models.PolicyAcknowledgment, error) {
	ack := models.PolicyAcknowledgment{}
	err := s.db.WithContext(ctx).
		Where(models.PolicyAcknowledgment{UserID: userID, PolicyVersion: s.snapshot.Version}).
		Attrs(models.PolicyAcknowledgment{
			AcknowledgedAt: s.now(),
			IPAddress:      ipAddress,
			UserAgent:      truncate(userAgent, 500),
		}).
		FirstOrCreate(&ack).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record acknowledgment: %w", err)
	}
	return &ack, nil
}

// AcknowledgmentStatus reports whether the user still has to acknowledge the current policy.
func (s *PolicyService) AcknowledgmentStatus(ctx context.Context, userID uuid.UUID) (*AcknowledgmentStatus, error) {
	status := &AcknowledgmentStatus{CurrentVersion: s.snapshot.Version}

	var last models.PolicyAcknowledgment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("acknowledged_at DESC").First(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load acknowledgment: %w", err)
	default:
		status.AcknowledgedVersion = &last.PolicyVersion
		status.AcknowledgedAt = &last.AcknowledgedAt
	}

	var current int64
	if err := s.db.WithContext(ctx).Model(&models.PolicyAcknowledgment{}).
		Where("user_id = ? AND policy_version = ?", userID, s.snapshot.Version).
		Count(&current).Error; err != nil {
		return nil, fmt.Errorf("failed to check acknowledgment: %w", err)
	}
	status.RequiresAcknowledgment = s.snapshot.RequiresAcknowledgment && current == 0
	return status, nil
}

// AcknowledgmentHistory lists the user's acknowledgments, newest first.
func (s *PolicyService) AcknowledgmentHistory(ctx context.Context, userID uuid.UUID) ([]models.PolicyAcknowledgment, error) {
	var acks []models.PolicyAcknowledgment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("acknowledged_at DESC").Find(&acks).Error; err != nil {
		return nil, err
	}
	return acks, nil
}

func (s *PolicyService) ensureUserExists(ctx context.Context, userID uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
