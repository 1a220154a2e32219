package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateFlagParams struct {
	ReporterID    uuid.UUID            `json:"reporter_id" validate:"required"`
	EntityType    models.EntityType    `json:"flagged_entity_type" validate:"required,oneof=JobPosting User Resume"`
	EntityID      uuid.UUID            `json:"flagged_entity_id" validate:"required"`
	ViolationType models.ViolationType `json:"violation_type" validate:"required,oneof=spam inappropriate_content fake_information harassment copyright_violation privacy_violation other"`
	Severity      models.Severity      `json:"severity" validate:"required,oneof=low medium high critical"`
	Reason        string               `json:"reason" validate:"required,max=5000"`
	Details       string               `json:"details" validate:"max=10000"`
	EvidenceURLs  []string             `json:"evidence_urls" validate:"max=20,dive,url"`
}

type UpdateFlagParams struct {
	Status          *models.FlagStatus `json:"status" validate:"omitempty,oneof=pending under_review resolved rejected"`
	Severity        *models.Severity   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	ResolutionNotes *string            `json:"resolution_notes" validate:"omitempty,max=5000"`
}

type FlagFilter struct {
	Status     string
	Severity   string
	EntityType string
}

type FlagStatistics struct {
	TotalFlags      int64            `json:"total_flags"`
	PendingFlags    int64            `json:"pending_flags"`
	UnderReview     int64            `json:"under_review_flags"`
	ResolvedFlags   int64            `json:"resolved_flags"`
	RejectedFlags   int64            `json:"rejected_flags"`
	ByStatus        map[string]int64 `json:"by_status"`
	BySeverity      map[string]int64 `json:"by_severity"`
	ByEntityType    map[string]int64 `json:"by_entity_type"`
	ByViolationType map[string]int64 `json:"by_violation_type"`
}

// FlagService stores flags and applies the policy's escalation rules to new ones.
type FlagService struct {
	db       *gorm.DB
	blocks   *BlockService
	policy   *PolicyService
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewFlagService(db *gorm.DB, blocks *BlockService, policy *PolicyService, notifier Notifier, m *metrics.Metrics) *FlagService {
	return &FlagService{
		db:       db,
		blocks:   blocks,
		policy:   policy,
		notifier: notifier,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new flag. Critical flags are moved to under_review and the
// critical notification is sent before Create returns.
func (s *FlagService) Create(ctx context.Context, p CreateFlagParams) (*models.Flag, error) {
	p.Reason = strings.TrimSpace(p.Reason)
	if p.Severity == "" {
		p.Severity = models.SeverityMedium
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	escalation := s.policy.EscalationFor(p.Severity, p.EntityType)
	var flag models.Flag

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := entityExists(tx, p.EntityType, p.EntityID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrEntityNotFound
		}

		var duplicates int64
		if err := tx.Model(&models.Flag{}).
			Where("flagged_by_id = ? AND flagged_entity_type = ? AND flagged_entity_id = ?", p.ReporterID, p.EntityType, p.EntityID).
			Where("status IN ?", []models.FlagStatus{models.FlagStatusPending, models.FlagStatusResolved}).
			Count(&duplicates).Error; err != nil {
			return fmt.Errorf("failed to check duplicate flags: %w", err)
		}
		if duplicates > 0 {
			return ErrDuplicateFlag
		}

		flag = models.Flag{
			FlaggedByID:       p.ReporterID,
			FlaggedEntityType: p.EntityType,
			FlaggedEntityID:   p.EntityID,
			ViolationType:     p.ViolationType,
			Severity:          p.Severity,
			Status:            models.FlagStatusPending,
			Reason:            p.Reason,
			Details:           p.Details,
			EvidenceURLs:      p.EvidenceURLs,
		}
		if err := tx.Create(&flag).Error; err != nil {
			return fmt.Errorf("failed to create flag: %w", err)
		}

		if escalation.UnderReview {
			if err := tx.Model(&flag).Update("status", models.FlagStatusUnderReview).Error; err != nil {
				return fmt.Errorf("failed to escalate flag: %w", err)
			}
			flag.Status = models.FlagStatusUnderReview
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementFlagCreated(string(flag.Severity))
	slog.Info("flag created",
		"flag_id", flag.ID.String(),
		"entity_type", string(flag.FlaggedEntityType),
		"entity_id", flag.FlaggedEntityID.String(),
		"severity", string(flag.Severity),
		"status", string(flag.Status))

	event := Event{
		Severity:      flag.Severity,
		ViolationType: flag.ViolationType,
		FlagID:        &flag.ID,
		EntityType:    flag.FlaggedEntityType,
		EntityID:      &flag.FlaggedEntityID,
		Reason:        flag.Reason,
	}
	if escalation.NotifyCritical {
		event.Type = EventCriticalFlagCreated
		s.notifier.Notify(ctx, event)
	}
	if escalation.NotifyCreated {
		event.Type = EventFlagCreated
		s.notifier.Notify(ctx, event)
	}
	if escalation.ScheduleAutoBlock {
		s.policy.ScheduleAutoBlock(ctx, &flag)
	}
	return &flag, nil
}

func (s *FlagService) Get(ctx context.Context, id uuid.UUID) (*models.Flag, error) {
	var flag models.Flag
	err := s.db.WithContext(ctx).Preload("FlaggedBy").First(&flag, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flag: %w", err)
	}
	return &flag, nil
}

func (s *FlagService) List(ctx context.Context, filter FlagFilter, page Page) ([]models.Flag, PageInfo, error) {
	var flags []models.Flag
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Flag{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.EntityType != "" {
		query = query.Where("flagged_entity_type = ?", filter.EntityType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	if err := query.Preload("FlaggedBy").
		Order("created_at DESC").
		Limit(page.PerPage).
		Offset(page.Offset()).
		Find(&flags).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return flags, page.Info(total), nil
}

// Update patches a flag. Moving it to resolved or rejected records the reviewer,
// and moving it to resolved runs the resolution actions.
func (s *FlagService) Update(ctx context.Context, id, reviewerID uuid.UUID, p UpdateFlagParams) (*models.Flag, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	flag, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := flag.Status

	updates := map[string]interface{}{}
	if p.Severity != nil {
		updates["severity"] = *p.Severity
		flag.Severity = *p.Severity
	}
	if p.ResolutionNotes != nil {
		updates["resolution_notes"] = *p.ResolutionNotes
		flag.ResolutionNotes = *p.ResolutionNotes
	}
	if p.Status != nil {
		updates["status"] = *p.Status
		flag.Status = *p.Status
		if *p.Status == models.FlagStatusResolved || *p.Status == models.FlagStatusRejected {
			now := s.now()
			updates["resolved_by_id"] = reviewerID
			updates["resolved_at"] = now
			flag.ResolvedByID = &reviewerID
			flag.ResolvedAt = &now
		} else {
			// Re-opened flags carry no resolver.
			updates["resolved_by_id"] = nil
			updates["resolved_at"] = nil
			flag.ResolvedByID = nil
			flag.ResolvedAt = nil
		}
	}
	if len(updates) == 0 {
		return flag, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Flag{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update flag: %w", err)
	}

	if flag.Status == models.FlagStatusResolved && previous != models.FlagStatusResolved {
		s.applyResolution(ctx, flag, reviewerID)
	}
	return flag, nil
}

// Resolve marks the flag resolved and runs the resolution actions named in notes.
func (s *FlagService) Resolve(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*models.Flag, error) {
	status := models.FlagStatusResolved
	return s.Update(ctx, id, reviewerID, UpdateFlagParams{Status: &status, ResolutionNotes: &notes})
}

// applyResolution performs the entity actions requested in the resolution notes:
// "remove_job" takes a job posting down, "block_user" blocks the flagged user.
func (s *FlagService) applyResolution(ctx context.Context, flag *models.Flag, reviewerID uuid.UUID) {
	notes := flag.ResolutionNotes

	switch flag.FlaggedEntityType {
	case models.EntityJobPosting:
		if !strings.Contains(notes, "remove_job") {
			return
		}
		err := s.db.WithContext(ctx).Model(&models.JobPosting{}).
			Where("id = ?", flag.FlaggedEntityID).
			Updates(map[string]interface{}{
				"status":         models.JobPostingRemoved,
				"removed_reason": notes,
			}).Error
		if err != nil {
			slog.Error("failed to remove flagged job posting", "flag_id", flag.ID.String(), "error", err)
			return
		}
		slog.Info("flagged job posting removed", "flag_id", flag.ID.String(), "job_id", flag.FlaggedEntityID.String())

	case models.EntityUser:
		if !strings.Contains(notes, "block_user") {
			return
		}
		_, err := s.blocks.Block(ctx, BlockParams{
			UserID:     flag.FlaggedEntityID,
			ReviewerID: &reviewerID,
			Reason:     flag.Reason,
			BlockType:  models.BlockTypeFull,
			FlagID:     &flag.ID,
			Mode:       ReconcileInline,
		})
		if err != nil && !errors.Is(err, ErrAlreadyBlocked) {
			slog.Error("failed to block flagged user", "flag_id", flag.ID.String(), "error", err)
		}
	}
}

// Statistics aggregates flag counts for the moderation dashboard.
func (s *FlagService) Statistics(ctx context.Context) (*FlagStatistics, error) {
	db := s.db.WithContext(ctx)
	stats := &FlagStatistics{}

	var err error
	if stats.ByStatus, err = countFlagsBy(db, "status"); err != nil {
		return nil, err
	}
	if stats.BySeverity, err = countFlagsBy(db, "severity"); err != nil {
		return nil, err
	}
	if stats.ByEntityType, err = countFlagsBy(db, "flagged_entity_type"); err != nil {
		return nil, err
	}
	if stats.ByViolationType, err = countFlagsBy(db, "violation_type"); err != nil {
		return nil, err
	}

	for _, n := range stats.ByStatus {
		stats.TotalFlags += n
	}
	stats.PendingFlags = stats.ByStatus[string(models.FlagStatusPending)]
	stats.UnderReview = stats.ByStatus[string(models.FlagStatusUnderReview)]
	stats.ResolvedFlags = stats.ByStatus[string(models.FlagStatusResolved)]
	stats.RejectedFlags = stats.ByStatus[string(models.FlagStatusRejected)]
	return stats, nil
}

// countFlagsBy groups flags by a fixed column name.
func countFlagsBy(db *gorm.DB, column string) (map[string]int64, error) {
	var rows []struct {
		GroupKey string
		Count    int64
	}
	if err := db.Model(&models.Flag{}).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count flags by %s: %w", column, err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Count
	}
	return out, nil
}
