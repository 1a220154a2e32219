package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobService serves the job portal listings behind the access gate.
type JobService struct {
	db *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{db: db}
}

// ListJobs returns open job postings, newest first.
func (s *JobService) ListJobs(ctx context.Context, page Page) ([]models.JobPosting, PageInfo, error) {
	var jobs []models.JobPosting
	var total int64

	query := s.db.WithContext(ctx).Model(&models.JobPosting{}).Where("status = ?", models.JobPostingOpen)
	if err := query.Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	if err := query.Order("created_at DESC").Limit(page.PerPage).Offset(page.Offset()).Find(&jobs).Error; err != nil {
		return nil, PageInfo{}, err
	}
	return jobs, page.Info(total), nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.JobPosting, error) {
	var job models.JobPosting
	err := s.db.WithContext(ctx).Where("id = ? AND status <> ?", id, models.JobPostingRemoved).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job posting: %w", err)
	}
	return &job, nil
}
