package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventFlagCreated         EventType = "flag_created"
	EventCriticalFlagCreated EventType = "critical_flag_created"
	EventAutoBlockApplied    EventType = "auto_block_applied"
	EventMisconductReported  EventType = "misconduct_reported"
)

// Event is an outbound notification about a flag, block or misconduct report.
type Event struct {
	Type          EventType            `json:"type"`
	Severity      models.Severity      `json:"severity,omitempty"`
	ViolationType models.ViolationType `json:"violation_type,omitempty"`
	FlagID        *uuid.UUID           `json:"flag_id,omitempty"`
	BlockID       *uuid.UUID           `json:"block_id,omitempty"`
	ReportID      *uuid.UUID           `json:"report_id,omitempty"`
	EntityType    models.EntityType    `json:"entity_type,omitempty"`
	EntityID      *uuid.UUID           `json:"entity_id,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

// Notifier receives pipeline events. Delivery failures never propagate to the caller.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotificationService fans events out to admins as in-app notifications and,
// when configured, to a Slack-compatible webhook.
type NotificationService struct {
	db         *gorm.DB
	webhookURL string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewNotificationService(db *gorm.DB, webhookURL string, m *metrics.Metrics) *NotificationService {
	return &NotificationService{
		db:         db,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		metrics:    m,
	}
}

func (s *NotificationService) Notify(ctx context.Context, event Event) {
	title, message, priority := describeEvent(event)

	var admins []models.User
	if err := s.db.WithContext(ctx).
		Where("role = ? AND notifications_enabled = ?", models.RoleAdmin, true).
		Find(&admins).Error; err != nil {
		s.fail(event, fmt.Errorf("failed to load admins: %w", err))
		return
	}

	if len(admins) > 0 {
		metadata, _ := json.Marshal(event)
		rows := make([]models.Notification, 0, len(admins))
		for _, admin := range admins {
			rows = append(rows, models.Notification{
				UserID:           admin.ID,
				Title:            title,
				Message:          message,
				NotificationType: string(event.Type),
				Priority:         priority,
				Metadata:         datatypes.JSON(metadata),
			})
		}
		if err := s.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
			s.fail(event, fmt.Errorf("failed to create notifications: %w", err))
			return
		}
	}

	slog.Info("admin notification sent", "event", string(event.Type), "recipients", len(admins))

	if s.webhookURL != "" {
		go s.postWebhook(title + ": " + message)
	}
}

func (s *NotificationService) fail(event Event, err error) {
	s.metrics.IncrementNotificationFailure()
	slog.Error("admin notification failed", "event", string(event.Type), "error", err)
}

func (s *NotificationService) postWebhook(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build alert webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.IncrementNotificationFailure()
		slog.Error("alert webhook failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.metrics.IncrementNotificationFailure()
		slog.Error("alert webhook rejected", "status", resp.StatusCode)
	}
}

func describeEvent(e Event) (title, message, priority string) {
	switch e.Type {
	case EventCriticalFlagCreated:
		return "Critical flag requires review",
			fmt.Sprintf("A %s was flagged for %s and moved to review: %s", e.EntityType, e.ViolationType, e.Reason),
			"urgent"
	case EventFlagCreated:
		return fmt.Sprintf("New %s severity flag", e.Severity),
			fmt.Sprintf("A %s was flagged for %s: %s", e.EntityType, e.ViolationType, e.Reason),
			"high"
	case EventAutoBlockApplied:
		return "User auto-blocked",
			e.Reason,
			"high"
	case EventMisconductReported:
		return "New misconduct report",
			e.Reason,
			"normal"
	default:
		return string(e.Type), e.Reason, "normal"
	}
}
