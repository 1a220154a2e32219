package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const flushBatchSize = 50

// PGHandler is an slog.Handler that batches records at or above minLevel into
// system_logs.
type PGHandler struct {
	db       *gorm.DB
	minLevel slog.Level
	mu       sync.Mutex
	buffer   []models.SystemLog
	ticker   *time.Ticker
	done     chan struct{}
	attrs    []slog.Attr
	root     *PGHandler
}

func NewPGHandler(db *gorm.DB, minLevel slog.Level) *PGHandler {
	h := &PGHandler{
		db:       db,
		minLevel: minLevel,
		buffer:   make([]models.SystemLog, 0, flushBatchSize),
		ticker:   time.NewTicker(5 * time.Second),
		done:     make(chan struct{}),
	}
	h.root = h
	go h.flushLoop()
	return h
}

func (h *PGHandler) flushLoop() {
	for {
		select {
		case <-h.ticker.C:
			h.flush()
		case <-h.done:
			h.flush()
			return
		}
	}
}

func (h *PGHandler) flush() {
	h.mu.Lock()
	if len(h.buffer) == 0 {
		h.mu.Unlock()
		return
	}
	batch := h.buffer
	h.buffer = make([]models.SystemLog, 0, flushBatchSize)
	h.mu.Unlock()

	if err := h.db.CreateInBatches(batch, flushBatchSize).Error; err != nil {
		slog.Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes the remaining buffer and stops the flush loop.
func (h *PGHandler) Stop() {
	h.ticker.Stop()
	close(h.done)
}

func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.root.minLevel
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time.UTC(),
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "job_id":
			entry.JobID = a.Value.String()
		case "job_type":
			entry.JobType = a.Value.String()
		case "trace_id":
			entry.TraceID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.UserID = &s
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			if f, ok := a.Value.Any().(float64); ok {
				entry.LatencyMs = int(math.Round(f))
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	root := h.root
	root.mu.Lock()
	root.buffer = append(root.buffer, entry)
	needFlush := len(root.buffer) >= flushBatchSize
	root.mu.Unlock()

	if needFlush {
		go root.flush()
	}
	return nil
}

// WithAttrs returns a handler that shares the buffer and adds attrs to every record.
func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{db: h.db, attrs: merged, root: h.root}
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	return h
}
