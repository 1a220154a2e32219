package enforcement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
)

// Scheduler runs the periodic expiry and repair sweeps.
type Scheduler struct {
	blocks         *services.BlockService
	worker         *Worker
	jobs           jobqueue.Enqueuer
	expiryInterval time.Duration
	repairInterval time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

func NewScheduler(blocks *services.BlockService, worker *Worker, jobs jobqueue.Enqueuer, expiryInterval, repairInterval time.Duration) *Scheduler {
	if expiryInterval <= 0 {
		expiryInterval = 10 * time.Minute
	}
	if repairInterval <= 0 {
		repairInterval = 15 * time.Minute
	}
	return &Scheduler{
		blocks:         blocks,
		worker:         worker,
		jobs:           jobs,
		expiryInterval: expiryInterval,
		repairInterval: repairInterval,
		stopCh:         make(chan struct{}),
	}
}

// Start launches both sweeps. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	slog.Info("starting enforcement scheduler",
		"expiry_interval", s.expiryInterval.String(),
		"repair_interval", s.repairInterval.String())

	s.wg.Add(2)
	go s.loop(ctx, s.expiryInterval, s.SweepExpired)
	go s.loop(ctx, s.repairInterval, s.SweepRepairs)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("enforcement scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context) (int, error)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := sweep(ctx); err != nil {
				slog.Error("enforcement sweep failed", "error", err)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepExpired expires every block past its expiry.
func (s *Scheduler) SweepExpired(ctx context.Context) (int, error) {
	return s.blocks.ExpireDue(ctx)
}

// SweepRepairs enqueues a repair job for every repair candidate.
func (s *Scheduler) SweepRepairs(ctx context.Context) (int, error) {
	ids, err := s.worker.RepairCandidates(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		payload := jobqueue.UserJobPayload{UserID: id}.ToMap()
		if _, err := s.jobs.Enqueue(ctx, jobqueue.JobTypeRepairBlockState, payload); err != nil {
			slog.Error("failed to enqueue repair", "user_id", id.String(), "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		slog.Info("repair sweep enqueued jobs", "count", enqueued)
	}
	return enqueued, nil
}
