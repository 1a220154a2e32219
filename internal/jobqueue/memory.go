package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue runs jobs in-process. It backs local development and tests;
// jobs do not survive a restart.
type MemoryQueue struct {
	*dispatcher
	jobs    chan *Job
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dead    []*Job
	timers  map[*time.Timer]*Job
}

// NewMemoryQueue creates an in-process queue with the given buffer size.
func NewMemoryQueue(buffer int, opts Options) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &MemoryQueue{
		dispatcher: newDispatcher(opts),
		jobs:       make(chan *Job, buffer),
		stopCh:     make(chan struct{}),
		timers:     make(map[*time.Timer]*Job),
	}
}

// Enqueue adds a job to the queue. It blocks while the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	select {
	case <-q.stopCh:
		return nil, errQueueStopped
	default:
	}

	job := NewJob(jobType, payload, q.opts.MaxAttempts)
	select {
	case q.jobs <- job:
		slog.Debug("enqueued job", "job_id", job.ID, "job_type", string(job.Type))
		return job, nil
	case <-q.stopCh:
		return nil, errQueueStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start launches the worker pool.
func (q *MemoryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true

	slog.Info("starting in-memory job queue", "workers", q.opts.Workers)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop stops the workers and cancels scheduled retries. Jobs still waiting
// for a retry or sitting in the buffer are moved to the dead letters.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	for t, job := range q.timers {
		if t.Stop() {
			q.abandonLocked(job, "retry cancelled")
		}
	}
	q.timers = map[*time.Timer]*Job{}
	q.mu.Unlock()

	q.wg.Wait()

	q.mu.Lock()
drain:
	for {
		select {
		case job := <-q.jobs:
			q.abandonLocked(job, "not started")
		default:
			break drain
		}
	}
	q.mu.Unlock()
	slog.Info("in-memory job queue stopped", "dead_letters", len(q.dead))
}

func (q *MemoryQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *MemoryQueue) process(ctx context.Context, job *Job) {
	switch result, delay := q.run(ctx, job); result {
	case outcomeRetry:
		q.scheduleRetry(job, delay)
	case outcomeDead:
		q.mu.Lock()
		q.dead = append(q.dead, job)
		q.mu.Unlock()
	}
}

func (q *MemoryQueue) scheduleRetry(job *Job, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		q.abandonLocked(job, "retry not scheduled")
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()

		select {
		case <-q.stopCh:
			q.abandon(job, "retry cancelled")
			return
		default:
		}
		select {
		case q.jobs <- job:
		case <-q.stopCh:
			q.abandon(job, "retry cancelled")
		}
	})
	q.timers[t] = job
}

func (q *MemoryQueue) abandon(job *Job, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.abandonLocked(job, reason)
}

// abandonLocked dead-letters a job the stopped queue will never run.
// q.mu must be held.
func (q *MemoryQueue) abandonLocked(job *Job, reason string) {
	job.ErrorMsg = fmt.Sprintf("%s: %v", reason, errQueueStopped)
	job.MarkAsDead()
	q.dead = append(q.dead, job)
	slog.Warn("job dropped by stopped queue",
		"job_id", job.ID, "job_type", string(job.Type), "attempts", job.Attempts, "reason", reason)
}

// Ping fails once the queue has been stopped.
func (q *MemoryQueue) Ping(context.Context) error {
	select {
	case <-q.stopCh:
		return errQueueStopped
	default:
		return nil
	}
}

// DeadLetters returns the jobs that exhausted their attempts or were dropped
// by Stop.
func (q *MemoryQueue) DeadLetters() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.dead))
	copy(out, q.dead)
	return out
}

// Pending returns the number of buffered jobs.
func (q *MemoryQueue) Pending() int {
	return len(q.jobs)
}
