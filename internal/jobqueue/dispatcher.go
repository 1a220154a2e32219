package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
)

// Options configure retry and dead-letter behavior shared by both queue drivers.
type Options struct {
	Workers     int
	MaxAttempts int
	Backoff     BackoffFunc
	// OnDeadLetter is called once for every job that exhausts its attempts.
	OnDeadLetter func(job *Job, err error)
	Metrics      *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 3
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff == nil {
		o.Backoff = ExponentialBackoff
	}
	return o
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRetry
	outcomeDead
)

// dispatcher routes jobs to registered handlers and decides what happens after a failure.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[JobType]Handler
	opts     Options
}

func newDispatcher(opts Options) *dispatcher {
	return &dispatcher{
		handlers: make(map[JobType]Handler),
		opts:     opts.withDefaults(),
	}
}

// Register binds a handler to a job type, replacing any previous one.
func (d *dispatcher) Register(jobType JobType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobType] = h
}

func (d *dispatcher) handler(jobType JobType) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[jobType]
	return h, ok
}

// run executes one attempt and returns the outcome plus the retry delay.
func (d *dispatcher) run(ctx context.Context, job *Job) (outcome, time.Duration) {
	start := time.Now()
	job.MarkAsProcessing()

	err := d.call(ctx, job)
	if err == nil {
		job.MarkAsCompleted()
		d.opts.Metrics.ObserveJob(string(job.Type), "completed", start)
		slog.Info("job completed", "job_id", job.ID, "job_type", string(job.Type), "attempt", job.Attempts+1)
		return outcomeCompleted, 0
	}

	job.MarkAsFailed(err.Error())
	if !IsPermanent(err) && job.IsRetryable() {
		job.MarkAsRetrying()
		delay := d.opts.Backoff(job.Attempts)
		d.opts.Metrics.ObserveJob(string(job.Type), "retry", start)
		slog.Warn("job failed, retrying",
			"job_id", job.ID, "job_type", string(job.Type),
			"attempt", job.Attempts, "max_attempts", job.MaxAttempts,
			"retry_in", delay.String(), "error", err)
		return outcomeRetry, delay
	}

	job.MarkAsDead()
	d.opts.Metrics.ObserveJob(string(job.Type), "dead", start)
	slog.Error("job moved to dead letter",
		"job_id", job.ID, "job_type", string(job.Type),
		"attempts", job.Attempts, "error", err)
	if d.opts.OnDeadLetter != nil {
		d.opts.OnDeadLetter(job, err)
	}
	return outcomeDead, 0
}

func (d *dispatcher) call(ctx context.Context, job *Job) (err error) {
	h, ok := d.handler(job.Type)
	if !ok {
		return Permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

var errQueueStopped = errors.New("queue stopped")
