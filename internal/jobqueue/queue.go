package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "job:"
	JobQueueKey      = "job_queue"
	JobProcessingKey = "job_processing"
	JobDelayedKey    = "job_delayed"
	JobDeadLetterKey = "job_dead_letter"
	JobStatsKey      = "job_stats"

	// Jobs expire after 7 days so dead letters stay inspectable for a while.
	JobTTL = 7 * 24 * time.Hour

	stuckJobMaxAge      = 10 * time.Minute
	stuckSweepInterval  = time.Minute
	delayedPollInterval = time.Second
)

// RedisQueue manages background jobs using Redis lists. Delivery is at-least-once:
// a job stays on the processing list until its handler returns, and the stuck
// sweeper requeues jobs abandoned by a crashed worker.
type RedisQueue struct {
	*dispatcher
	client  *redis.Client
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRedisQueue creates a queue on top of an existing client.
func NewRedisQueue(client *redis.Client, opts Options) *RedisQueue {
	return &RedisQueue{
		dispatcher: newDispatcher(opts),
		client:     client,
		stopCh:     make(chan struct{}),
	}
}

// Start starts the job queue workers
func (q *RedisQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})

	slog.Info("starting redis job queue", "workers", q.opts.Workers)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.wg.Add(2)
	go q.delayedPromoter(ctx, delayedPollInterval)
	go q.stuckSweeper(ctx, stuckJobMaxAge, stuckSweepInterval)
}

// Stop stops the job queue workers
func (q *RedisQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	slog.Info("stopping redis job queue")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	slog.Info("redis job queue stopped")
}

// Enqueue adds a new job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	job := NewJob(jobType, payload, q.opts.MaxAttempts)

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	slog.Debug("enqueued job", "job_id", job.ID, "job_type", string(job.Type))
	return job, nil
}

func (q *RedisQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	slog.Debug("job worker started", "worker", id)

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := q.dequeue(ctx)
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				slog.Error("failed to dequeue job", "worker", id, "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		q.process(ctx, job)
	}
}

// dequeue moves the next job from the pending list to the processing list atomically.
func (q *RedisQueue) dequeue(ctx context.Context) (*Job, error) {
	jobID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		q.removeFromProcessing(ctx, jobID)
		return nil, fmt.Errorf("job data not found for ID %s: %w", jobID, err)
	}
	return job, nil
}

func (q *RedisQueue) process(ctx context.Context, job *Job) {
	q.updateJob(ctx, job)

	result, delay := q.run(ctx, job)
	switch result {
	case outcomeCompleted:
		q.updateJobStats(ctx, JobStatusCompleted, 1)
		if err := q.client.Del(ctx, JobKeyPrefix+job.ID).Err(); err != nil {
			slog.Error("failed to remove completed job", "job_id", job.ID, "error", err)
		}
	case outcomeRetry:
		q.updateJob(ctx, job)
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		if err := q.client.ZAdd(ctx, JobDelayedKey, redis.Z{Score: readyAt, Member: job.ID}).Err(); err != nil {
			slog.Error("failed to schedule job retry", "job_id", job.ID, "error", err)
		}
	case outcomeDead:
		q.updateJob(ctx, job)
		q.updateJobStats(ctx, JobStatusDead, 1)
		if err := q.client.LPush(ctx, JobDeadLetterKey, job.ID).Err(); err != nil {
			slog.Error("failed to dead-letter job", "job_id", job.ID, "error", err)
		}
	}
	q.removeFromProcessing(ctx, job.ID)
}

// delayedPromoter moves retries whose backoff has elapsed back onto the pending list.
func (q *RedisQueue) delayedPromoter(ctx context.Context, interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.PromoteDue(ctx, time.Now()); err != nil {
				slog.Error("failed to promote delayed jobs", "error", err)
			}
		}
	}
}

// PromoteDue pushes every delayed job due at now onto the pending list.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, id := range ids {
		// ZRem decides ownership when several instances poll the same set.
		removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// stuckSweeper periodically scans the processing list and requeues jobs stuck for longer than maxAge
func (q *RedisQueue) stuckSweeper(ctx context.Context, maxAge, interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.recoverStuck(ctx, maxAge, time.Now())
		}
	}
}

func (q *RedisQueue) recoverStuck(ctx context.Context, maxAge time.Duration, now time.Time) int {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		slog.Error("stuck sweeper failed to list processing jobs", "error", err)
		return 0
	}

	recovered := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil {
			q.removeFromProcessing(ctx, id)
			continue
		}
		if job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}

		started := job.UpdatedAt
		if job.ProcessedAt != nil && !job.ProcessedAt.IsZero() {
			started = *job.ProcessedAt
		}
		if now.Sub(started) <= maxAge {
			continue
		}

		slog.Warn("recovering stuck job", "job_id", job.ID, "job_type", string(job.Type), "age", now.Sub(started).String())
		job.Status = JobStatusPending
		job.ErrorMsg = "recovered by sweeper"
		job.UpdatedAt = now
		q.updateJob(ctx, job)
		q.removeFromProcessing(ctx, id)
		if err := q.client.RPush(ctx, JobQueueKey, id).Err(); err != nil {
			slog.Error("failed to requeue stuck job", "job_id", id, "error", err)
			continue
		}
		recovered++
	}
	return recovered
}

func (q *RedisQueue) updateJob(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		slog.Error("failed to marshal job", "job_id", job.ID, "error", err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL).Err(); err != nil {
		slog.Error("failed to update job", "job_id", job.ID, "error", err)
	}
}

func (q *RedisQueue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, jobID).Err(); err != nil {
		slog.Error("failed to remove job from processing list", "job_id", jobID, "error", err)
	}
}

func (q *RedisQueue) updateJobStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), delta).Err(); err != nil {
		slog.Error("failed to update job stats", "error", err)
	}
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// GetJob retrieves a job by ID
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobData, err := q.client.Get(ctx, JobKeyPrefix+jobID).Result()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// GetJobStats returns statistics about job statuses
func (q *RedisQueue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[JobStatus]int64, len(stats))
	for status, count := range stats {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			result[JobStatus(status)] = n
		}
	}
	return result, nil
}

// GetQueueSize returns the number of pending jobs
func (q *RedisQueue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetDeadLetterSize returns the number of dead-lettered jobs
func (q *RedisQueue) GetDeadLetterSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobDeadLetterKey).Result()
}
