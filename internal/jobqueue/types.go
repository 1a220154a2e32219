package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeEnforceBlockState JobType = "enforce_block_state"
	JobTypeRepairBlockState  JobType = "repair_block_state"
	JobTypeAutoBlock         JobType = "auto_block"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusDead       JobStatus = "dead"
)

// DefaultMaxAttempts is the total number of runs a job gets before it is dead-lettered.
const DefaultMaxAttempts = 5

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
}

// NewJob builds a pending job.
func NewJob(jobType JobType, payload map[string]interface{}, maxAttempts int) *Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := time.Now()
	return &Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Status:      JobStatusPending,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
		MaxAttempts: maxAttempts,
	}
}

// Handler runs one attempt of a job.
type Handler func(ctx context.Context, job *Job) error

// Enqueuer schedules background jobs. Implemented by RedisQueue and MemoryQueue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

// Queue is a running job queue with registered handlers.
type Queue interface {
	Enqueuer
	Register(jobType JobType, h Handler)
	Start(ctx context.Context)
	Stop()
	Ping(ctx context.Context) error
}

// BackoffFunc returns the delay before the next attempt, given the attempts made so far.
type BackoffFunc func(attempts int) time.Duration

// ExponentialBackoff waits 15s, 30s, 60s, ... capped at 10 minutes.
func ExponentialBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := 15 * time.Second << uint(attempts-1)
	if d > 10*time.Minute || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job goes straight to the dead letter list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// UserJobPayload addresses a single user; used by enforcement and repair jobs.
type UserJobPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

func (p UserJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id": p.UserID.String(),
	}
}

func UserJobPayloadFromMap(data map[string]interface{}) (*UserJobPayload, error) {
	var payload UserJobPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, errors.New("user_id is required")
	}
	return &payload, nil
}

// AutoBlockJobPayload references the critical flag that triggered an auto-block.
type AutoBlockJobPayload struct {
	FlagID uuid.UUID `json:"flag_id"`
}

func (p AutoBlockJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"flag_id": p.FlagID.String(),
	}
}

func AutoBlockJobPayloadFromMap(data map[string]interface{}) (*AutoBlockJobPayload, error) {
	var payload AutoBlockJobPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	if payload.FlagID == uuid.Nil {
		return nil, errors.New("flag_id is required")
	}
	return &payload, nil
}

func decodePayload(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed records a failed attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.Attempts++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// MarkAsDead marks the job as exhausted
func (j *Job) MarkAsDead() {
	j.Status = JobStatusDead
	j.UpdatedAt = time.Now()
}
