package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/internal/logging"
	"github.com/iamjoytank/docker-code-runner/pkg/models"
)

const (
	keyPrefix  = "coderunner:"
	jobKeyFmt  = keyPrefix + "job:%s"
	waitingKey = keyPrefix + "queue:waiting"
	activeKey  = keyPrefix + "queue:active"
)

// Queue is the durable FIFO job queue adapter (C4).
type Queue struct {
	client *redis.Client
}

// New connects to Redis and returns a Queue.
func New(cfg RedisConfig) (*Queue, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Queue{client: client}, nil
}

// Close releases the underlying connection pool.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Ping round-trips the broker connection, used by the health endpoint.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Submit enqueues a new job in the "waiting" state and returns it.
// Every submission gets a fresh random UUID as its id — submitting
// identical code twice always produces two independent jobs.
func (q *Queue) Submit(ctx context.Context, language, code string) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New().String(),
		Language:  language,
		Code:      code,
		State:     models.StateWaiting,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, fmt.Sprintf(jobKeyFmt, job.ID), jobFields(job))
	pipe.LPush(ctx, waitingKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrEnqueue, err)
	}

	return job, nil
}

// Dequeue blocks up to timeout for the next waiting job, atomically
// moving its id from the waiting list into the active list (an
// at-least-once-delivery pattern: a crash between this call and the
// worker's eventual Complete/Fail leaves the id recoverable from the
// active list rather than lost). It returns (nil, nil) if no job
// arrived within timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	id, err := q.client.BRPopLPush(ctx, waitingKey, activeKey, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}

	now := time.Now()
	if err := q.client.HSet(ctx, fmt.Sprintf(jobKeyFmt, id), map[string]interface{}{
		"state":     string(models.StateActive),
		"updatedAt": now.Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return nil, fmt.Errorf("queue: mark active: %w", err)
	}
	if err := q.client.HIncrBy(ctx, fmt.Sprintf(jobKeyFmt, id), "attempts", 1).Err(); err != nil {
		logging.S().Warnw("queue: failed to increment attempts", "jobId", id, "error", err)
	}

	return q.Get(ctx, id)
}

// Complete marks a job completed and publishes its stdout. The job
// id is removed from the active list.
func (q *Queue) Complete(ctx context.Context, id, output string) error {
	return q.finish(ctx, id, map[string]interface{}{
		"state":  string(models.StateCompleted),
		"output": output,
	})
}

// Fail marks a job failed with the given reason. The job id is
// removed from the active list; the failed job's artifact set is
// left on disk by the caller (workspace.Manager.Cleanup is simply
// never invoked for a failed job).
func (q *Queue) Fail(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, map[string]interface{}{
		"state": string(models.StateFailed),
		"error": reason,
	})
}

func (q *Queue) finish(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updatedAt"] = time.Now().Format(time.RFC3339Nano)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, fmt.Sprintf(jobKeyFmt, id), fields)
	pipe.LRem(ctx, activeKey, 0, id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("queue: finish job %s: %w", id, err)
	}
	return nil
}

// Get fetches a job by id. Returns apierr.ErrNotFound if no job hash
// exists under that id; this package never sets an expiry on job
// hashes, so that means the id was never enqueued.
func (q *Queue) Get(ctx context.Context, id string) (*models.Job, error) {
	fields, err := q.client.HGetAll(ctx, fmt.Sprintf(jobKeyFmt, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: job %s", apierr.ErrNotFound, id)
	}
	return jobFromFields(id, fields), nil
}

// RecoverStalled marks every job still listed as active "stalled", so
// a job left in flight by a crashed process shows up as stalled
// instead of active forever. It does not redeliver: the ids stay on
// the active list and nothing is pushed back onto the waiting list.
// It returns the number of jobs marked. Call it once during the
// lifecycle supervisor's startup sequence.
func (q *Queue) RecoverStalled(ctx context.Context) (int, error) {
	ids, err := q.client.LRange(ctx, activeKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: recover stalled: %w", err)
	}

	recovered := 0
	for _, id := range ids {
		if err := q.client.HSet(ctx, fmt.Sprintf(jobKeyFmt, id), map[string]interface{}{
			"state":     string(models.StateStalled),
			"updatedAt": time.Now().Format(time.RFC3339Nano),
		}).Err(); err != nil {
			logging.S().Warnw("queue: failed to mark stalled job", "jobId", id, "error", err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

func jobFields(job *models.Job) map[string]interface{} {
	return map[string]interface{}{
		"language":  job.Language,
		"code":      job.Code,
		"state":     string(job.State),
		"attempts":  0,
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func jobFromFields(id string, fields map[string]string) *models.Job {
	attempts, _ := strconv.Atoi(fields["attempts"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["createdAt"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updatedAt"])

	return &models.Job{
		ID:        id,
		Language:  fields["language"],
		Code:      fields["code"],
		State:     models.JobState(fields["state"]),
		Output:    fields["output"],
		Error:     fields["error"],
		Attempts:  attempts,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}
