package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// Enqueue stores the job as a Hash and adds it to the queue's pending
// Sorted Set.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("governor/redis: enqueue exists check: %w", err)
	}
	if exists > 0 {
		return governor.ErrJobAlreadyExists
	}

	cp := *j
	cp.State = job.StatePending
	if cp.EnqueuedAt.IsZero() {
		cp.EnqueuedAt = time.Now().UTC()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(&cp))
	pipe.ZAdd(ctx, pendingKey(cp.Queue), goredis.Z{
		Score:  jobScore(cp.Priority, cp.EnqueuedAt),
		Member: jID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: enqueue job: %w", err)
	}
	return nil
}

// DequeueEligible atomically claims up to maxCount pending jobs,
// ordered by priority descending then enqueue time ascending.
func (s *Store) DequeueEligible(ctx context.Context, queueName string, maxCount int) ([]*job.Job, error) {
	count := int64(maxCount)
	if maxCount <= 0 {
		var err error
		count, err = s.client.ZCard(ctx, pendingKey(queueName)).Result()
		if err != nil {
			return nil, fmt.Errorf("governor/redis: dequeue zcard: %w", err)
		}
	}

	members, err := s.client.ZPopMin(ctx, pendingKey(queueName), count).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: dequeue zpopmin: %w", err)
	}

	jobs := make([]*job.Job, 0, len(members))
	for _, z := range members {
		jID, ok := z.Member.(string)
		if !ok {
			continue
		}
		key := jobKey(jID)
		if err := s.client.HSet(ctx, key, "state", string(job.StateRunning)).Err(); err != nil {
			return nil, fmt.Errorf("governor/redis: dequeue claim: %w", err)
		}
		j, err := s.getJobByKey(ctx, key)
		if err != nil {
			// Hash expired between pop and load; drop the orphan ID.
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Ack marks a claimed job as terminally completed.
func (s *Store) Ack(ctx context.Context, jobID id.JobID) error {
	return s.setJobState(ctx, jobID, job.StateCompleted, "")
}

// Nack marks a claimed job as failed with the given reason.
func (s *Store) Nack(ctx context.Context, jobID id.JobID, reason job.FailureReason) error {
	return s.setJobState(ctx, jobID, job.StateFailed, reason)
}

// Requeue returns a claimed job to pending. The original enqueue time
// is restored to the Sorted Set score so the job keeps its FIFO
// position.
func (s *Store) Requeue(ctx context.Context, jobID id.JobID) error {
	key := jobKey(jobID.String())
	j, err := s.getJobByKey(ctx, key)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "state", string(job.StatePending), "reason", "")
	pipe.ZAdd(ctx, pendingKey(j.Queue), goredis.Z{
		Score:  jobScore(j.Priority, j.EnqueuedAt),
		Member: jobID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: requeue job: %w", err)
	}
	return nil
}

// Depth returns the number of pending jobs on a queue.
func (s *Store) Depth(ctx context.Context, queueName string) (int, error) {
	n, err := s.client.ZCard(ctx, pendingKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("governor/redis: depth zcard: %w", err)
	}
	return int(n), nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// ── helpers ──

func (s *Store) setJobState(ctx context.Context, jobID id.JobID, state job.State, reason job.FailureReason) error {
	key := jobKey(jobID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("governor/redis: job exists check: %w", err)
	}
	if exists == 0 {
		return governor.ErrJobNotFound
	}
	err = s.client.HSet(ctx, key, "state", string(state), "reason", string(reason)).Err()
	if err != nil {
		return fmt.Errorf("governor/redis: set job state: %w", err)
	}
	return nil
}

// jobScore computes a Sorted Set score. Priority is negated so higher
// priority sorts first; a small time fraction keeps FIFO order within
// the same priority.
func jobScore(priority int, enqueuedAt time.Time) float64 {
	return float64(-priority) + float64(enqueuedAt.UnixMilli())/1e15
}

func jobToMap(j *job.Job) map[string]interface{} {
	return map[string]interface{}{
		"id":          j.ID.String(),
		"name":        j.Name,
		"queue":       j.Queue,
		"payload":     string(j.Payload),
		"priority":    strconv.Itoa(j.Priority),
		"state":       string(j.State),
		"enqueued_at": j.EnqueuedAt.Format(time.RFC3339Nano),
		"last_error":  j.LastError,
		"reason":      string(j.Reason),
	}
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, governor.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("governor/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])
	enqueuedAt, _ := time.Parse(time.RFC3339Nano, m["enqueued_at"])

	return &job.Job{
		ID:         jID,
		Name:       m["name"],
		Queue:      m["queue"],
		Payload:    []byte(m["payload"]),
		Priority:   priority,
		State:      job.State(m["state"]),
		EnqueuedAt: enqueuedAt,
		LastError:  m["last_error"],
		Reason:     job.FailureReason(m["reason"]),
	}, nil
}
