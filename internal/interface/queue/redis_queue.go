package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deal-catalog-service/internal/domain/entity"

	"github.com/redis/go-redis/v9"
)

// RedisJobQueue is a reliable list-based queue. Dequeued jobs sit in a
// processing list until acked, so a crashed worker loses nothing.
type RedisJobQueue struct {
	client     *redis.Client
	pending    string
	processing string
}

// NewRedisJobQueue creates a queue stored under the given key prefix
func NewRedisJobQueue(client *redis.Client, name string) *RedisJobQueue {
	return &RedisJobQueue{
		client:     client,
		pending:    name + ":pending",
		processing: name + ":processing",
	}
}

func encodeJob(job entity.TranscodeJob) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Enqueue adds a job to the pending list
func (q *RedisJobQueue) Enqueue(ctx context.Context, job entity.TranscodeJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.pending, payload).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.VideoID, err)
	}
	return nil
}

// Dequeue moves the oldest pending job to the processing list
func (q *RedisJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*entity.TranscodeJob, error) {
	payload, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job entity.TranscodeJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		q.client.LRem(ctx, q.processing, 1, payload)
		return nil, fmt.Errorf("discarded malformed job %q: %w", payload, err)
	}
	return &job, nil
}

// Ack removes a finished job from the processing list
func (q *RedisJobQueue) Ack(ctx context.Context, job entity.TranscodeJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	return q.client.LRem(ctx, q.processing, 1, payload).Err()
}

// Recover moves everything in the processing list back to pending, oldest
// job first in line.
func (q *RedisJobQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.pending, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}
