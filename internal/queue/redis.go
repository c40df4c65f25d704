package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"exam-backend/internal/shared/server/middleware"
	"exam-backend/internal/shared/telemetry"
)

// RedisQueue is a Redis-list backed job queue. The API process pushes job
// IDs and worker processes block-pop them.
// Library used: github.com/redis/go-redis/v9.
type RedisQueue struct {
	client *redis.Client
	name   string
}

// NewRedisQueue connects a queue client. The connection is verified lazily;
// call Ping to check it eagerly.
func NewRedisQueue(addr, password string, db int, name string) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisQueue{client: client, name: name}
}

// Ping verifies the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Dispatch enqueues a job for the worker pool.
func (q *RedisQueue) Dispatch(ctx context.Context, jobID string) error {
	return q.Enqueue(ctx, NewMessage(jobID, middleware.RequestIDFromStdContext(ctx)))
}

// Enqueue pushes one message onto the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.name, err)
	}
	telemetry.Info("queue.enqueued", map[string]any{"queue": q.name, "job_id": msg.JobID})
	return nil
}

// Dequeue blocks up to timeout for the next message. The second return value
// is false when the wait timed out without a message.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Message, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("brpop %s: %w", q.name, err)
	}
	if len(result) < 2 || result[1] == "" {
		return Message{}, false, nil
	}
	msg, err := Decode([]byte(result[1]))
	if err != nil {
		return Message{}, false, fmt.Errorf("decode message: %w", err)
	}
	return msg, true, nil
}
