package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"applymate/internal/config"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
)

// Task is one queued application request. The worker loads the full
// records from its collaborators by these IDs.
type Task struct {
	ApplicationID string    `json:"application_id"`
	JobURL        string    `json:"job_url"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// Handler processes one dequeued task.
type Handler func(ctx context.Context, task Task) error

// TaskQueue is a redis-list backed work queue for application tasks.
type TaskQueue struct {
	client *redis.Client
	key    string
	logger types.Logger
}

// NewTaskQueue connects to redis and binds the queue key from config.
func NewTaskQueue(cfg *config.Config) *TaskQueue {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}

	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	return &TaskQueue{
		client: redis.NewClient(opts),
		key:    cfg.Redis.Queue,
		logger: logging.GetGlobalLogger(),
	}
}

// Ping tests the redis connection.
func (q *TaskQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue pushes a task onto the queue.
func (q *TaskQueue) Enqueue(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug("Task enqueued", map[string]interface{}{
		"application_id": task.ApplicationID,
	})
	return nil
}

// Consume blocks on the queue and feeds tasks to the handler until the
// context is cancelled. Handler errors are logged, not fatal; malformed
// payloads are dropped.
func (q *TaskQueue) Consume(ctx context.Context, handler Handler) {
	q.logger.Info("Task consumer started", map[string]interface{}{
		"queue": q.key,
	})

	for {
		if ctx.Err() != nil {
			q.logger.Info("Task consumer stopped", map[string]interface{}{})
			return
		}

		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				q.logger.Info("Task consumer stopped", map[string]interface{}{})
				return
			}
			q.logger.Error("Queue poll failed", map[string]interface{}{
				"error": err.Error(),
			})
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			q.logger.Error("Dropping malformed task payload", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		if err := handler(ctx, task); err != nil {
			q.logger.Error("Task handler failed", map[string]interface{}{
				"application_id": task.ApplicationID,
				"error":          err.Error(),
			})
		}
	}
}

// Close closes the redis connection.
func (q *TaskQueue) Close() error {
	return q.client.Close()
}
