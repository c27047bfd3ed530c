package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"applymate/internal/config"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
)

// Event is one application lifecycle notification.
type Event struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"application_id"`
	UserID        string    `json:"user_id"`
	JobID         string    `json:"job_id"`
	Step          string    `json:"step,omitempty"`
	Message       string    `json:"message,omitempty"`
	Confirmation  string    `json:"confirmation,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event types published over the application lifecycle. Progress events
// carry the pipeline step name; the terminal completed/failed events are
// sent exactly once per run.
const (
	EventStarted   = "application_started"
	EventProgress  = "application_progress"
	EventCompleted = "application_completed"
	EventFailed    = "application_failed"
)

// Notifier publishes application lifecycle events. Delivery is
// best-effort; a notification failure never fails a run.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// RedisNotifier publishes events on a redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  types.Logger
}

// NewRedisNotifier connects to redis and binds the event channel from
// config.
func NewRedisNotifier(cfg *config.Config) *RedisNotifier {
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

	return &RedisNotifier{
		client:  redis.NewClient(opts),
		channel: cfg.Redis.Channel,
		logger:  logging.GetGlobalLogger(),
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("Failed to marshal notification", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		n.logger.Warn("Failed to publish notification", map[string]interface{}{
			"type":           event.Type,
			"application_id": event.ApplicationID,
			"error":          err.Error(),
		})
		return
	}

	n.logger.Debug("Notification published", map[string]interface{}{
		"type":           event.Type,
		"application_id": event.ApplicationID,
	})
}

// Close closes the redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// LogNotifier writes events to the log only. Used when redis is
// unavailable and in tests.
type LogNotifier struct {
	logger types.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.GetGlobalLogger()}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	n.logger.Info("Application event", map[string]interface{}{
		"type":           event.Type,
		"application_id": event.ApplicationID,
		"user_id":        event.UserID,
		"job_id":         event.JobID,
		"step":           event.Step,
		"message":        event.Message,
	})
}
