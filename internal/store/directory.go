package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"applymate/internal/config"
	"applymate/pkg/models"
)

// Directory resolves the read-only job and profile records owned by
// collaborating services.
type Directory interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
}

// RedisDirectory reads job and profile records that collaborators publish
// as JSON values under well-known keys.
type RedisDirectory struct {
	client *redis.Client
}

// NewRedisDirectory connects a directory to the shared redis instance.
func NewRedisDirectory(cfg *config.Config) *RedisDirectory {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = 3 * time.Second

	return &RedisDirectory{client: redis.NewClient(opts)}
}

func (d *RedisDirectory) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := d.get(ctx, "jobs:"+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (d *RedisDirectory) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := d.get(ctx, "profiles:"+id, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (d *RedisDirectory) get(ctx context.Context, key string, out interface{}) error {
	data, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Close closes the redis connection.
func (d *RedisDirectory) Close() error {
	return d.client.Close()
}
