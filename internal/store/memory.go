package store

import (
	"context"
	"sync"
	"time"

	"applymate/pkg/models"
)

// MemoryRepository is an in-memory ApplicationRepository for tests and
// ephemeral runs.
type MemoryRepository struct {
	mu   sync.Mutex
	apps map[string]*models.Application
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{apps: make(map[string]*models.Application)}
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *MemoryRepository) get(id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *app
	return &clone, nil
}

func (r *MemoryRepository) Save(ctx context.Context, app *models.Application) error {
	if err := app.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.apps[app.ID]; ok {
		if existing.Status == models.StatusCancelled && app.Status != models.StatusCancelled {
			return ErrCancelled
		}
	}

	app.UpdatedAt = time.Now().UTC()
	clone := *app
	r.apps[app.ID] = &clone
	return nil
}

func (r *MemoryRepository) ClaimPending(ctx context.Context, id string) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if app.Status != models.StatusPending {
		return nil, ErrNotClaimable
	}

	app.Status = models.StatusInProgress
	app.UpdatedAt = time.Now().UTC()
	clone := *app
	return &clone, nil
}

func (r *MemoryRepository) MarkCancelled(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.apps[id]
	if !ok {
		return ErrNotFound
	}
	if app.Status != models.StatusPending && app.Status != models.StatusInProgress {
		return ErrNotClaimable
	}
	cancelAttempts(app)
	app.Status = models.StatusCancelled
	app.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) FindStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*models.Application
	for _, app := range r.apps {
		if app.Status == models.StatusInProgress && app.UpdatedAt.Before(cutoff) {
			clone := *app
			stale = append(stale, &clone)
		}
	}
	return stale, nil
}

func (r *MemoryRepository) FindRetryable(ctx context.Context) ([]*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var retryable []*models.Application
	for _, app := range r.apps {
		if app.Retryable() {
			clone := *app
			retryable = append(retryable, &clone)
		}
	}
	return retryable, nil
}

func (r *MemoryRepository) ResetForRetry(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.apps[id]
	if !ok {
		return ErrNotFound
	}
	if !app.Retryable() {
		return ErrNotClaimable
	}
	app.Status = models.StatusPending
	app.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) Close() error { return nil }
