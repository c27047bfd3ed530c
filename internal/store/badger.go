package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/pkg/models"
)

// BadgerRepository persists applications in an embedded badger store.
type BadgerRepository struct {
	store  *badgerhold.Store
	logger types.Logger

	// badgerhold transactions don't serialize Get+Update pairs, so claims
	// are guarded here.
	claimMu sync.Mutex
}

// NewBadgerRepository opens (or creates) the application store at dir.
func NewBadgerRepository(dir string) (*BadgerRepository, error) {
	logger := logging.GetGlobalLogger()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	logger.Info("Application store opened", map[string]interface{}{
		"dir": dir,
	})

	return &BadgerRepository{store: store, logger: logger}, nil
}

func (r *BadgerRepository) Get(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	if err := r.store.Get(id, &app); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

func (r *BadgerRepository) Save(ctx context.Context, app *models.Application) error {
	if err := app.Validate(); err != nil {
		return fmt.Errorf("invalid application: %w", err)
	}

	if app.Status != models.StatusCancelled {
		existing, err := r.Get(ctx, app.ID)
		if err == nil && existing.Status == models.StatusCancelled {
			return ErrCancelled
		}
	}

	app.UpdatedAt = time.Now().UTC()

	if err := r.store.Upsert(app.ID, app); err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	return nil
}

func (r *BadgerRepository) ClaimPending(ctx context.Context, id string) (*models.Application, error) {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	app, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusPending {
		return nil, ErrNotClaimable
	}

	app.Status = models.StatusInProgress
	app.UpdatedAt = time.Now().UTC()
	if err := r.store.Update(app.ID, app); err != nil {
		return nil, fmt.Errorf("failed to claim application: %w", err)
	}

	r.logger.Debug("Application claimed", map[string]interface{}{
		"application_id": id,
	})
	return app, nil
}

func (r *BadgerRepository) MarkCancelled(ctx context.Context, id string) error {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	app, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if app.Status != models.StatusPending && app.Status != models.StatusInProgress {
		return ErrNotClaimable
	}

	cancelAttempts(app)
	app.Status = models.StatusCancelled
	app.UpdatedAt = time.Now().UTC()
	if err := r.store.Update(app.ID, app); err != nil {
		return fmt.Errorf("failed to cancel application: %w", err)
	}
	return nil
}

func (r *BadgerRepository) FindStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error) {
	var apps []*models.Application
	query := badgerhold.Where("Status").Eq(models.StatusInProgress).And("UpdatedAt").Lt(cutoff)
	if err := r.store.Find(&apps, query); err != nil {
		return nil, fmt.Errorf("failed to find stale applications: %w", err)
	}
	return apps, nil
}

func (r *BadgerRepository) FindRetryable(ctx context.Context) ([]*models.Application, error) {
	var apps []*models.Application
	if err := r.store.Find(&apps, badgerhold.Where("Status").Eq(models.StatusFailed)); err != nil {
		return nil, fmt.Errorf("failed to find failed applications: %w", err)
	}

	retryable := apps[:0]
	for _, app := range apps {
		if app.Retryable() {
			retryable = append(retryable, app)
		}
	}
	return retryable, nil
}

func (r *BadgerRepository) ResetForRetry(ctx context.Context, id string) error {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	app, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !app.Retryable() {
		return ErrNotClaimable
	}

	app.Status = models.StatusPending
	app.UpdatedAt = time.Now().UTC()
	if err := r.store.Update(app.ID, app); err != nil {
		return fmt.Errorf("failed to reset application: %w", err)
	}

	r.logger.Info("Application reset for retry", map[string]interface{}{
		"application_id": id,
		"attempts":       app.TotalAttempts(),
	})
	return nil
}

func (r *BadgerRepository) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
