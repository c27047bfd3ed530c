package store

import (
	"context"
	"errors"
	"time"

	"applymate/pkg/models"
)

// ErrNotFound is returned when no application exists for an ID.
var ErrNotFound = errors.New("application not found")

// ErrNotClaimable is returned when a claim races another worker or the
// application is not pending.
var ErrNotClaimable = errors.New("application is not claimable")

// ErrCancelled is returned when a save would overwrite an externally
// cancelled application.
var ErrCancelled = errors.New("application was cancelled")

// ApplicationRepository persists Application records across worker
// restarts.
type ApplicationRepository interface {
	// Get loads an application by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Application, error)

	// Save validates and upserts an application. Returns ErrCancelled
	// when the stored record was cancelled out from under the caller, so
	// a running worker learns it lost ownership.
	Save(ctx context.Context, app *models.Application) error

	// ClaimPending atomically moves a PENDING application to IN_PROGRESS
	// and returns it. Returns ErrNotClaimable when the application is in
	// any other status, so two workers can never run the same application.
	ClaimPending(ctx context.Context, id string) (*models.Application, error)

	// MarkCancelled moves a PENDING or IN_PROGRESS application to
	// CANCELLED on external request, closing any open attempt. Terminal
	// records return ErrNotClaimable.
	MarkCancelled(ctx context.Context, id string) error

	// FindStale returns IN_PROGRESS applications untouched since before
	// the cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error)

	// FindRetryable returns FAILED applications that still have attempts
	// left.
	FindRetryable(ctx context.Context) ([]*models.Application, error)

	// ResetForRetry moves a failed application back to PENDING so the
	// queue can pick it up again.
	ResetForRetry(ctx context.Context, id string) error

	// Close releases the underlying storage.
	Close() error
}

// cancelAttempts closes a dangling attempt on an externally cancelled
// application, keeping the one-open-attempt invariant intact.
func cancelAttempts(app *models.Application) {
	if current := app.CurrentAttempt(); current != nil && current.Open() {
		_ = app.CompleteCurrentAttempt(false, "cancelled by external request", nil)
	}
}
