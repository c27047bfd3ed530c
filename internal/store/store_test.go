package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/pkg/models"
)

// eachRepository runs the test against both repository implementations.
func eachRepository(t *testing.T, test func(t *testing.T, repo ApplicationRepository)) {
	t.Run("memory", func(t *testing.T) {
		repo := NewMemoryRepository()
		defer repo.Close()
		test(t, repo)
	})

	t.Run("badger", func(t *testing.T) {
		repo, err := NewBadgerRepository(t.TempDir())
		require.NoError(t, err)
		defer repo.Close()
		test(t, repo)
	})
}

func failedApplication(t *testing.T) *models.Application {
	t.Helper()
	app := models.NewApplication("user-1", "job-1", "")
	_, err := app.AddAttempt()
	require.NoError(t, err)
	require.NoError(t, app.CompleteCurrentAttempt(false, "submission failed", nil))
	return app
}

func TestSaveAndGet(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()
		app := models.NewApplication("user-1", "job-1", "resume-1")

		require.NoError(t, repo.Save(ctx, app))

		got, err := repo.Get(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.ID, got.ID)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, models.StatusPending, got.Status)
	})
}

func TestGetMissing(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		_, err := repo.Get(context.Background(), "no-such-id")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSaveRejectsInvalid(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		app := models.NewApplication("", "job-1", "")
		assert.Error(t, repo.Save(context.Background(), app))
	})
}

func TestClaimPendingLifecycle(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()
		app := models.NewApplication("user-1", "job-1", "")
		require.NoError(t, repo.Save(ctx, app))

		claimed, err := repo.ClaimPending(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, claimed.Status)

		// A second worker picking up the same task loses the claim.
		_, err = repo.ClaimPending(ctx, app.ID)
		assert.ErrorIs(t, err, ErrNotClaimable)

		got, err := repo.Get(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, got.Status)
	})
}

func TestClaimMissing(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		_, err := repo.ClaimPending(context.Background(), "no-such-id")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMarkCancelled(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()
		app := models.NewApplication("user-1", "job-1", "")
		require.NoError(t, repo.Save(ctx, app))

		require.NoError(t, repo.MarkCancelled(ctx, app.ID))

		got, err := repo.Get(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)

		// A cancelled record is terminal; cancelling again fails.
		assert.ErrorIs(t, repo.MarkCancelled(ctx, app.ID), ErrNotClaimable)
	})
}

func TestMarkCancelledWhileInProgress(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()
		app := models.NewApplication("user-1", "job-1", "")
		require.NoError(t, repo.Save(ctx, app))

		claimed, err := repo.ClaimPending(ctx, app.ID)
		require.NoError(t, err)
		_, err = claimed.AddAttempt()
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, claimed))

		// An external cancel request lands mid-run.
		require.NoError(t, repo.MarkCancelled(ctx, app.ID))

		got, err := repo.Get(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		require.Equal(t, 1, got.TotalAttempts())
		attempt := got.CurrentAttempt()
		assert.False(t, attempt.Open(), "the dangling attempt is closed")
		assert.False(t, attempt.Success)
		assert.Contains(t, attempt.ErrorMessage, "cancelled")
		assert.NoError(t, got.Validate())
	})
}

func TestMarkCancelledRejectsTerminalStatuses(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()

		completed := models.NewApplication("user-1", "job-1", "")
		_, err := completed.AddAttempt()
		require.NoError(t, err)
		require.NoError(t, completed.CompleteCurrentAttempt(true, "", nil))
		require.NoError(t, repo.Save(ctx, completed))

		assert.ErrorIs(t, repo.MarkCancelled(ctx, completed.ID), ErrNotClaimable)
	})
}

func TestSaveRefusesOverwritingCancelled(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()
		app := models.NewApplication("user-1", "job-1", "")
		require.NoError(t, repo.Save(ctx, app))

		claimed, err := repo.ClaimPending(ctx, app.ID)
		require.NoError(t, err)
		require.NoError(t, repo.MarkCancelled(ctx, app.ID))

		// The worker still holding the stale claim loses ownership.
		claimed.Status = models.StatusInProgress
		assert.ErrorIs(t, repo.Save(ctx, claimed), ErrCancelled)

		got, err := repo.Get(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
	})
}

func TestFindStale(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()

		running := models.NewApplication("user-1", "job-1", "")
		require.NoError(t, repo.Save(ctx, running))
		_, err := repo.ClaimPending(ctx, running.ID)
		require.NoError(t, err)

		pending := models.NewApplication("user-1", "job-2", "")
		require.NoError(t, repo.Save(ctx, pending))

		stale, err := repo.FindStale(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, running.ID, stale[0].ID)

		// Nothing is stale against a cutoff in the past.
		stale, err = repo.FindStale(ctx, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, stale)
	})
}

func TestFindRetryableAndReset(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()

		failed := failedApplication(t)
		require.NoError(t, repo.Save(ctx, failed))

		completed := models.NewApplication("user-1", "job-2", "")
		_, err := completed.AddAttempt()
		require.NoError(t, err)
		require.NoError(t, completed.CompleteCurrentAttempt(true, "", nil))
		require.NoError(t, repo.Save(ctx, completed))

		retryable, err := repo.FindRetryable(ctx)
		require.NoError(t, err)
		require.Len(t, retryable, 1)
		assert.Equal(t, failed.ID, retryable[0].ID)

		require.NoError(t, repo.ResetForRetry(ctx, failed.ID))

		got, err := repo.Get(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, 1, got.TotalAttempts(), "attempt history survives a retry reset")

		// A completed application cannot be reset.
		assert.ErrorIs(t, repo.ResetForRetry(ctx, completed.ID), ErrNotClaimable)
	})
}

func TestResetAtAttemptCap(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo ApplicationRepository) {
		ctx := context.Background()

		app := models.NewApplication("user-1", "job-1", "")
		for i := 0; i < models.MaxAttempts; i++ {
			_, err := app.AddAttempt()
			require.NoError(t, err)
			require.NoError(t, app.CompleteCurrentAttempt(false, "submission failed", nil))
		}
		require.NoError(t, repo.Save(ctx, app))

		retryable, err := repo.FindRetryable(ctx)
		require.NoError(t, err)
		assert.Empty(t, retryable)

		assert.ErrorIs(t, repo.ResetForRetry(ctx, app.ID), ErrNotClaimable)
	})
}
