package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/internal/config"
	"applymate/internal/queue"
	"applymate/internal/store"
	"applymate/pkg/models"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (q *fakeEnqueuer) Enqueue(ctx context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func sweeperConfig() *config.Config {
	cfg := testConfig()
	cfg.Sweeps.StaleSchedule = "0 * * * *"
	cfg.Sweeps.StaleAfter = 2 * time.Hour
	cfg.Sweeps.RetrySchedule = "0 */6 * * *"
	return cfg
}

func TestSweepStaleFailsAbandonedRuns(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()

	abandoned := models.NewApplication("user-1", "job-1", "")
	require.NoError(t, repo.Save(ctx, abandoned))
	claimed, err := repo.ClaimPending(ctx, abandoned.ID)
	require.NoError(t, err)
	_, err = claimed.AddAttempt()
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, claimed))

	fresh := models.NewApplication("user-1", "job-2", "")
	require.NoError(t, repo.Save(ctx, fresh))

	cfg := sweeperConfig()
	cfg.Sweeps.StaleAfter = -time.Minute // cutoff in the future: everything in progress is stale
	s := NewSweeper(cfg, repo, &fakeEnqueuer{})

	s.SweepStale(ctx)

	swept, err := repo.Get(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, swept.Status)

	attempt := swept.CurrentAttempt()
	require.NotNil(t, attempt)
	assert.False(t, attempt.Open(), "the dangling attempt is closed")
	assert.Contains(t, attempt.ErrorMessage, "timed out")

	untouched, err := repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, untouched.Status)
}

func TestSweepStaleRespectsCutoff(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()

	running := models.NewApplication("user-1", "job-1", "")
	require.NoError(t, repo.Save(ctx, running))
	_, err := repo.ClaimPending(ctx, running.ID)
	require.NoError(t, err)

	s := NewSweeper(sweeperConfig(), repo, &fakeEnqueuer{})
	s.SweepStale(ctx)

	got, err := repo.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status, "recent runs are left alone")
}

func TestSweepRetryableRequeues(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()

	failed := models.NewApplication("user-1", "job-1", "")
	_, err := failed.AddAttempt()
	require.NoError(t, err)
	require.NoError(t, failed.CompleteCurrentAttempt(false, "submission failed", nil))
	require.NoError(t, repo.Save(ctx, failed))

	exhausted := models.NewApplication("user-1", "job-2", "")
	for i := 0; i < models.MaxAttempts; i++ {
		_, err := exhausted.AddAttempt()
		require.NoError(t, err)
		require.NoError(t, exhausted.CompleteCurrentAttempt(false, "submission failed", nil))
	}
	require.NoError(t, repo.Save(ctx, exhausted))

	q := &fakeEnqueuer{}
	s := NewSweeper(sweeperConfig(), repo, q)
	s.SweepRetryable(ctx)

	require.Len(t, q.tasks, 1)
	assert.Equal(t, failed.ID, q.tasks[0].ApplicationID)

	reset, err := repo.Get(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reset.Status)
	assert.Equal(t, 1, reset.TotalAttempts())

	parked, err := repo.Get(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, parked.Status)
}

func TestSweeperStartRejectsBadSchedule(t *testing.T) {
	cfg := sweeperConfig()
	cfg.Sweeps.StaleSchedule = "not a schedule"

	s := NewSweeper(cfg, store.NewMemoryRepository(), &fakeEnqueuer{})
	assert.Error(t, s.Start())
}
