package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"applymate/internal/config"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/internal/queue"
	"applymate/internal/store"
	"applymate/pkg/models"
)

// Enqueuer is the slice of the task queue the sweeper needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Sweeper runs the periodic maintenance jobs: failing stale runs and
// re-queueing retryable failures.
type Sweeper struct {
	cfg    *config.Config
	repo   store.ApplicationRepository
	queue  Enqueuer
	cron   *cron.Cron
	logger types.Logger
}

// NewSweeper creates the maintenance scheduler.
func NewSweeper(cfg *config.Config, repo store.ApplicationRepository, q Enqueuer) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		repo:   repo,
		queue:  q,
		cron:   cron.New(),
		logger: logging.GetGlobalLogger().WithField("component", "sweeper"),
	}
}

// Start registers the cron schedules and begins running them.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Sweeps.StaleSchedule, func() {
		s.SweepStale(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule stale sweep: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.Sweeps.RetrySchedule, func() {
		s.SweepRetryable(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule retry sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Maintenance sweeps scheduled", map[string]interface{}{
		"stale_schedule": s.cfg.Sweeps.StaleSchedule,
		"retry_schedule": s.cfg.Sweeps.RetrySchedule,
	})
	return nil
}

// SweepStale fails IN_PROGRESS applications whose worker died mid-run.
func (s *Sweeper) SweepStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.Sweeps.StaleAfter)

	stale, err := s.repo.FindStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("Stale sweep query failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, app := range stale {
		message := fmt.Sprintf("application timed out after %s in progress", s.cfg.Sweeps.StaleAfter)

		if current := app.CurrentAttempt(); current != nil && current.Open() {
			if err := app.CompleteCurrentAttempt(false, message, nil); err != nil {
				s.logger.Warn("Failed to close stale attempt", map[string]interface{}{
					"application_id": app.ID,
					"error":          err.Error(),
				})
				continue
			}
		} else {
			app.Status = models.StatusFailed
		}

		if err := s.repo.Save(ctx, app); err != nil {
			s.logger.Error("Failed to persist stale application", map[string]interface{}{
				"application_id": app.ID,
				"error":          err.Error(),
			})
			continue
		}

		s.logger.Warn("Stale application failed", map[string]interface{}{
			"application_id": app.ID,
			"updated_at":     app.UpdatedAt,
		})
	}

	if len(stale) > 0 {
		s.logger.Info("Stale sweep completed", map[string]interface{}{
			"failed": len(stale),
		})
	}
}

// SweepRetryable re-queues failed applications that still have attempts
// left.
func (s *Sweeper) SweepRetryable(ctx context.Context) {
	retryable, err := s.repo.FindRetryable(ctx)
	if err != nil {
		s.logger.Error("Retry sweep query failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	requeued := 0
	for _, app := range retryable {
		if err := s.repo.ResetForRetry(ctx, app.ID); err != nil {
			s.logger.Warn("Failed to reset application for retry", map[string]interface{}{
				"application_id": app.ID,
				"error":          err.Error(),
			})
			continue
		}

		if err := s.queue.Enqueue(ctx, queue.Task{ApplicationID: app.ID}); err != nil {
			s.logger.Error("Failed to re-enqueue application", map[string]interface{}{
				"application_id": app.ID,
				"error":          err.Error(),
			})
			continue
		}
		requeued++
	}

	if requeued > 0 {
		s.logger.Info("Retry sweep completed", map[string]interface{}{
			"requeued": requeued,
		})
	}
}

// Stop stops the scheduler, waiting for running jobs.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
