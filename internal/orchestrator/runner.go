package orchestrator

import (
	"context"
	"fmt"
	"time"

	"applymate/internal/browser"
	"applymate/internal/config"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/internal/notify"
	"applymate/internal/queue"
	"applymate/internal/retry"
	"applymate/internal/store"
	"applymate/internal/strategy"
	"applymate/internal/verifier"
	"applymate/pkg/models"
	"applymate/pkg/utils"
)

// PageSession is the slice of a browser session the runner needs. Close
// must be safe to call more than once.
type PageSession interface {
	Page() browser.Page
	Close()
}

// SessionFactory opens a fresh isolated browser session per application
// run.
type SessionFactory func(ctx context.Context) (PageSession, error)

// Runner drives one application from claimed task to terminal status.
type Runner struct {
	cfg        *config.Config
	repo       store.ApplicationRepository
	directory  store.Directory
	sessions   SessionFactory
	strategies *strategy.Manager
	verifier   *verifier.Verifier
	capturer   *browser.Capturer
	limiter    *HostLimiter
	notifier   notify.Notifier
	logger     types.Logger

	navRetry retry.Config
}

// NewRunner wires the application pipeline together.
func NewRunner(
	cfg *config.Config,
	repo store.ApplicationRepository,
	directory store.Directory,
	sessions SessionFactory,
	strategies *strategy.Manager,
	ver *verifier.Verifier,
	capturer *browser.Capturer,
	limiter *HostLimiter,
	notifier notify.Notifier,
) *Runner {
	return &Runner{
		cfg:        cfg,
		repo:       repo,
		directory:  directory,
		sessions:   sessions,
		strategies: strategies,
		verifier:   ver,
		capturer:   capturer,
		limiter:    limiter,
		notifier:   notifier,
		logger:     logging.GetGlobalLogger().WithField("component", "runner"),
		navRetry: retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Strategy:    retry.ParseStrategy(cfg.Retry.Strategy),
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Multiplier:  cfg.Retry.Multiplier,
			Jitter:      cfg.Retry.Jitter,
		},
	}
}

// HandleTask adapts the runner to the task queue.
func (r *Runner) HandleTask(ctx context.Context, task queue.Task) error {
	_, err := r.RunApplication(ctx, task.ApplicationID)
	return err
}

// RunApplication executes the full submission pipeline for one claimed
// application: navigate, apply through the portal strategy, verify, and
// persist the terminal status. Exactly one terminal notification is sent
// per run. Infrastructure errors (store unreachable) are returned; portal
// failures end up recorded on the application instead.
func (r *Runner) RunApplication(ctx context.Context, applicationID string) (*models.RunResult, error) {
	logger := r.logger.WithField("application_id", applicationID)

	app, err := r.repo.ClaimPending(ctx, applicationID)
	if err != nil {
		if err == store.ErrNotClaimable {
			logger.Warn("Application not claimable, skipping", map[string]interface{}{})
			return &models.RunResult{Success: false, ApplicationID: applicationID, Error: "not claimable"}, nil
		}
		return nil, err
	}
	// Screenshot metadata only needs to live until the attempt is
	// persisted.
	defer r.capturer.Forget(applicationID)

	if _, err := app.AddAttempt(); err != nil {
		// Attempt cap reached; park the application as failed.
		app.Status = models.StatusFailed
		if saveErr := r.repo.Save(ctx, app); saveErr != nil {
			return nil, saveErr
		}
		logger.Warn("Attempt limit reached", map[string]interface{}{
			"attempts": app.TotalAttempts(),
		})
		return &models.RunResult{Success: false, ApplicationID: applicationID, Error: err.Error()}, nil
	}
	if err := r.repo.Save(ctx, app); err != nil {
		return nil, err
	}

	job, err := r.directory.GetJob(ctx, app.JobID)
	if err != nil {
		return r.failRun(ctx, app, nil, fmt.Sprintf("job lookup failed: %v", err))
	}
	profile, err := r.directory.GetProfile(ctx, app.UserID)
	if err != nil {
		return r.failRun(ctx, app, job, fmt.Sprintf("profile lookup failed: %v", err))
	}

	r.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventStarted,
		ApplicationID: app.ID,
		UserID:        app.UserID,
		JobID:         app.JobID,
		Message:       fmt.Sprintf("Starting application for %s at %s", job.Title, job.Company),
	})

	host := utils.HostOf(job.URL)
	if !r.limiter.Allow(host) {
		return r.failRun(ctx, app, job, fmt.Sprintf("rate limit exceeded for %s", host))
	}

	session, err := r.sessions(ctx)
	if err != nil {
		r.limiter.RecordFailure(host, err)
		return r.failRun(ctx, app, job, fmt.Sprintf("browser session failed: %v", err))
	}
	defer session.Close()

	page := session.Page()

	if err := r.navigate(ctx, page, job.URL); err != nil {
		r.limiter.RecordFailure(host, err)
		return r.failRun(ctx, app, job, fmt.Sprintf("navigation failed: %v", err))
	}
	r.progress(ctx, app, "navigated", fmt.Sprintf("Loaded %s", job.URL))

	initialURL := page.URL()
	initialTitle, _ := page.Title(ctx)

	strat := r.strategies.GetStrategy(job.URL)
	resumePath := r.resumePath(app)
	r.progress(ctx, app, "applying", fmt.Sprintf("Running %s strategy", strat.Name()))
	result, err := strat.Apply(ctx, page, profile, resumePath, app.ID)
	if err != nil {
		r.limiter.RecordFailure(host, err)
		return r.failRunWith(ctx, app, job, fmt.Sprintf("strategy failed: %v", err), result)
	}

	if !result.Success {
		r.limiter.RecordFailure(host, fmt.Errorf("%s", result.Error))
		return r.failRunWith(ctx, app, job, result.Error, result)
	}

	r.progress(ctx, app, "verifying", "Verifying submission outcome")
	verification, err := r.verifier.Verify(ctx, page, initialURL, initialTitle, 15*time.Second)
	if err != nil {
		logger.Warn("Verification failed, trusting strategy outcome", map[string]interface{}{
			"error": err.Error(),
		})
	}

	confidence := 0.0
	if verification != nil {
		confidence = verification.Confidence
		if verification.Verdict == verifier.VerdictFailure {
			r.limiter.RecordFailure(host, fmt.Errorf("%s", verification.Message))
			return r.failRunWith(ctx, app, job, verification.Message, result)
		}
	}

	submission := &models.SubmissionData{
		FormFields:         toSubmissionFields(result.FormData),
		ConfirmationNumber: result.ConfirmationNumber,
		SubmissionID:       utils.GenerateRequestID(),
		Confidence:         confidence,
	}
	if resumePath != "" {
		submission.ResumeFilename = resumePath
	}

	r.recordAttemptArtifacts(app, result)
	if err := app.CompleteCurrentAttempt(true, "", submission); err != nil {
		return nil, err
	}
	if err := r.repo.Save(ctx, app); err != nil {
		return nil, err
	}

	r.limiter.RecordSuccess(host)
	r.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventCompleted,
		ApplicationID: app.ID,
		UserID:        app.UserID,
		JobID:         app.JobID,
		Message:       fmt.Sprintf("Successfully applied to %s at %s", job.Title, job.Company),
		Confirmation:  result.ConfirmationNumber,
	})

	logger.Info("Application completed", map[string]interface{}{
		"confirmation": result.ConfirmationNumber,
		"confidence":   confidence,
		"screenshots":  len(result.Screenshots),
	})

	return &models.RunResult{
		Success:         true,
		ApplicationID:   app.ID,
		ConfirmationID:  result.ConfirmationNumber,
		ScreenshotCount: len(result.Screenshots),
	}, nil
}

// navigate loads the job URL under the classified retry policy. Server
// errors stay retryable; client errors don't.
func (r *Runner) navigate(ctx context.Context, page browser.Page, url string) error {
	return retry.Do(ctx, "navigate", r.navRetry, map[string]interface{}{"url": url}, func(ctx context.Context) error {
		info, err := page.Navigate(ctx, url)
		if err != nil {
			return utils.NewNavigationError(fmt.Sprintf("failed to navigate to %s", url), utils.SeverityMedium, err)
		}
		if info.StatusCode >= 500 {
			return utils.NewNavigationError(fmt.Sprintf("server error: HTTP %d", info.StatusCode), utils.SeverityMedium, nil)
		}
		if info.StatusCode >= 400 {
			return utils.NewNavigationError(fmt.Sprintf("client error: HTTP %d", info.StatusCode), utils.SeverityHigh, nil)
		}
		return nil
	})
}

// progress publishes a step checkpoint. Best-effort like all
// notifications.
func (r *Runner) progress(ctx context.Context, app *models.Application, step, message string) {
	r.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventProgress,
		ApplicationID: app.ID,
		UserID:        app.UserID,
		JobID:         app.JobID,
		Step:          step,
		Message:       message,
	})
}

func (r *Runner) failRun(ctx context.Context, app *models.Application, job *models.Job, message string) (*models.RunResult, error) {
	return r.failRunWith(ctx, app, job, message, nil)
}

func (r *Runner) failRunWith(ctx context.Context, app *models.Application, job *models.Job, message string, result *strategy.Result) (*models.RunResult, error) {
	if message == "" {
		message = "unknown automation error"
	}

	if result != nil {
		r.recordAttemptArtifacts(app, result)
	}
	if err := app.CompleteCurrentAttempt(false, message, nil); err != nil {
		return nil, err
	}
	if err := r.repo.Save(ctx, app); err != nil {
		return nil, err
	}

	event := notify.Event{
		Type:          notify.EventFailed,
		ApplicationID: app.ID,
		UserID:        app.UserID,
		JobID:         app.JobID,
		Message:       message,
	}
	if job != nil {
		event.Message = fmt.Sprintf("Application failed for %s: %s", job.Title, message)
	}
	r.notifier.Notify(ctx, event)

	r.logger.Error("Application failed", map[string]interface{}{
		"application_id": app.ID,
		"error":          message,
		"attempts":       app.TotalAttempts(),
	})

	runResult := &models.RunResult{Success: false, ApplicationID: app.ID, Error: message}
	if result != nil {
		runResult.ScreenshotCount = len(result.Screenshots)
	}
	return runResult, nil
}

// recordAttemptArtifacts copies the strategy's screenshots and form data
// onto the open attempt, honoring the per-attempt screenshot cap.
func (r *Runner) recordAttemptArtifacts(app *models.Application, result *strategy.Result) {
	attempt := app.CurrentAttempt()
	if attempt == nil || result == nil {
		return
	}

	screenshots := result.Screenshots
	if len(screenshots) > models.MaxScreenshotsPerAttempt {
		screenshots = screenshots[:models.MaxScreenshotsPerAttempt]
	}
	attempt.Screenshots = screenshots

	if len(result.FormData) > 0 {
		attempt.FormDataUsed = make(map[string]interface{}, len(result.FormData))
		for k, v := range result.FormData {
			attempt.FormDataUsed[k] = v
		}
	}

	if readiness := result.Readiness; readiness != nil {
		check := map[string]interface{}{"ready": readiness.Ready}
		if len(readiness.MissingRequired) > 0 {
			check["missing_required"] = readiness.MissingRequired
		}
		if len(readiness.ValidationErrors) > 0 {
			check["validation_errors"] = readiness.ValidationErrors
		}
		attempt.ReadinessCheck = check
	}
}

func (r *Runner) resumePath(app *models.Application) string {
	if app.ResumeID == "" {
		return ""
	}
	return fmt.Sprintf("data/resumes/%s.pdf", app.ResumeID)
}

func toSubmissionFields(formData map[string]string) map[string]interface{} {
	if len(formData) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(formData))
	for k, v := range formData {
		fields[k] = v
	}
	return fields
}
