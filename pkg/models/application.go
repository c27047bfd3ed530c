package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"applymate/pkg/utils"
)

const (
	// MaxAttempts bounds how many times one application may run the pipeline
	MaxAttempts = 10
	// MaxScreenshotsPerAttempt bounds screenshot references on one attempt
	MaxScreenshotsPerAttempt = 20
	// MaxErrorMessageLength bounds the persisted error message
	MaxErrorMessageLength = 1000
)

// ApplicationStatus represents the processing state of an application
type ApplicationStatus string

const (
	StatusPending    ApplicationStatus = "pending"
	StatusInProgress ApplicationStatus = "in_progress"
	StatusCompleted  ApplicationStatus = "completed"
	StatusFailed     ApplicationStatus = "failed"
	StatusCancelled  ApplicationStatus = "cancelled"
)

// ApplicationOutcome represents the employer-side outcome, set by external
// collaborators after submission.
type ApplicationOutcome string

const (
	OutcomeApplied            ApplicationOutcome = "applied"
	OutcomeViewed             ApplicationOutcome = "viewed"
	OutcomeRejected           ApplicationOutcome = "rejected"
	OutcomeInterviewScheduled ApplicationOutcome = "interview_scheduled"
	OutcomeOfferReceived      ApplicationOutcome = "offer_received"
)

// ApplicationAttempt is one execution of the submission pipeline against one
// application. Attempts are owned exclusively by their application.
type ApplicationAttempt struct {
	AttemptNumber int                    `json:"attempt_number" validate:"gte=1"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	Success       bool                   `json:"success"`
	ErrorMessage  string                 `json:"error_message,omitempty" validate:"max=1000"`
	Screenshots   []string               `json:"screenshots,omitempty" validate:"max=20"`
	FormDataUsed  map[string]interface{} `json:"form_data_used,omitempty"`

	// ReadinessCheck summarizes the pre-submit form validation: whether
	// required fields were filled and which validation errors were visible.
	ReadinessCheck map[string]interface{} `json:"readiness_check,omitempty"`
}

// Open reports whether the attempt has not completed yet
func (a *ApplicationAttempt) Open() bool {
	return a.CompletedAt == nil
}

// SubmissionData holds the form values and confirmation artifacts of a
// successful attempt.
type SubmissionData struct {
	FormFields         map[string]interface{} `json:"form_fields,omitempty"`
	ResumeFilename     string                 `json:"resume_filename,omitempty"`
	CoverLetter        string                 `json:"cover_letter,omitempty" validate:"max=5000"`
	SubmissionID       string                 `json:"submission_id,omitempty"`
	ConfirmationNumber string                 `json:"confirmation_number,omitempty"`
	Confidence         float64                `json:"confidence" validate:"gte=0,lte=1"`
}

// Application is one job-application lifecycle record.
type Application struct {
	ID       string `json:"id" badgerhold:"key" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	JobID    string `json:"job_id" validate:"required"`
	ResumeID string `json:"resume_id,omitempty"`

	Status  ApplicationStatus  `json:"status"`
	Outcome ApplicationOutcome `json:"outcome,omitempty"`

	SubmissionData *SubmissionData      `json:"submission_data,omitempty"`
	Attempts       []ApplicationAttempt `json:"attempts,omitempty"`

	AppliedAt        *time.Time `json:"applied_at,omitempty"`
	OutcomeUpdatedAt *time.Time `json:"outcome_updated_at,omitempty"`

	Notes string   `json:"notes,omitempty" validate:"max=2000"`
	Tags  []string `json:"tags,omitempty" validate:"max=10"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewApplication creates a pending application record
func NewApplication(userID, jobID, resumeID string) *Application {
	now := time.Now().UTC()
	return &Application{
		ID:        uuid.New().String(),
		UserID:    userID,
		JobID:     jobID,
		ResumeID:  resumeID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var validate = validator.New()

// Validate checks field constraints and the attempt invariants: attempt
// numbers are exactly 1..len(attempts) and at most one attempt is open.
func (app *Application) Validate() error {
	if err := validate.Struct(app); err != nil {
		return err
	}

	if len(app.Attempts) > MaxAttempts {
		return fmt.Errorf("maximum %d application attempts allowed", MaxAttempts)
	}

	open := 0
	for i, attempt := range app.Attempts {
		if attempt.AttemptNumber != i+1 {
			return fmt.Errorf("attempt numbers must be sequential starting from 1")
		}
		if attempt.CompletedAt != nil && attempt.CompletedAt.Before(attempt.StartedAt) {
			return fmt.Errorf("attempt %d completed before it started", attempt.AttemptNumber)
		}
		if attempt.Open() {
			open++
		}
	}
	if open > 1 {
		return fmt.Errorf("at most one attempt may be open")
	}

	return nil
}

// AddAttempt opens a new attempt slot. Fails when the attempt cap is reached
// or a previous attempt is still open.
func (app *Application) AddAttempt() (*ApplicationAttempt, error) {
	if len(app.Attempts) >= MaxAttempts {
		return nil, fmt.Errorf("attempt limit reached (%d)", MaxAttempts)
	}
	if current := app.CurrentAttempt(); current != nil && current.Open() {
		return nil, fmt.Errorf("attempt %d is still open", current.AttemptNumber)
	}

	attempt := ApplicationAttempt{
		AttemptNumber: len(app.Attempts) + 1,
		StartedAt:     time.Now().UTC(),
	}
	app.Attempts = append(app.Attempts, attempt)
	app.UpdatedAt = time.Now().UTC()
	return &app.Attempts[len(app.Attempts)-1], nil
}

// CurrentAttempt returns the most recent attempt, or nil when none exist
func (app *Application) CurrentAttempt() *ApplicationAttempt {
	if len(app.Attempts) == 0 {
		return nil
	}
	return &app.Attempts[len(app.Attempts)-1]
}

// CompleteCurrentAttempt closes the open attempt and transitions the
// application to its terminal status. On success the completion time becomes
// the application's applied_at.
func (app *Application) CompleteCurrentAttempt(success bool, errorMessage string, submission *SubmissionData) error {
	current := app.CurrentAttempt()
	if current == nil {
		return fmt.Errorf("no attempts to complete")
	}
	if !current.Open() {
		return fmt.Errorf("attempt %d already completed", current.AttemptNumber)
	}

	now := time.Now().UTC()
	current.CompletedAt = &now
	current.Success = success
	if errorMessage != "" {
		current.ErrorMessage = utils.Truncate(errorMessage, MaxErrorMessageLength)
	}

	if success {
		app.Status = StatusCompleted
		app.AppliedAt = &now
		if submission != nil {
			app.SubmissionData = submission
		}
	} else {
		app.Status = StatusFailed
	}

	app.UpdatedAt = now
	return nil
}

// TotalAttempts returns the number of recorded attempts
func (app *Application) TotalAttempts() int {
	return len(app.Attempts)
}

// IsCompleted reports whether the application was successfully submitted
func (app *Application) IsCompleted() bool {
	return app.Status == StatusCompleted && app.AppliedAt != nil
}

// Retryable reports whether an external retry action may re-queue this
// application for a fresh attempt.
func (app *Application) Retryable() bool {
	return app.Status == StatusFailed && len(app.Attempts) < MaxAttempts
}
