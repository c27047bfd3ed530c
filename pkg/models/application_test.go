package models

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplicationDefaults(t *testing.T) {
	app := NewApplication("user-1", "job-1", "resume-1")

	assert.NotEmpty(t, app.ID)
	assert.Equal(t, StatusPending, app.Status)
	assert.Zero(t, app.TotalAttempts())
	assert.NoError(t, app.Validate())
}

func TestAddAttemptSequencing(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")

	first, err := app.AddAttempt()
	require.NoError(t, err)
	assert.Equal(t, 1, first.AttemptNumber)
	assert.True(t, first.Open())

	// A second attempt cannot open while the first is still running.
	_, err = app.AddAttempt()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still open")

	require.NoError(t, app.CompleteCurrentAttempt(false, "timeout", nil))

	second, err := app.AddAttempt()
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptNumber)
	assert.NoError(t, app.Validate())
}

func TestAddAttemptCap(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")

	for i := 0; i < MaxAttempts; i++ {
		_, err := app.AddAttempt()
		require.NoError(t, err)
		require.NoError(t, app.CompleteCurrentAttempt(false, "portal timeout", nil))
	}

	_, err := app.AddAttempt()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt limit reached")
	assert.False(t, app.Retryable())
}

func TestCompleteCurrentAttemptSuccess(t *testing.T) {
	app := NewApplication("user-1", "job-1", "resume-1")
	_, err := app.AddAttempt()
	require.NoError(t, err)

	submission := &SubmissionData{
		ConfirmationNumber: "LinkedIn-20260831120000",
		SubmissionID:       "req-1",
		Confidence:         0.95,
	}
	require.NoError(t, app.CompleteCurrentAttempt(true, "", submission))

	assert.Equal(t, StatusCompleted, app.Status)
	assert.True(t, app.IsCompleted())
	require.NotNil(t, app.AppliedAt)
	require.NotNil(t, app.SubmissionData)
	assert.Equal(t, "LinkedIn-20260831120000", app.SubmissionData.ConfirmationNumber)
	assert.True(t, app.CurrentAttempt().Success)
	assert.False(t, app.Retryable())

	err = app.CompleteCurrentAttempt(true, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestCompleteCurrentAttemptTruncatesError(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")
	_, err := app.AddAttempt()
	require.NoError(t, err)

	long := strings.Repeat("x", MaxErrorMessageLength+500)
	require.NoError(t, app.CompleteCurrentAttempt(false, long, nil))

	assert.Equal(t, StatusFailed, app.Status)
	assert.Len(t, app.CurrentAttempt().ErrorMessage, MaxErrorMessageLength)
	assert.True(t, app.Retryable())
	assert.NoError(t, app.Validate())
}

func TestCompleteCurrentAttemptTruncationIsRuneSafe(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")
	_, err := app.AddAttempt()
	require.NoError(t, err)

	// Multi-byte runes must not be split at the cut point.
	long := strings.Repeat("é", MaxErrorMessageLength+5)
	require.NoError(t, app.CompleteCurrentAttempt(false, long, nil))

	msg := app.CurrentAttempt().ErrorMessage
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, MaxErrorMessageLength, utf8.RuneCountInString(msg))
	assert.NoError(t, app.Validate())
}

func TestCompleteWithNoAttempts(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")
	err := app.CompleteCurrentAttempt(false, "oops", nil)
	require.Error(t, err)
}

func TestValidateRejectsBrokenAttemptSequence(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")
	now := time.Now().UTC()
	app.Attempts = []ApplicationAttempt{
		{AttemptNumber: 1, StartedAt: now, CompletedAt: &now},
		{AttemptNumber: 3, StartedAt: now},
	}

	err := app.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequential")
}

func TestValidateRejectsTwoOpenAttempts(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")
	now := time.Now().UTC()
	app.Attempts = []ApplicationAttempt{
		{AttemptNumber: 1, StartedAt: now},
		{AttemptNumber: 2, StartedAt: now},
	}

	err := app.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one attempt may be open")
}

func TestValidateRejectsMissingIdentity(t *testing.T) {
	app := NewApplication("", "job-1", "")
	assert.Error(t, app.Validate())
}

func TestRetryableTransitions(t *testing.T) {
	app := NewApplication("user-1", "job-1", "")
	assert.False(t, app.Retryable(), "pending applications are not retryable")

	_, err := app.AddAttempt()
	require.NoError(t, err)
	app.Status = StatusInProgress
	assert.False(t, app.Retryable())

	require.NoError(t, app.CompleteCurrentAttempt(false, "submission failed", nil))
	assert.True(t, app.Retryable())
}
