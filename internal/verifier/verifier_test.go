package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applymate/internal/browser/browsertest"
)

func TestEvaluateSuccessPhrases(t *testing.T) {
	result := Evaluate(PageState{
		SuccessIndicatorsFound: []string{"thank you for your application"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, VerdictSuccess, result.Verdict)
	assert.Contains(t, result.Message, "thank you for your application")
}

func TestEvaluateErrorPhrasesWin(t *testing.T) {
	result := Evaluate(PageState{
		SuccessIndicatorsFound: []string{"application received"},
		ErrorIndicatorsFound:   []string{"required field"},
	})

	assert.False(t, result.Success)
	assert.Equal(t, VerdictFailure, result.Verdict)
}

func TestEvaluateNavigationAloneIsSuccess(t *testing.T) {
	result := Evaluate(PageState{URLChanged: true})

	assert.True(t, result.Success)
	assert.Equal(t, VerdictSuccess, result.Verdict)
	assert.Contains(t, result.Message, "navigation detected")
}

func TestEvaluateNoSignalsIsUnclear(t *testing.T) {
	result := Evaluate(PageState{})

	assert.False(t, result.Success)
	assert.Equal(t, VerdictUnclear, result.Verdict)
}

func TestConfidenceScoring(t *testing.T) {
	tests := []struct {
		name  string
		state PageState
		want  float64
	}{
		{
			name:  "nothing observed",
			state: PageState{},
			want:  0,
		},
		{
			name: "two success phrases with navigation and success elements",
			state: PageState{
				SuccessIndicatorsFound: []string{"application received", "successfully submitted"},
				URLChanged:             true,
				SuccessElements:        1,
			},
			want: 0.95,
		},
		{
			name: "success phrase contribution caps at three phrases",
			state: PageState{
				SuccessIndicatorsFound: []string{"a", "b", "c", "d", "e"},
			},
			want: 0.6,
		},
		{
			name: "errors pull the score down",
			state: PageState{
				URLChanged:           true,
				ErrorIndicatorsFound: []string{"invalid"},
				ErrorElements:        2,
			},
			want: 0, // 0.2 - 0.2 - 0.15 clamps at zero
		},
		{
			name: "disabled submit adds a small boost",
			state: PageState{
				URLChanged:            true,
				DisabledSubmitButtons: 1,
			},
			want: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(tt.state)
			assert.InDelta(t, tt.want, result.Confidence, 1e-9)
		})
	}
}

func TestCaptureScansPageText(t *testing.T) {
	page := browsertest.NewFakePage("https://jobs.example.com/confirm")
	page.PageTitle = "Application Complete"
	page.PageHTML = `<html><body>
		<div class="confirmation">Thank You For Your Application!</div>
		<form><button type="submit" disabled>Submit</button></form>
	</body></html>`

	v := New()
	state, err := v.Capture(context.Background(), page, "https://jobs.example.com/apply", "Apply", 100*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, state.URLChanged)
	assert.True(t, state.TitleChanged)
	assert.Equal(t, []string{"thank you for your application"}, state.SuccessIndicatorsFound)
	assert.Empty(t, state.ErrorIndicatorsFound)
	assert.Equal(t, 1, state.FormsPresent)
	assert.Equal(t, 1, state.SubmitButtonsPresent)
	assert.Equal(t, 1, state.DisabledSubmitButtons)
	assert.Equal(t, 1, state.SuccessElements)
}

func TestVerifyFailurePage(t *testing.T) {
	page := browsertest.NewFakePage("https://jobs.example.com/apply")
	page.PageTitle = "Apply"
	page.PageHTML = `<html><body>
		<div class="error">Please correct the following: required field missing</div>
		<form></form>
	</body></html>`

	v := New()
	result, err := v.Verify(context.Background(), page, "https://jobs.example.com/apply", "Apply", 50*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, VerdictFailure, result.Verdict)
	assert.NotEmpty(t, result.State.ErrorIndicatorsFound)
	assert.Equal(t, float64(0), result.Confidence)
}
