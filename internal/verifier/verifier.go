package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"applymate/internal/browser"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
)

var successIndicators = []string{
	"thank you for your application",
	"application submitted successfully",
	"your application has been received",
	"application received",
	"successfully submitted",
	"thank you for applying",
	"application complete",
	"we have received your application",
	"your resume has been submitted",
}

var errorIndicators = []string{
	"error submitting",
	"submission failed",
	"please correct the following",
	"required field",
	"invalid",
	"application not submitted",
}

// Verdict classifies a submission outcome.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
	VerdictUnclear Verdict = "unclear"
)

// PageState is everything observed about the page after a submission
// attempt. It feeds the pure Evaluate step.
type PageState struct {
	InitialURL   string
	InitialTitle string
	FinalURL     string
	FinalTitle   string
	URLChanged   bool
	TitleChanged bool

	SuccessIndicatorsFound []string
	ErrorIndicatorsFound   []string

	FormsPresent          int
	SubmitButtonsPresent  int
	DisabledSubmitButtons int
	ProgressIndicators    int
	SuccessElements       int
	ErrorElements         int
}

// Result is a verified submission outcome with a confidence score in
// [0, 1].
type Result struct {
	Success    bool
	Verdict    Verdict
	Message    string
	Confidence float64
	State      PageState
}

// Verifier checks whether a form submission actually went through.
type Verifier struct {
	logger types.Logger
}

// New creates a submission verifier.
func New() *Verifier {
	return &Verifier{logger: logging.GetGlobalLogger()}
}

// Verify waits for the page to settle after a submit click, captures its
// state, and evaluates the outcome.
func (v *Verifier) Verify(ctx context.Context, page browser.Page, initialURL, initialTitle string, settle time.Duration) (*Result, error) {
	state, err := v.Capture(ctx, page, initialURL, initialTitle, settle)
	if err != nil {
		return nil, err
	}

	result := Evaluate(*state)
	v.logger.Info("Submission verification", map[string]interface{}{
		"verdict":    string(result.Verdict),
		"confidence": result.Confidence,
		"message":    result.Message,
	})
	return result, nil
}

// Capture observes the page state after submission. A settle timeout that
// elapses is not an error; the page simply may not have navigated.
func (v *Verifier) Capture(ctx context.Context, page browser.Page, initialURL, initialTitle string, settle time.Duration) (*PageState, error) {
	if err := page.WaitStable(ctx, settle); err != nil {
		v.logger.Debug("Page did not settle before timeout", map[string]interface{}{
			"error": err.Error(),
		})
	}

	finalURL := page.URL()
	finalTitle, err := page.Title(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page title: %w", err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	state := &PageState{
		InitialURL:   initialURL,
		InitialTitle: initialTitle,
		FinalURL:     finalURL,
		FinalTitle:   finalTitle,
		URLChanged:   finalURL != initialURL,
		TitleChanged: finalTitle != initialTitle,
	}

	pageText := strings.ToLower(html)
	for _, indicator := range successIndicators {
		if strings.Contains(pageText, indicator) {
			state.SuccessIndicatorsFound = append(state.SuccessIndicatorsFound, indicator)
		}
	}
	for _, indicator := range errorIndicators {
		if strings.Contains(pageText, indicator) {
			state.ErrorIndicatorsFound = append(state.ErrorIndicatorsFound, indicator)
		}
	}

	if err := inspectDOM(html, state); err != nil {
		v.logger.Warn("Page state inspection failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return state, nil
}

// inspectDOM counts the structural signals used by the confidence score.
func inspectDOM(html string, state *PageState) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	state.FormsPresent = doc.Find("form").Length()

	submits := doc.Find(`button[type="submit"], input[type="submit"]`)
	state.SubmitButtonsPresent = submits.Length()
	submits.Each(func(_ int, s *goquery.Selection) {
		if _, disabled := s.Attr("disabled"); disabled {
			state.DisabledSubmitButtons++
		}
	})

	state.ProgressIndicators = doc.Find(`.loading, .spinner, .progress, [class*="loading"], [class*="spinner"]`).Length()
	state.SuccessElements = doc.Find(`.success, .confirmation, .thank-you, [class*="success"], [class*="confirmation"]`).Length()
	state.ErrorElements = doc.Find(`.error, .alert, .warning, [class*="error"], [class*="alert"]`).Length()
	return nil
}

// Evaluate turns an observed page state into a verdict. Textual success
// phrases win unless error phrases are also present; error phrases force
// failure; otherwise navigation alone counts as likely success.
func Evaluate(state PageState) *Result {
	hasSuccess := len(state.SuccessIndicatorsFound) > 0
	hasError := len(state.ErrorIndicatorsFound) > 0
	navigated := state.URLChanged || state.TitleChanged

	var verdict Verdict
	var message string
	switch {
	case hasSuccess && !hasError:
		verdict = VerdictSuccess
		message = fmt.Sprintf("application submitted successfully, found indicators: %v", state.SuccessIndicatorsFound)
	case hasError:
		verdict = VerdictFailure
		message = fmt.Sprintf("application submission failed, found errors: %v", state.ErrorIndicatorsFound)
	case navigated:
		verdict = VerdictSuccess
		message = "application likely submitted (page navigation detected)"
	default:
		verdict = VerdictUnclear
		message = "application submission unclear (no clear indicators found)"
	}

	return &Result{
		Success:    verdict == VerdictSuccess,
		Verdict:    verdict,
		Message:    message,
		Confidence: confidence(state),
		State:      state,
	}
}

func confidence(state PageState) float64 {
	score := 0.0

	successBoost := float64(len(state.SuccessIndicatorsFound)) * 0.3
	if successBoost > 0.6 {
		successBoost = 0.6
	}
	score += successBoost

	if state.URLChanged || state.TitleChanged {
		score += 0.2
	}
	if state.SuccessElements > 0 {
		score += 0.15
	}
	if state.DisabledSubmitButtons > 0 {
		score += 0.1
	}

	score -= float64(len(state.ErrorIndicatorsFound)) * 0.2
	if state.ErrorElements > 0 {
		score -= 0.15
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
