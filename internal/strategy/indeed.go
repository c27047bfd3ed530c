package strategy

import (
	"context"
	"strings"
	"time"

	"applymate/internal/browser"
	"applymate/internal/detector"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/pkg/models"
)

var indeedApplySelectors = []string{
	`button|apply now`,
	`a|apply now`,
	`.jobsearch-IndeedApplyButton`,
	`[data-jk] button|apply`,
}

var indeedSubmitSelectors = []string{
	`button|submit application`,
	`button|submit`,
	`button[type="submit"]`,
	`input[type="submit"]`,
}

// IndeedStrategy drives Indeed's direct apply flow using the generic
// field detector for the form itself.
type IndeedStrategy struct {
	detector *detector.Detector
	filler   *Filler
	capturer *browser.Capturer
	logger   types.Logger
}

// NewIndeedStrategy creates the Indeed strategy.
func NewIndeedStrategy(det *detector.Detector, filler *Filler, capturer *browser.Capturer) *IndeedStrategy {
	return &IndeedStrategy{
		detector: det,
		filler:   filler,
		capturer: capturer,
		logger:   logging.GetGlobalLogger(),
	}
}

func (s *IndeedStrategy) Name() string { return "indeed" }

func (s *IndeedStrategy) CanHandle(url string) bool {
	return strings.Contains(strings.ToLower(url), "indeed.com")
}

func (s *IndeedStrategy) Apply(ctx context.Context, page browser.Page, profile *models.UserProfile, resumePath, applicationID string) (*Result, error) {
	result := newResult()
	s.logger.Info("Starting Indeed application", map[string]interface{}{
		"application_id": applicationID,
	})

	s.shot(ctx, page, applicationID, "01_initial_page", result)

	apply := s.findApplyButton(ctx, page)
	if apply == "" {
		result.Error = "apply button not found on Indeed"
		return result, nil
	}

	if err := page.Click(ctx, apply); err != nil {
		result.Error = "could not click Indeed apply button"
		s.shot(ctx, page, applicationID, "error", result)
		return result, nil
	}
	_ = page.WaitStable(ctx, 2*time.Second)

	s.shot(ctx, page, applicationID, "02_apply_clicked", result)

	detection := s.detector.DetectFormWithRetry(ctx, page)
	fields := detection.Fields
	for kind, value := range s.filler.FillFields(ctx, page, fields, profile) {
		result.FormData[kind] = value
	}
	if s.filler.UploadResume(ctx, page, fields, resumePath) {
		result.FormData["resume_uploaded"] = "true"
	}

	s.shot(ctx, page, applicationID, "03_form_filled", result)
	result.Readiness = s.filler.CheckReadiness(ctx, page, fields, result.FormData)

	if !s.submit(ctx, page) {
		result.Error = "failed to submit Indeed application"
		s.shot(ctx, page, applicationID, "error", result)
		return result, nil
	}

	s.shot(ctx, page, applicationID, "04_submitted", result)

	result.Success = true
	result.ConfirmationNumber = "Indeed-" + time.Now().UTC().Format("20060102150405")
	result.PortalResponse["platform"] = "indeed"
	result.PortalResponse["method"] = "direct_apply"

	s.logger.Info("Indeed application successful", map[string]interface{}{
		"application_id": applicationID,
		"confirmation":   result.ConfirmationNumber,
	})
	return result, nil
}

func (s *IndeedStrategy) findApplyButton(ctx context.Context, page browser.Page) string {
	for _, selector := range indeedApplySelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible {
			continue
		}
		s.logger.Info("Found Indeed apply button", map[string]interface{}{
			"selector": selector,
		})
		return selector
	}
	return ""
}

func (s *IndeedStrategy) submit(ctx context.Context, page browser.Page) bool {
	for _, selector := range indeedSubmitSelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible || !el.Enabled {
			continue
		}

		if err := page.Click(ctx, selector); err != nil {
			continue
		}
		_ = page.WaitStable(ctx, 3*time.Second)

		if s.hasSuccessFeedback(ctx, page) {
			s.logger.Info("Indeed application submitted successfully", map[string]interface{}{})
		}
		return true
	}
	return false
}

func (s *IndeedStrategy) hasSuccessFeedback(ctx context.Context, page browser.Page) bool {
	html, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	text := strings.ToLower(html)
	for _, phrase := range []string{"application submitted", "thank you", "your application has been sent"} {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func (s *IndeedStrategy) shot(ctx context.Context, page browser.Page, applicationID, step string, result *Result) {
	if path := s.capturer.Capture(ctx, page, applicationID, step); path != "" {
		result.Screenshots = append(result.Screenshots, path)
	}
}
