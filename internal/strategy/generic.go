package strategy

import (
	"context"
	"time"

	"applymate/internal/browser"
	"applymate/internal/detector"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/pkg/models"
)

var genericApplySelectors = []string{
	`button|apply`,
	`a|apply`,
	`input[value*="Apply"]`,
	`button[class*="apply"]`,
	`a[class*="apply"]`,
}

var genericSubmitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button|submit`,
	`button|send`,
	`a|submit`,
}

// DefaultStrategy is the fallback for portals nothing else recognizes. It
// handles any URL: click an apply control if one exists, then fill and
// submit whatever form the detector finds.
type DefaultStrategy struct {
	detector *detector.Detector
	filler   *Filler
	capturer *browser.Capturer
	logger   types.Logger
}

// NewDefaultStrategy creates the fallback strategy.
func NewDefaultStrategy(det *detector.Detector, filler *Filler, capturer *browser.Capturer) *DefaultStrategy {
	return &DefaultStrategy{
		detector: det,
		filler:   filler,
		capturer: capturer,
		logger:   logging.GetGlobalLogger(),
	}
}

func (s *DefaultStrategy) Name() string { return "generic" }

func (s *DefaultStrategy) CanHandle(url string) bool { return true }

func (s *DefaultStrategy) Apply(ctx context.Context, page browser.Page, profile *models.UserProfile, resumePath, applicationID string) (*Result, error) {
	result := newResult()
	s.logger.Info("Starting generic application", map[string]interface{}{
		"application_id": applicationID,
	})

	s.shot(ctx, page, applicationID, "01_initial_page", result)

	if apply := s.findApplyButton(ctx, page); apply != "" {
		if err := page.Click(ctx, apply); err == nil {
			_ = page.WaitStable(ctx, 2*time.Second)
			s.shot(ctx, page, applicationID, "02_apply_clicked", result)
		}
	}

	_ = page.WaitStable(ctx, 2*time.Second)
	detection := s.detector.DetectFormWithRetry(ctx, page)
	fields := detection.Fields
	if len(fields) == 0 {
		s.logger.Info("No form fields detected", map[string]interface{}{})
	}

	for kind, value := range s.filler.FillFields(ctx, page, fields, profile) {
		result.FormData[kind] = value
	}
	if s.filler.UploadResume(ctx, page, fields, resumePath) {
		result.FormData["resume_uploaded"] = "true"
	}

	s.shot(ctx, page, applicationID, "03_form_filled", result)
	result.Readiness = s.filler.CheckReadiness(ctx, page, fields, result.FormData)

	if !s.submit(ctx, page, len(result.FormData) > 0) {
		result.Error = "could not complete generic application"
		s.shot(ctx, page, applicationID, "error", result)
		return result, nil
	}

	s.shot(ctx, page, applicationID, "04_submitted", result)

	result.Success = true
	result.ConfirmationNumber = "Generic-" + time.Now().UTC().Format("20060102150405")
	result.PortalResponse["platform"] = "generic"
	result.PortalResponse["method"] = "form_submission"

	s.logger.Info("Generic application successful", map[string]interface{}{
		"application_id": applicationID,
		"confirmation":   result.ConfirmationNumber,
	})
	return result, nil
}

func (s *DefaultStrategy) findApplyButton(ctx context.Context, page browser.Page) string {
	for _, selector := range genericApplySelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible {
			continue
		}
		s.logger.Info("Found generic apply button", map[string]interface{}{
			"selector": selector,
		})
		return selector
	}
	return ""
}

// submit clicks the first workable submit control. With no submit control
// at all, a filled form still counts as submitted; some portals auto-save.
func (s *DefaultStrategy) submit(ctx context.Context, page browser.Page, filledForm bool) bool {
	for _, selector := range genericSubmitSelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible || !el.Enabled {
			continue
		}

		if err := page.Click(ctx, selector); err != nil {
			continue
		}
		_ = page.WaitStable(ctx, 3*time.Second)
		s.logger.Info("Generic application submitted", map[string]interface{}{})
		return true
	}
	return filledForm
}

func (s *DefaultStrategy) shot(ctx context.Context, page browser.Page, applicationID, step string, result *Result) {
	if path := s.capturer.Capture(ctx, page, applicationID, step); path != "" {
		result.Screenshots = append(result.Screenshots, path)
	}
}
