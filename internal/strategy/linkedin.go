package strategy

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"applymate/internal/browser"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/pkg/models"
)

// Selectors like "button|easy apply" match by visible text; see
// browser.SplitSelector.
var easyApplySelectors = []string{
	`button|easy apply`,
	`button[aria-label*="Easy Apply"]`,
	`.jobs-apply-button|easy apply`,
	`.jobs-s-apply button|easy apply`,
}

var linkedinPhoneSelectors = []string{
	`input[id*="phone"]`,
	`input[name*="phone"]`,
	`input[aria-label*="phone"]`,
}

var linkedinResumeSelectors = []string{
	`input[type="file"][id*="resume"]`,
	`input[type="file"][name*="resume"]`,
	`input[type="file"][aria-label*="resume"]`,
	`input[type="file"]`,
}

var linkedinSubmitSelectors = []string{
	`button|submit application`,
	`button|submit`,
	`button|send application`,
	`button[aria-label*="Submit"]`,
	`button[type="submit"]`,
}

var linkedinConfirmationSelectors = []string{
	`.artdeco-inline-feedback--success`,
	`[data-test-modal-id="application-submitted"]`,
}

// LinkedInStrategy drives the LinkedIn Easy Apply flow.
type LinkedInStrategy struct {
	filler   *Filler
	capturer *browser.Capturer
	logger   types.Logger
}

// NewLinkedInStrategy creates the LinkedIn strategy.
func NewLinkedInStrategy(filler *Filler, capturer *browser.Capturer) *LinkedInStrategy {
	return &LinkedInStrategy{
		filler:   filler,
		capturer: capturer,
		logger:   logging.GetGlobalLogger(),
	}
}

func (s *LinkedInStrategy) Name() string { return "linkedin" }

func (s *LinkedInStrategy) CanHandle(url string) bool {
	return strings.Contains(strings.ToLower(url), "linkedin.com")
}

// Apply runs the Easy Apply flow: find the button, open the modal, fill
// the form, submit, and read back a confirmation.
func (s *LinkedInStrategy) Apply(ctx context.Context, page browser.Page, profile *models.UserProfile, resumePath, applicationID string) (*Result, error) {
	result := newResult()
	s.logger.Info("Starting LinkedIn application", map[string]interface{}{
		"application_id": applicationID,
	})

	s.shot(ctx, page, applicationID, "01_initial_page", result)

	easyApply := s.findEasyApply(ctx, page)
	if easyApply == "" {
		result.Error = "Easy Apply button not found - may require external application"
		return result, nil
	}

	if err := page.Click(ctx, easyApply); err != nil {
		result.Error = "could not click Easy Apply button"
		s.shot(ctx, page, applicationID, "error", result)
		return result, nil
	}
	_ = page.WaitStable(ctx, 2*time.Second)

	s.shot(ctx, page, applicationID, "02_easy_apply_modal", result)

	s.fillForm(ctx, page, profile, resumePath, result)

	s.shot(ctx, page, applicationID, "03_form_filled", result)
	result.Readiness = s.filler.CheckReadiness(ctx, page, nil, result.FormData)

	if !s.submit(ctx, page) {
		result.Error = "failed to submit LinkedIn application"
		s.shot(ctx, page, applicationID, "error", result)
		return result, nil
	}

	s.shot(ctx, page, applicationID, "04_submitted", result)

	result.Success = true
	result.ConfirmationNumber = s.confirmation(ctx, page)
	result.PortalResponse["platform"] = "linkedin"
	result.PortalResponse["method"] = "easy_apply"

	s.logger.Info("LinkedIn application successful", map[string]interface{}{
		"application_id": applicationID,
		"confirmation":   result.ConfirmationNumber,
	})
	return result, nil
}

func (s *LinkedInStrategy) findEasyApply(ctx context.Context, page browser.Page) string {
	for _, selector := range easyApplySelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil {
			continue
		}
		if el.Visible && el.Enabled {
			s.logger.Info("Found Easy Apply button", map[string]interface{}{
				"selector": selector,
			})
			return selector
		}
	}
	return ""
}

func (s *LinkedInStrategy) fillForm(ctx context.Context, page browser.Page, profile *models.UserProfile, resumePath string, result *Result) {
	_ = page.WaitStable(ctx, 2*time.Second)

	// Phone number
	if phone := profile.PersonalInfo.Phone; phone != "" {
		for _, selector := range linkedinPhoneSelectors {
			el, err := page.Query(ctx, selector)
			if err != nil || el == nil || !el.Visible {
				continue
			}
			if err := page.Fill(ctx, selector, phone); err == nil {
				result.FormData["phone"] = phone
				s.logger.Info("Filled phone number", map[string]interface{}{})
			}
			break
		}
	}

	// Resume upload
	if resumePath != "" {
		uploaded := false
		for _, selector := range linkedinResumeSelectors {
			el, err := page.Query(ctx, selector)
			if err != nil || el == nil {
				continue
			}
			if err := s.filler.Uploads().Upload(ctx, page, selector, resumePath); err == nil {
				uploaded = true
			}
			break
		}
		if uploaded {
			result.FormData["resume_uploaded"] = "true"
		} else {
			result.FormData["resume_uploaded"] = "false"
		}
	}

	s.answerQuestions(ctx, page, profile, result)
}

// answerQuestions handles the common Easy Apply qualification questions:
// work authorization yes, sponsorship no, years of experience from the
// profile.
func (s *LinkedInStrategy) answerQuestions(ctx context.Context, page browser.Page, profile *models.UserProfile, result *Result) {
	if el, err := page.Query(ctx, `fieldset|authorized`); err == nil && el != nil {
		if err := page.Check(ctx, `fieldset input[value="Yes"]`); err == nil {
			result.FormData["work_authorization"] = "Yes"
			s.logger.Info("Answered work authorization question", map[string]interface{}{})
		}
	}

	if el, err := page.Query(ctx, `fieldset|sponsorship`); err == nil && el != nil {
		if err := page.Check(ctx, `fieldset input[value="No"]`); err == nil {
			result.FormData["sponsorship"] = "No"
			s.logger.Info("Answered sponsorship question", map[string]interface{}{})
		}
	}

	experienceSelectors := []string{
		`input[id*="experience"]`,
		`select[id*="experience"]`,
		`input[name*="experience"]`,
	}
	years := profile.YearsOfExperience()
	for _, selector := range experienceSelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible {
			continue
		}

		value := strconv.Itoa(years)
		var fillErr error
		if el.Tag == "select" {
			fillErr = page.SelectOption(ctx, selector, value)
		} else {
			fillErr = page.Fill(ctx, selector, value)
		}
		if fillErr == nil {
			result.FormData["years_experience"] = value
			s.logger.Info("Filled experience", map[string]interface{}{"years": years})
		}
		break
	}
}

func (s *LinkedInStrategy) submit(ctx context.Context, page browser.Page) bool {
	for _, selector := range linkedinSubmitSelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible || !el.Enabled {
			continue
		}

		if err := page.Click(ctx, selector); err != nil {
			continue
		}
		_ = page.WaitStable(ctx, 3*time.Second)

		if s.hasSuccessFeedback(ctx, page) {
			s.logger.Info("LinkedIn application submitted successfully", map[string]interface{}{})
			return true
		}
		// No clear success indicator; assume success when nothing errored.
		return true
	}
	return false
}

func (s *LinkedInStrategy) hasSuccessFeedback(ctx context.Context, page browser.Page) bool {
	if el, err := page.Query(ctx, `.artdeco-inline-feedback--success`); err == nil && el != nil && el.Visible {
		return true
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	text := strings.ToLower(html)
	for _, phrase := range []string{"application sent", "application submitted", "thank you"} {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// confirmation extracts a confirmation reference from the page, falling
// back to a synthesized timestamp reference.
func (s *LinkedInStrategy) confirmation(ctx context.Context, page browser.Page) string {
	for _, selector := range linkedinConfirmationSelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil {
			continue
		}
		if text := strings.TrimSpace(el.Text); text != "" && containsDigit(text) {
			return text
		}
	}
	return "LinkedIn-" + time.Now().UTC().Format("20060102150405")
}

func (s *LinkedInStrategy) shot(ctx context.Context, page browser.Page, applicationID, step string, result *Result) {
	if path := s.capturer.Capture(ctx, page, applicationID, step); path != "" {
		result.Screenshots = append(result.Screenshots, path)
	}
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
