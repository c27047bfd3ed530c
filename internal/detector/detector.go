package detector

import (
	"context"
	"fmt"
	"time"

	"applymate/internal/browser"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/internal/retry"
	"applymate/pkg/utils"
)

// FieldKind names a canonical application form field.
type FieldKind string

const (
	FieldFirstName       FieldKind = "first_name"
	FieldLastName        FieldKind = "last_name"
	FieldFullName        FieldKind = "full_name"
	FieldEmail           FieldKind = "email"
	FieldPhone           FieldKind = "phone"
	FieldAddress         FieldKind = "address"
	FieldCity            FieldKind = "city"
	FieldState           FieldKind = "state"
	FieldZipCode         FieldKind = "zip_code"
	FieldResumeUpload    FieldKind = "resume_upload"
	FieldCoverLetter     FieldKind = "cover_letter"
	FieldLinkedIn        FieldKind = "linkedin"
	FieldWebsite         FieldKind = "website"
	FieldExperienceYears FieldKind = "experience_years"
)

// fieldRule pairs a canonical field with its candidate selectors, ordered
// most specific first. The first visible match wins.
type fieldRule struct {
	kind      FieldKind
	selectors []string
}

var fieldRules = []fieldRule{
	{FieldFirstName, []string{
		`input[name*="first" i][name*="name" i]`,
		`input[id*="first" i][id*="name" i]`,
		`input[placeholder*="first" i][placeholder*="name" i]`,
		`input[name="firstName"]`,
		`input[id="firstName"]`,
	}},
	{FieldLastName, []string{
		`input[name*="last" i][name*="name" i]`,
		`input[id*="last" i][id*="name" i]`,
		`input[placeholder*="last" i][placeholder*="name" i]`,
		`input[name="lastName"]`,
		`input[id="lastName"]`,
	}},
	{FieldFullName, []string{
		`input[name*="name" i]:not([name*="first" i]):not([name*="last" i])`,
		`input[id*="name" i]:not([id*="first" i]):not([id*="last" i])`,
		`input[placeholder*="full" i][placeholder*="name" i]`,
		`input[name="name"]`,
		`input[id="name"]`,
	}},
	{FieldEmail, []string{
		`input[type="email"]`,
		`input[name*="email" i]`,
		`input[id*="email" i]`,
		`input[placeholder*="email" i]`,
	}},
	{FieldPhone, []string{
		`input[type="tel"]`,
		`input[name*="phone" i]`,
		`input[id*="phone" i]`,
		`input[placeholder*="phone" i]`,
		`input[name*="mobile" i]`,
		`input[id*="mobile" i]`,
	}},
	{FieldAddress, []string{
		`input[name*="address" i]`,
		`input[id*="address" i]`,
		`textarea[name*="address" i]`,
		`textarea[id*="address" i]`,
	}},
	{FieldCity, []string{
		`input[name*="city" i]`,
		`input[id*="city" i]`,
		`input[placeholder*="city" i]`,
	}},
	{FieldState, []string{
		`select[name*="state" i]`,
		`select[id*="state" i]`,
		`input[name*="state" i]`,
		`input[id*="state" i]`,
	}},
	{FieldZipCode, []string{
		`input[name*="zip" i]`,
		`input[id*="zip" i]`,
		`input[name*="postal" i]`,
		`input[id*="postal" i]`,
		`input[placeholder*="zip" i]`,
	}},
	{FieldResumeUpload, []string{
		`input[type="file"][name*="resume" i]`,
		`input[type="file"][id*="resume" i]`,
		`input[type="file"][name*="cv" i]`,
		`input[type="file"][id*="cv" i]`,
		`input[type="file"]`,
	}},
	{FieldCoverLetter, []string{
		`textarea[name*="cover" i]`,
		`textarea[id*="cover" i]`,
		`textarea[name*="letter" i]`,
		`textarea[id*="letter" i]`,
		`input[type="file"][name*="cover" i]`,
	}},
	{FieldLinkedIn, []string{
		`input[name*="linkedin" i]`,
		`input[id*="linkedin" i]`,
		`input[placeholder*="linkedin" i]`,
	}},
	{FieldWebsite, []string{
		`input[name*="website" i]`,
		`input[id*="website" i]`,
		`input[name*="portfolio" i]`,
		`input[id*="portfolio" i]`,
	}},
	{FieldExperienceYears, []string{
		`select[name*="experience" i]`,
		`select[id*="experience" i]`,
		`input[name*="experience" i]`,
		`input[id*="experience" i]`,
	}},
}

// Selectors like "button|apply" match a button whose visible text contains
// "apply"; see browser.SplitSelector.
var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button|submit`,
	`button|apply`,
	`button|send`,
	`a|submit`,
	`a|apply`,
}

var emailFallbackSelectors = []string{
	`input[type="email"]`,
	`input[name*="email" i]`,
	`input[id*="email" i]`,
	`input[placeholder*="email" i]`,
	`input[name="username"]`,
	`input[id="username"]`,
}

var submitFallbackSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button|submit`,
	`button|apply`,
	`button|send`,
	`a|submit`,
	`a|apply`,
	`[role="button"]|submit`,
}

// Elements every supported application page is expected to carry. Too many
// missing means the portal markup has likely changed.
var expectedElements = []string{
	`form`,
	`input[type="email"]`,
	`button[type="submit"]`,
}

// DetectedField is one resolved form field.
type DetectedField struct {
	Kind     FieldKind
	Selector string
	Element  *browser.Element
}

// PortalChangeResult reports how much of the expected page structure was
// found.
type PortalChangeResult struct {
	ChangesDetected bool
	FoundElements   []string
	MissingElements []string
	Confidence      float64
}

// FormDetectionResult is the outcome of scanning a page for an
// application form.
type FormDetectionResult struct {
	Detected      bool
	Fields        map[FieldKind]DetectedField
	SubmitControl *DetectedField
	FieldCount    int
	HasFileUpload bool
	PortalChanges PortalChangeResult
	DetectedAt    time.Time
}

// Detector scans pages for job application forms.
type Detector struct {
	changeThreshold float64
	formRetry       retry.Config
	logger          types.Logger
}

// New creates a detector. threshold is the fraction of expected elements
// below which the portal is considered changed.
func New(changeThreshold float64) *Detector {
	if changeThreshold <= 0 {
		changeThreshold = 0.7
	}
	return &Detector{
		changeThreshold: changeThreshold,
		formRetry: retry.Config{
			MaxAttempts: 3,
			Strategy:    retry.StrategyFixed,
			BaseDelay:   2 * time.Second,
			MaxDelay:    2 * time.Second,
		},
		logger: logging.GetGlobalLogger(),
	}
}

// SetFormRetry overrides the fixed-delay policy used by
// DetectFormWithRetry.
func (d *Detector) SetFormRetry(cfg retry.Config) {
	d.formRetry = cfg
}

// DetectForm scans the page for an application form. A form counts as
// detected when at least an email field is present. When no form is found
// and the expected page structure is mostly missing, a portal change
// error is returned instead of a plain form error.
func (d *Detector) DetectForm(ctx context.Context, page browser.Page) (*FormDetectionResult, error) {
	d.logger.Info("Detecting application form", map[string]interface{}{
		"url": page.URL(),
	})

	fields := d.DetectFields(ctx, page)
	submit := d.DetectSubmitControl(ctx, page)
	changes := d.DetectPortalChanges(ctx, page, expectedElements)

	_, hasEmail := fields[FieldEmail]
	_, hasUpload := fields[FieldResumeUpload]

	result := &FormDetectionResult{
		Detected:      hasEmail,
		Fields:        fields,
		SubmitControl: submit,
		FieldCount:    len(fields),
		HasFileUpload: hasUpload,
		PortalChanges: changes,
		DetectedAt:    time.Now().UTC(),
	}

	if !result.Detected {
		if changes.ChangesDetected {
			return result, utils.NewPortalChangeError(
				fmt.Sprintf("portal interface may have changed (confidence: %.2f)", changes.Confidence), nil)
		}
		d.logger.Warn("No application form detected", map[string]interface{}{
			"url": page.URL(),
		})
		return result, nil
	}

	d.logger.Info("Application form detected", map[string]interface{}{
		"field_count":     result.FieldCount,
		"has_file_upload": result.HasFileUpload,
	})
	return result, nil
}

// DetectFormWithRetry re-runs detection under the fixed-delay policy while
// the page carries no usable form, covering forms that render late. When
// detection never succeeds the last scan is returned as-is, so callers
// proceed with whatever fields were found instead of aborting the run.
func (d *Detector) DetectFormWithRetry(ctx context.Context, page browser.Page) *FormDetectionResult {
	var result *FormDetectionResult
	fields := map[string]interface{}{"url": page.URL()}

	err := retry.Do(ctx, "detect_form", d.formRetry, fields, func(ctx context.Context) error {
		res, err := d.DetectForm(ctx, page)
		if res != nil {
			result = res
		}
		if err != nil {
			return err
		}
		if !res.Detected {
			return utils.NewFormError("no application form detected", nil)
		}
		return nil
	})
	if err != nil {
		d.logger.Warn("Form detection exhausted retries, continuing with partial results", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if result == nil {
		result = &FormDetectionResult{
			Fields:     make(map[FieldKind]DetectedField),
			DetectedAt: time.Now().UTC(),
		}
	}
	return result
}

// DetectFields resolves every canonical field present on the page, taking
// the first visible match per field. When the whole scan comes up empty it
// falls back to hunting for just an email input.
func (d *Detector) DetectFields(ctx context.Context, page browser.Page) map[FieldKind]DetectedField {
	fields := make(map[FieldKind]DetectedField)

	for _, rule := range fieldRules {
		for _, selector := range rule.selectors {
			el, err := page.Query(ctx, selector)
			if err != nil || el == nil {
				continue
			}
			if !el.Visible {
				continue
			}
			fields[rule.kind] = DetectedField{
				Kind:     rule.kind,
				Selector: selector,
				Element:  el,
			}
			break
		}
	}

	if len(fields) > 0 {
		return fields
	}

	// Fallback: any recognizable email input makes the page workable.
	if field := d.findWithFallback(ctx, page, FieldEmail, emailFallbackSelectors); field != nil {
		fields[FieldEmail] = *field
	}
	return fields
}

// DetectSubmitControl finds the control that submits the form, or nil.
func (d *Detector) DetectSubmitControl(ctx context.Context, page browser.Page) *DetectedField {
	for _, selector := range submitSelectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible {
			continue
		}
		return &DetectedField{Kind: "submit", Selector: selector, Element: el}
	}
	return d.findWithFallback(ctx, page, "submit", submitFallbackSelectors)
}

// DetectPortalChanges checks how much of the expected page structure is
// present and flags a change when the found fraction drops below the
// threshold.
func (d *Detector) DetectPortalChanges(ctx context.Context, page browser.Page, expected []string) PortalChangeResult {
	result := PortalChangeResult{}

	for _, selector := range expected {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil {
			result.MissingElements = append(result.MissingElements, selector)
			continue
		}
		result.FoundElements = append(result.FoundElements, selector)
	}

	if len(expected) > 0 {
		result.Confidence = float64(len(result.FoundElements)) / float64(len(expected))
	}
	result.ChangesDetected = result.Confidence < d.changeThreshold

	if result.ChangesDetected {
		d.logger.Warn("Portal structure differs from expectations", map[string]interface{}{
			"confidence": result.Confidence,
			"missing":    result.MissingElements,
		})
	}
	return result
}

func (d *Detector) findWithFallback(ctx context.Context, page browser.Page, kind FieldKind, selectors []string) *DetectedField {
	for _, selector := range selectors {
		el, err := page.Query(ctx, selector)
		if err != nil || el == nil || !el.Visible {
			continue
		}
		d.logger.Info("Found element with fallback selector", map[string]interface{}{
			"kind":     string(kind),
			"selector": selector,
		})
		return &DetectedField{Kind: kind, Selector: selector, Element: el}
	}
	d.logger.Warn("No element found", map[string]interface{}{"kind": string(kind)})
	return nil
}
