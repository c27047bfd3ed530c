package strategy

import (
	"context"
	"strings"

	"applymate/internal/browser"
	"applymate/internal/detector"
)

// Selectors portals commonly mark inline validation failures with.
var validationErrorSelectors = []string{
	`.error`,
	`.invalid`,
	`[class*="error"]`,
	`[class*="invalid"]`,
}

// ReadinessReport summarizes the form state right before submission:
// whether every DOM-required field got a value, and any visible validation
// errors the portal is already showing. Findings are recorded on the
// attempt for later inspection but never gate a submission.
type ReadinessReport struct {
	Ready            bool
	MissingRequired  []string
	ValidationErrors []string
}

// CheckReadiness inspects the filled form before the submit click. fields
// is the detection result that drove the fill; filled holds the values
// actually written, keyed by field kind.
func (f *Filler) CheckReadiness(ctx context.Context, page browser.Page, fields map[detector.FieldKind]detector.DetectedField, filled map[string]string) *ReadinessReport {
	report := &ReadinessReport{}

	for kind, field := range fields {
		if field.Element == nil || !field.Element.Required {
			continue
		}
		if _, ok := filled[string(kind)]; !ok {
			report.MissingRequired = append(report.MissingRequired, string(kind))
		}
	}

	seen := make(map[string]bool)
	for _, selector := range validationErrorSelectors {
		elements, err := page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			text := strings.TrimSpace(el.Text)
			if text == "" || !el.Visible || seen[text] {
				continue
			}
			seen[text] = true
			report.ValidationErrors = append(report.ValidationErrors, text)
		}
	}

	report.Ready = len(report.MissingRequired) == 0 && len(report.ValidationErrors) == 0
	if !report.Ready {
		f.logger.Warn("Form not fully ready before submission", map[string]interface{}{
			"missing_required":  report.MissingRequired,
			"validation_errors": report.ValidationErrors,
		})
	}
	return report
}
