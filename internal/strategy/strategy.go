package strategy

import (
	"context"
	"strings"

	"applymate/internal/browser"
	"applymate/internal/detector"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/pkg/models"
)

// Result is the outcome of running a portal strategy against a job page.
// A soft failure (button not found, form incomplete) produces Success=false
// with Error set; only infrastructure problems surface as Go errors.
type Result struct {
	Success            bool
	ConfirmationNumber string
	Screenshots        []string
	FormData           map[string]string
	PortalResponse     map[string]string
	Readiness          *ReadinessReport
	Error              string
}

// PortalStrategy automates one job portal's application flow.
type PortalStrategy interface {
	// Name identifies the strategy in logs and portal responses.
	Name() string

	// CanHandle reports whether this strategy knows the portal behind the
	// URL.
	CanHandle(url string) bool

	// Apply drives the application flow on an already-navigated page.
	Apply(ctx context.Context, page browser.Page, profile *models.UserProfile, resumePath, applicationID string) (*Result, error)
}

// Manager selects the strategy for a job URL. The default strategy is
// always last and handles everything.
type Manager struct {
	strategies []PortalStrategy
	logger     types.Logger
}

// NewManager wires the built-in strategies with their shared helpers.
func NewManager(det *detector.Detector, capturer *browser.Capturer) *Manager {
	filler := NewFiller(det)
	return &Manager{
		strategies: []PortalStrategy{
			NewLinkedInStrategy(filler, capturer),
			NewIndeedStrategy(det, filler, capturer),
			NewDefaultStrategy(det, filler, capturer),
		},
		logger: logging.GetGlobalLogger(),
	}
}

// GetStrategy returns the first strategy that can handle the URL.
func (m *Manager) GetStrategy(url string) PortalStrategy {
	for _, s := range m.strategies {
		if s.CanHandle(url) {
			m.logger.Info("Selected portal strategy", map[string]interface{}{
				"strategy": s.Name(),
				"url":      url,
			})
			return s
		}
	}
	return m.strategies[len(m.strategies)-1]
}

// DetectPortal names the portal behind a job URL.
func DetectPortal(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "linkedin.com"):
		return "linkedin"
	case strings.Contains(lower, "indeed.com"):
		return "indeed"
	case strings.Contains(lower, "glassdoor.com"):
		return "glassdoor"
	case strings.Contains(lower, "monster.com"):
		return "monster"
	case strings.Contains(lower, "ziprecruiter.com"):
		return "ziprecruiter"
	default:
		return "generic"
	}
}

func newResult() *Result {
	return &Result{
		FormData:       make(map[string]string),
		PortalResponse: make(map[string]string),
	}
}
