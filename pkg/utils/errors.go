package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Severity classifies how an automation error should be handled by the
// retry engine and the orchestrator.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "medium"
	}
}

// ErrorKind identifies the component an automation error originated from
type ErrorKind string

const (
	KindBrowser      ErrorKind = "browser"
	KindNavigation   ErrorKind = "navigation"
	KindNetwork      ErrorKind = "network"
	KindForm         ErrorKind = "form"
	KindFileUpload   ErrorKind = "file_upload"
	KindPortalChange ErrorKind = "portal_change"
)

// AutomationError is the error type carried through the submission pipeline.
// Severity decides retry behaviour: low/medium are retried, high/critical
// propagate immediately.
type AutomationError struct {
	Kind     ErrorKind
	Severity Severity
	Message  string
	Err      error
}

func (e *AutomationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// NewBrowserError reports a browser process or session level failure.
// These are usually fatal for the run and are not retried.
func NewBrowserError(message string, err error) *AutomationError {
	return &AutomationError{Kind: KindBrowser, Severity: SeverityCritical, Message: message, Err: err}
}

// NewNavigationError reports a page navigation failure
func NewNavigationError(message string, severity Severity, err error) *AutomationError {
	return &AutomationError{Kind: KindNavigation, Severity: severity, Message: message, Err: err}
}

// NewNetworkError reports a connection-level failure
func NewNetworkError(message string, err error) *AutomationError {
	return &AutomationError{Kind: KindNetwork, Severity: SeverityMedium, Message: message, Err: err}
}

// NewFormError reports a form detection or filling failure
func NewFormError(message string, err error) *AutomationError {
	return &AutomationError{Kind: KindForm, Severity: SeverityMedium, Message: message, Err: err}
}

// NewFileUploadError reports a file upload failure
func NewFileUploadError(message string, severity Severity, err error) *AutomationError {
	return &AutomationError{Kind: KindFileUpload, Severity: severity, Message: message, Err: err}
}

// NewPortalChangeError flags a suspected portal layout regression so it can
// be distinguished from ordinary transient failures across a fleet of runs.
func NewPortalChangeError(message string, err error) *AutomationError {
	return &AutomationError{Kind: KindPortalChange, Severity: SeverityMedium, Message: message, Err: err}
}

// KindOf returns the automation error kind, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var ae *AutomationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// SeverityOf returns the severity attached to an error. Foreign errors are
// classified by message patterns the way transient portal failures usually
// present themselves.
func SeverityOf(err error) Severity {
	var ae *AutomationError
	if errors.As(err, &ae) {
		return ae.Severity
	}

	msg := strings.ToLower(err.Error())

	for _, pattern := range []string{"critical", "fatal", "crash"} {
		if strings.Contains(msg, pattern) {
			return SeverityCritical
		}
	}
	for _, pattern := range []string{"authentication", "authorization", "permission"} {
		if strings.Contains(msg, pattern) {
			return SeverityHigh
		}
	}
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "rate limit", "502", "503", "504"} {
		if strings.Contains(msg, pattern) {
			return SeverityMedium
		}
	}
	return SeverityMedium
}

// IsRetryable reports whether the retry engine may re-run the failed
// operation automatically.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch SeverityOf(err) {
	case SeverityLow, SeverityMedium:
		return true
	default:
		return false
	}
}
