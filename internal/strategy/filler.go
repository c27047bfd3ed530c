package strategy

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"applymate/internal/browser"
	"applymate/internal/detector"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
	"applymate/internal/retry"
	"applymate/pkg/models"
	"applymate/pkg/utils"
)

// Filler fills detected form fields from a user profile. Shared by all
// strategies.
type Filler struct {
	detector *detector.Detector
	uploads  *FileUploadHandler
	logger   types.Logger
}

// NewFiller creates a form filler around the field detector.
func NewFiller(det *detector.Detector) *Filler {
	return &Filler{
		detector: det,
		uploads:  NewFileUploadHandler(),
		logger:   logging.GetGlobalLogger(),
	}
}

// profileValue maps a canonical field to the profile data that belongs in
// it. Empty values are skipped.
func profileValue(kind detector.FieldKind, profile *models.UserProfile) string {
	info := profile.PersonalInfo
	switch kind {
	case detector.FieldFirstName:
		return info.FirstName
	case detector.FieldLastName:
		return info.LastName
	case detector.FieldFullName:
		return info.FullName()
	case detector.FieldEmail:
		return info.Email
	case detector.FieldPhone:
		return info.Phone
	case detector.FieldAddress:
		return info.Address
	case detector.FieldCity:
		return info.City
	case detector.FieldState:
		return info.State
	case detector.FieldZipCode:
		return info.ZipCode
	case detector.FieldLinkedIn:
		return info.LinkedIn
	case detector.FieldWebsite:
		return info.Website
	case detector.FieldExperienceYears:
		return strconv.Itoa(profile.YearsOfExperience())
	default:
		return ""
	}
}

// FillFields fills every detected field that has a profile value, choosing
// the interaction by element type. Individual field failures are logged
// and skipped. Returns the values actually written, keyed by field kind.
func (f *Filler) FillFields(ctx context.Context, page browser.Page, fields map[detector.FieldKind]detector.DetectedField, profile *models.UserProfile) map[string]string {
	filled := make(map[string]string)

	for kind, field := range fields {
		value := profileValue(kind, profile)
		if value == "" {
			continue
		}

		var err error
		switch {
		case field.Element.Tag == "select":
			err = page.SelectOption(ctx, field.Selector, value)
		case field.Element.Type == "checkbox" || field.Element.Type == "radio":
			err = page.Check(ctx, field.Selector)
		case field.Element.Type == "file":
			continue // file inputs go through the upload handler
		default:
			err = page.Fill(ctx, field.Selector, value)
		}

		if err != nil {
			f.logger.Warn("Failed to fill field", map[string]interface{}{
				"field": string(kind),
				"error": err.Error(),
			})
			continue
		}

		filled[string(kind)] = value
		f.logger.Info("Filled field", map[string]interface{}{"field": string(kind)})
	}

	return filled
}

// UploadResume attaches the resume file when the page carries an upload
// field. Returns whether an upload happened.
func (f *Filler) UploadResume(ctx context.Context, page browser.Page, fields map[detector.FieldKind]detector.DetectedField, resumePath string) bool {
	if resumePath == "" {
		return false
	}
	field, ok := fields[detector.FieldResumeUpload]
	if !ok {
		return false
	}

	if err := f.uploads.Upload(ctx, page, field.Selector, resumePath); err != nil {
		f.logger.Warn("Resume upload failed", map[string]interface{}{
			"selector": field.Selector,
			"error":    err.Error(),
		})
		return false
	}
	return true
}

// Uploads exposes the shared upload handler for strategy-specific flows.
func (f *Filler) Uploads() *FileUploadHandler {
	return f.uploads
}

// Detector exposes the shared field detector.
func (f *Filler) Detector() *detector.Detector {
	return f.detector
}

// FileUploadHandler attaches local files to file inputs with verification
// and linear-backoff retries.
type FileUploadHandler struct {
	logger types.Logger
	cfg    retry.Config
}

// NewFileUploadHandler creates an upload handler with the standard retry
// behavior.
func NewFileUploadHandler() *FileUploadHandler {
	return &FileUploadHandler{
		logger: logging.GetGlobalLogger(),
		cfg: retry.Config{
			MaxAttempts: 3,
			Strategy:    retry.StrategyLinear,
			BaseDelay:   time.Second,
			MaxDelay:    60 * time.Second,
			Jitter:      true,
		},
	}
}

// Upload sets the file on the input and verifies the input actually holds
// it. A missing local file is a high severity failure and is not retried.
func (h *FileUploadHandler) Upload(ctx context.Context, page browser.Page, selector, filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return utils.NewFileUploadError(fmt.Sprintf("file not found: %s", filePath), utils.SeverityHigh, err)
	}

	fields := map[string]interface{}{"selector": selector, "path": filePath}
	return retry.Do(ctx, "file_upload", h.cfg, fields, func(ctx context.Context) error {
		el, err := page.Query(ctx, selector)
		if err != nil {
			return utils.NewFileUploadError("file input lookup failed", utils.SeverityMedium, err)
		}
		if el == nil {
			return utils.NewFileUploadError(fmt.Sprintf("file input not found: %s", selector), utils.SeverityMedium, nil)
		}

		if err := page.SetFiles(ctx, selector, []string{filePath}); err != nil {
			return utils.NewFileUploadError("file upload failed", utils.SeverityMedium, err)
		}

		count, err := page.FileCount(ctx, selector)
		if err != nil {
			return utils.NewFileUploadError("file upload verification failed", utils.SeverityMedium, err)
		}
		if count == 0 {
			return utils.NewFileUploadError("file upload verification failed", utils.SeverityMedium, nil)
		}

		h.logger.Info("File uploaded", map[string]interface{}{
			"path":     filePath,
			"selector": selector,
		})
		return nil
	})
}
