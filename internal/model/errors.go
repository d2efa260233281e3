package model

import (
	"errors"
	"fmt"
)

// ErrCanceled is returned when an analysis is cancelled before its report is ready
var ErrCanceled = errors.New("analysis canceled")

// InvalidMediaTypeError is returned for a media type outside the supported set
type InvalidMediaTypeError struct {
	Value string
}

func (e *InvalidMediaTypeError) Error() string {
	return fmt.Sprintf("invalid media type %q (supported: image, video, audio)", e.Value)
}

// CatalogConfigurationError reports a catalog entry that can produce a score outside [0,100]
// or a catalog whose shape is wrong. It is raised when a catalog is built, never per analysis.
type CatalogConfigurationError struct {
	MediaType MediaType
	Feature   string
	Reason    string
}

func (e *CatalogConfigurationError) Error() string {
	if e.Feature != "" {
		return fmt.Sprintf("catalog %s/%s: %s", e.MediaType, e.Feature, e.Reason)
	}
	return fmt.Sprintf("catalog %s: %s", e.MediaType, e.Reason)
}

// IntakeErrorKind classifies why an upload was rejected
type IntakeErrorKind string

const (
	IntakeMismatch    IntakeErrorKind = "mismatch"    // Sniffed category differs from the selected type
	IntakeTooLarge    IntakeErrorKind = "too_large"   // Exceeds the configured size limit
	IntakeUnsupported IntakeErrorKind = "unsupported" // Not image, video or audio
	IntakeUnreadable  IntakeErrorKind = "unreadable"  // Could not be opened or read
)

// IntakeError is an upload rejection. It is surfaced to the user as a message and
// must never be turned into an authenticity score.
type IntakeError struct {
	Kind    IntakeErrorKind
	Name    string
	Message string
	Err     error
}

func (e *IntakeError) Error() string {
	msg := fmt.Sprintf("intake %s: %s", e.Kind, e.Message)
	if e.Name != "" {
		msg = fmt.Sprintf("intake %s (%s): %s", e.Kind, e.Name, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IntakeError) Unwrap() error {
	return e.Err
}

// IsIntakeError reports whether err is an intake rejection and returns it
func IsIntakeError(err error) (*IntakeError, bool) {
	var ie *IntakeError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// IsInvalidMediaType reports whether err wraps an InvalidMediaTypeError
func IsInvalidMediaType(err error) bool {
	var ie *InvalidMediaTypeError
	return errors.As(err, &ie)
}
