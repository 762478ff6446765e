package errors

import (
	"errors"
	"fmt"
	"strings"
)

// VBError is the structured error type for vecbench.
// It carries enough context for logging, exit-code decisions and user hints.
type VBError struct {
	// Code is the unique error code (e.g., "ERR_205_ARTIFACT_MISSING").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VBError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VBError) Unwrap() error {
	return e.Cause
}

// Is matches another VBError by code, so sentinel-style comparisons work
// with errors.Is.
func (e *VBError) Is(target error) bool {
	if t, ok := target.(*VBError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *VBError) WithDetail(key, value string) *VBError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *VBError) WithSuggestion(suggestion string) *VBError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VBError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *VBError {
	return &VBError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VBError from an existing error.
// The error's message becomes the VBError message.
func Wrap(code string, err error) *VBError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VBError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *VBError {
	return New(ErrCodeInvalidInput, message, cause)
}

// NetworkError creates a retryable provider connectivity error.
func NetworkError(message string, cause error) *VBError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// as finds the first VBError in err's chain.
func as(err error) (*VBError, bool) {
	var ve *VBError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsRetryable reports whether any VBError in the chain is retryable.
func IsRetryable(err error) bool {
	if ve, ok := as(err); ok {
		return ve.Retryable
	}
	return false
}

// IsFatal reports whether the error should abort the run.
func IsFatal(err error) bool {
	if ve, ok := as(err); ok {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first VBError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ve, ok := as(err); ok {
		return ve.Code
	}
	return ""
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ve, ok := as(err)
	if !ok {
		ve = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ve.Message)
	if ve.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ve.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ve.Code)
	return sb.String()
}

// LogAttrs flattens an error into key-value pairs for slog.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	ve, ok := as(err)
	if !ok {
		return []any{"error", err.Error()}
	}
	attrs := []any{
		"error_code", ve.Code,
		"error", ve.Message,
		"severity", string(ve.Severity),
	}
	for k, v := range ve.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
