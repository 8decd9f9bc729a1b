package errors

import (
	stderrors "errors"
	"fmt"
)

// AmanError is the structured error type for amanvis.
// It carries enough context to decide whether a run aborts or records
// a per-item failure, and to present the failure to the user.
type AmanError struct {
	// Code is the unique error code (e.g., "ERR_208_DECODE_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
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

// Sentinels for errors.Is matching by code.
var (
	ErrTraversal  = &AmanError{Code: ErrCodeTraversalFailed}
	ErrDecode     = &AmanError{Code: ErrCodeDecodeFailed}
	ErrExtraction = &AmanError{Code: ErrCodeExtractionFailed}
	ErrBuild      = &AmanError{Code: ErrCodeBuildFailed}
	ErrIndex      = &AmanError{Code: ErrCodeIndexFailed}
	ErrLocked     = &AmanError{Code: ErrCodeIndexLocked}
)

// Error implements the error interface.
func (e *AmanError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AmanError.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AmanError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AmanError from an existing error.
// The error's message becomes the AmanError message.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AmanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AmanError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AmanError {
	return New(ErrCodeInternal, message, cause)
}

// TraversalError reports a corpus root that cannot be walked.
func TraversalError(root string, cause error) *AmanError {
	return New(ErrCodeTraversalFailed, "cannot traverse corpus root", cause).
		WithDetail("root", root).
		WithSuggestion("check that the path exists and is a directory")
}

// DecodeError reports an image that no acquisition strategy could read.
func DecodeError(path string, cause error) *AmanError {
	return New(ErrCodeDecodeFailed, "cannot decode image", cause).
		WithDetail("path", path)
}

// ExtractionError reports a descriptor that failed on a raster.
func ExtractionError(descriptor string, cause error) *AmanError {
	return New(ErrCodeExtractionFailed, "feature extraction failed", cause).
		WithDetail("descriptor", descriptor)
}

// BuildError attaches the record identifier to a builder failure.
func BuildError(identifier string, cause error) *AmanError {
	return New(ErrCodeBuildFailed, "cannot build record", cause).
		WithDetail("identifier", identifier)
}

// IndexError reports a failed index-writer operation (open, finalize, close).
func IndexError(op string, cause error) *AmanError {
	return New(ErrCodeIndexFailed, op+" index failed", cause).
		WithDetail("op", op)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current run.
func IsFatal(err error) bool {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first AmanError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from the first AmanError in the chain.
func GetCategory(err error) Category {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
