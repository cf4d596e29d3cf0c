package errors

import (
	stderrors "errors"
	"fmt"
)

// IndexError is the structured error type used across the pipeline.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	Message  string
	Category Category
	Severity Severity

	// Details carries context such as the path or job kind.
	Details map[string]string

	Cause      error
	Retryable  bool
	Suggestion string
}

func (e *IndexError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches another *IndexError by code, so errors.Is(err, New(code, "", nil))
// works as a code check anywhere in a chain.
func (e *IndexError) Is(target error) bool {
	var t *IndexError
	if stderrors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable hint for the operator.
func (e *IndexError) WithSuggestion(suggestion string) *IndexError {
	e.Suggestion = suggestion
	return e
}

// New creates an IndexError. Category, severity and retryability derive from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexError whose message is err's message.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound reports a path that vanished before it could be processed.
func NotFound(path string, cause error) *IndexError {
	return New(ErrCodeFileNotFound, "file not found: "+path, cause).WithDetail("path", path)
}

// ExtractionError reports a collaborator failure on a malformed or unreadable file.
func ExtractionError(path string, cause error) *IndexError {
	return New(ErrCodeExtractionFailed, "extraction failed: "+path, cause).WithDetail("path", path)
}

// NotRegular reports a path that is a directory, device or symlink. It is
// an extraction error whose cause carries ErrCodeNotRegular.
func NotRegular(path string) *IndexError {
	return ExtractionError(path, New(ErrCodeNotRegular, "not a regular file: "+path, nil))
}

// StoreError reports a failed write to one of the stores.
func StoreError(store, op string, cause error) *IndexError {
	return New(ErrCodeStoreWrite, fmt.Sprintf("%s store %s failed", store, op), cause).
		WithDetail("store", store).
		WithDetail("op", op)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *IndexError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *IndexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IndexError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first *IndexError in err's chain.
func as(err error) (*IndexError, bool) {
	var ie *IndexError
	if err == nil || !stderrors.As(err, &ie) {
		return nil, false
	}
	return ie, true
}

// IsRetryable reports whether err (or anything it wraps) is marked retryable.
func IsRetryable(err error) bool {
	ie, ok := as(err)
	return ok && ie.Retryable
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	ie, ok := as(err)
	return ok && ie.Severity == SeverityFatal
}

// IsNotFound reports whether err is the not-found case of the job taxonomy.
func IsNotFound(err error) bool {
	return GetCode(err) == ErrCodeFileNotFound
}

// GetCode returns the code of the first IndexError in err's chain, or "".
func GetCode(err error) string {
	if ie, ok := as(err); ok {
		return ie.Code
	}
	return ""
}

// GetCategory returns the category of the first IndexError in err's chain, or "".
func GetCategory(err error) Category {
	if ie, ok := as(err); ok {
		return ie.Category
	}
	return ""
}
