// Package errors provides the structured error type used across folio.
//
// Locale resolution itself never fails; these errors surface from the edges
// of the system: configuration loading, catalog parsing, preference store
// I/O and server lifecycle.
package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeInternal   ErrorType = "internal"
)

// FolioError is a structured error type with context.
type FolioError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *FolioError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *FolioError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *FolioError) Is(target error) bool {
	var t *FolioError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *FolioError) WithContext(key string, value interface{}) *FolioError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *FolioError) WithComponent(component string) *FolioError {
	e.Component = component

	return e
}

func newError(t ErrorType, code, message string, cause error, recoverable bool) *FolioError {
	return &FolioError{Type: t, Code: code, Message: message, Cause: cause, Recoverable: recoverable}
}

// NewValidationError creates a validation error. The input can be corrected
// and retried, so it is recoverable.
func NewValidationError(code, message string) *FolioError {
	return newError(ErrorTypeValidation, code, message, nil, true)
}

// NewConfigError creates a configuration error. The process cannot start
// with it.
func NewConfigError(code, message string) *FolioError {
	return newError(ErrorTypeConfig, code, message, nil, false)
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *FolioError {
	return newError(ErrorTypeIO, code, message, cause, false)
}

// NewStoreError creates a preference store error. Callers treat it as an
// absent preference, so it is recoverable.
func NewStoreError(code, message string, cause error) *FolioError {
	return newError(ErrorTypeStore, code, message, cause, true)
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *FolioError {
	return newError(ErrorTypeInternal, code, message, cause, false)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	fe, ok := asFolio(err)
	return ok && fe.Recoverable
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	fe, ok := asFolio(err)
	return ok && fe.Type == ErrorTypeConfig
}

// IsStoreError checks if an error came from a preference store.
func IsStoreError(err error) bool {
	fe, ok := asFolio(err)
	return ok && fe.Type == ErrorTypeStore
}

func asFolio(err error) (*FolioError, bool) {
	var fe *FolioError
	ok := errors.As(err, &fe)

	return fe, ok
}

// Logger is the subset of the logging package ErrorHandler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler logs errors that end an operation, such as a failed server
// start.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs recoverable errors as warnings and everything else as errors.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	fe, ok := asFolio(err)
	if !ok {
		h.logger.Error(ctx, err, "Operation failed")
		return
	}

	fields := []interface{}{"type", fe.Type, "code", fe.Code}
	if fe.Component != "" {
		fields = append(fields, "component", fe.Component)
	}
	for _, k := range sortedKeys(fe.Context) {
		fields = append(fields, k, fe.Context[k])
	}

	if fe.Recoverable {
		h.logger.Warn(ctx, err, "Operation failed, continuing", fields...)
		return
	}
	h.logger.Error(ctx, err, "Operation failed", fields...)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Common error codes.
const (
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeUnknownLocale    = "ERR_UNKNOWN_LOCALE"
	ErrCodeDuplicateLocale  = "ERR_DUPLICATE_LOCALE"
	ErrCodeDirection        = "ERR_LOCALE_DIRECTION"
	ErrCodeDefaultLocale    = "ERR_DEFAULT_LOCALE"
	ErrCodeNoLocales        = "ERR_NO_LOCALES"
	ErrCodeCatalogLoad      = "ERR_CATALOG_LOAD"
	ErrCodeStoreRead        = "ERR_STORE_READ"
	ErrCodeStoreWrite       = "ERR_STORE_WRITE"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeServerStart      = "ERR_SERVER_START"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeInternal         = "ERR_INTERNAL"
)

// FieldError is one rejected configuration key.
type FieldError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

// Error implements the error interface.
func (fe FieldError) Error() string {
	return fe.Field + ": " + fe.Message
}

// ValidationErrorCollection gathers every rejected key of one configuration
// so they can be reported together.
type ValidationErrorCollection struct {
	Errors []FieldError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	switch len(vec.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return vec.Errors[0].Error()
	default:
		return fmt.Sprintf("validation failed with %d errors", len(vec.Errors))
	}
}

// AddField records a rejected key.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string, suggestions ...string) {
	vec.Errors = append(vec.Errors, FieldError{
		Field:       field,
		Value:       value,
		Message:     message,
		Suggestions: suggestions,
	})
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// Fields returns the sorted names of every field that failed.
func (vec *ValidationErrorCollection) Fields() []string {
	fields := make([]string, 0, len(vec.Errors))
	for _, fe := range vec.Errors {
		fields = append(fields, fe.Field)
	}
	sort.Strings(fields)

	return fields
}

// ToFolioError flattens the collection into one validation error whose
// message joins the field errors with "; ". Nil when empty.
func (vec *ValidationErrorCollection) ToFolioError() *FolioError {
	if !vec.HasErrors() {
		return nil
	}

	messages := make([]string, 0, len(vec.Errors))
	out := NewValidationError(ErrCodeValidationFailed, "")
	for _, fe := range vec.Errors {
		messages = append(messages, fe.Error())
		out.WithContext(fe.Field, map[string]interface{}{
			"value":       fe.Value,
			"suggestions": fe.Suggestions,
		})
	}
	out.Message = strings.Join(messages, "; ")

	return out
}

// ErrUnknownLocale creates the error returned when configuration names a
// locale code the registry does not know.
func ErrUnknownLocale(code string) *FolioError {
	return NewConfigError(ErrCodeUnknownLocale, "unknown locale code: "+code).
		WithContext("code", code)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *FolioError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}
