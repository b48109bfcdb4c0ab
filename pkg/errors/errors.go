package errors

import (
	"fmt"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnmatchedStepError indicates that no registered pattern matched a raw
// step. Always fatal: an unrecognized step must never become a no-op.
type UnmatchedStepError struct {
	Text string
}

// NewUnmatchedStepError constructs an UnmatchedStepError carrying the raw
// step text.
func NewUnmatchedStepError(text string) error {
	return &UnmatchedStepError{Text: text}
}

func (e *UnmatchedStepError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("no step pattern matches %q", e.Text)
}

// ParameterBindingError indicates a step referenced a saved variable that
// has no binding in the execution context. Fatal, never retried.
type ParameterBindingError struct {
	Variable string
	Step     string
}

// NewParameterBindingError constructs a ParameterBindingError.
func NewParameterBindingError(variable, step string) error {
	return &ParameterBindingError{Variable: variable, Step: step}
}

func (e *ParameterBindingError) Error() string {
	if e == nil {
		return ""
	}
	if e.Step != "" {
		return fmt.Sprintf("step %q references unbound variable %q", e.Step, e.Variable)
	}
	return fmt.Sprintf("unbound variable %q", e.Variable)
}

// ElementNotFoundError indicates the resolver cascade was exhausted
// without producing a locator. Retried per policy, then fatal.
type ElementNotFoundError struct {
	Descriptor string
	Message    string
}

// NewElementNotFoundError constructs an ElementNotFoundError.
func NewElementNotFoundError(descriptor, message string) error {
	return &ElementNotFoundError{Descriptor: descriptor, Message: message}
}

func (e *ElementNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("element not found for %q: %s", e.Descriptor, e.Message)
	}
	return fmt.Sprintf("element not found for %q", e.Descriptor)
}

// ActionExecutionError wraps a browser failure while executing an action.
// Provenance records which resolution stage produced the locator so a bad
// resolution can be told apart from a genuine application failure.
type ActionExecutionError struct {
	Action     string
	Provenance string
	Transient  bool
	Err        error
}

// NewActionExecutionError constructs a transient ActionExecutionError.
func NewActionExecutionError(action, provenance string, err error) error {
	return &ActionExecutionError{Action: action, Provenance: provenance, Transient: true, Err: err}
}

// NewAssertionError constructs a fatal ActionExecutionError for a failed
// assertion.
func NewAssertionError(action string, err error) error {
	return &ActionExecutionError{Action: action, Transient: false, Err: err}
}

// NewActionValidationError constructs a fatal ActionExecutionError for a
// malformed action input. Retrying cannot succeed, so the failure is
// never classified transient.
func NewActionValidationError(action string, err error) error {
	return &ActionExecutionError{Action: action, Transient: false, Err: err}
}

func (e *ActionExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Provenance != "" {
		return fmt.Sprintf("action %s failed (locator via %s): %v", e.Action, e.Provenance, e.Err)
	}
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ActionExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CacheValidationError indicates a cached locator no longer resolves on
// the current page. Recovered locally by evicting the entry and falling
// through the cascade, never surfaced to callers.
type CacheValidationError struct {
	Key string
	Err error
}

// NewCacheValidationError constructs a CacheValidationError.
func NewCacheValidationError(key string, err error) error {
	return &CacheValidationError{Key: key, Err: err}
}

func (e *CacheValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cache entry %q failed validation: %v", e.Key, e.Err)
}

// Unwrap exposes the underlying error.
func (e *CacheValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
