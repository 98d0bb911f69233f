package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the caller discovery system
type ErrorType string

const (
	// Discovery errors
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeTask       ErrorType = "task"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeCancelled  ErrorType = "cancelled"

	// Tree errors
	ErrorTypeConstruction ErrorType = "construction"

	// Host index errors
	ErrorTypeIndex ErrorType = "index"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// DiscoveryError represents a failure while finding callers of a method
type DiscoveryError struct {
	Type       ErrorType
	Operation  string
	MethodID   string
	Underlying error
	Timestamp  time.Time
}

// NewResolutionError creates an error for a reference that could not be mapped to a declaration
func NewResolutionError(op string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:       ErrorTypeResolution,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewTaskError creates an error for a discovery task that failed
func NewTaskError(methodID string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:       ErrorTypeTask,
		Operation:  "discover callers",
		MethodID:   methodID,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewTimeoutError creates the synthetic error recorded when a task exceeds its deadline
func NewTimeoutError(methodID string, after time.Duration) *DiscoveryError {
	return &DiscoveryError{
		Type:       ErrorTypeTimeout,
		Operation:  "discover callers",
		MethodID:   methodID,
		Underlying: fmt.Errorf("task timed out after %s", after),
		Timestamp:  time.Now(),
	}
}

// NewConstructionError creates an error for a symbol that cannot become a tree node
func NewConstructionError(symbol string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:       ErrorTypeConstruction,
		Operation:  "build node for " + symbol,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithMethod adds the method id the error relates to
func (e *DiscoveryError) WithMethod(methodID string) *DiscoveryError {
	e.MethodID = methodID
	return e
}

// Error implements the error interface.
// Timeouts render only the underlying message because that text is shown on tree nodes.
func (e *DiscoveryError) Error() string {
	if e.Type == ErrorTypeTimeout {
		return e.Underlying.Error()
	}
	if e.MethodID != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.MethodID, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *DiscoveryError) Unwrap() error {
	return e.Underlying
}

// IndexError represents a failure while parsing or indexing a source file
type IndexError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewIndexError creates a new index error
func NewIndexError(op, path string, err error) *IndexError {
	return &IndexError{
		Type:       ErrorTypeIndex,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *IndexError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// IsType reports whether err wraps an error of the given type.
// ConfigError and IndexError count as their own types.
func IsType(err error, t ErrorType) bool {
	var de *DiscoveryError
	if errors.As(err, &de) && de.Type == t {
		return true
	}
	switch t {
	case ErrorTypeConfig:
		var ce *ConfigError
		return errors.As(err, &ce)
	case ErrorTypeIndex:
		var ie *IndexError
		return errors.As(err, &ie)
	}
	return false
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, dropping nil entries
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrOrNil returns nil when no errors were collected
func (e *MultiError) ErrOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
