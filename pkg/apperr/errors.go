// Package apperr defines the error taxonomy shared by every layer of taskmate.
//
// Three kinds of failure are distinguished:
//   - ConfigurationError: missing or invalid settings, raised at startup.
//   - RemoteServiceError: the task service or the LLM provider failed.
//   - ToolInvocationError: a tool call's arguments did not meet its preconditions.
package apperr

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid configuration value.
type ConfigurationError struct {
	Field  string // Config key or environment variable, e.g. "TODOIST_API_KEY"
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// RemoteServiceError wraps a failed call to an external service.
type RemoteServiceError struct {
	Service    string // "tasks" or "llm"
	Op         string // Operation that failed, e.g. "list_tasks"
	StatusCode int    // HTTP status when known, 0 otherwise
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// ToolInvocationError reports a tool call whose arguments were rejected
// before any side effect took place.
type ToolInvocationError struct {
	Tool   string
	Reason string
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
}

// Remote wraps err as a RemoteServiceError unless it already is one.
func Remote(service, op string, err error) error {
	if err == nil {
		return nil
	}
	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		return err
	}
	return &RemoteServiceError{Service: service, Op: op, Err: err}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsRemote reports whether err is (or wraps) a RemoteServiceError.
func IsRemote(err error) bool {
	var rse *RemoteServiceError
	return errors.As(err, &rse)
}

// IsToolInvocation reports whether err is (or wraps) a ToolInvocationError.
func IsToolInvocation(err error) bool {
	var tie *ToolInvocationError
	return errors.As(err, &tie)
}
