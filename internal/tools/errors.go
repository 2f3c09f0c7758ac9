package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tools package.
var (
	// ErrToolNotFound is returned when a requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyExists is returned when registering a name already in use.
	ErrToolAlreadyExists = errors.New("tool already exists")

	// ErrInvalidArgs is returned when tool arguments are invalid.
	ErrInvalidArgs = errors.New("invalid tool arguments")

	// ErrToolTimeout is returned when a tool execution exceeds its limit.
	ErrToolTimeout = errors.New("tool execution timeout")

	// ErrPermissionDenied is returned when the gate refuses an invocation.
	ErrPermissionDenied = errors.New("permission denied")
)

// NotFoundError identifies the missing tool.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// Is allows errors.Is to match against ErrToolNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

func (e *NotFoundError) Unwrap() error { return ErrToolNotFound }

// AlreadyExistsError identifies the duplicate tool.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("tool already exists: %s", e.Name)
}

// Is allows errors.Is to match against ErrToolAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrToolAlreadyExists
}

func (e *AlreadyExistsError) Unwrap() error { return ErrToolAlreadyExists }

// InvalidArgsError describes why arguments were rejected.
type InvalidArgsError struct {
	Tool    string
	Message string
	Cause   error
}

func (e *InvalidArgsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid arguments for tool %s: %s: %v", e.Tool, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Message)
}

// Is allows errors.Is to match against ErrInvalidArgs.
func (e *InvalidArgsError) Is(target error) bool {
	return target == ErrInvalidArgs
}

func (e *InvalidArgsError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrInvalidArgs
}

// TimeoutError identifies which tool timed out and after how long.
type TimeoutError struct {
	Tool     string
	Duration string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s execution timed out after %s", e.Tool, e.Duration)
}

// Is allows errors.Is to match against ErrToolTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrToolTimeout
}

func (e *TimeoutError) Unwrap() error { return ErrToolTimeout }

// PermissionDeniedError records the gate's refusal of one invocation.
type PermissionDeniedError struct {
	Tool   string
	Kind   string
	Key    string
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for tool %s (%s %s): %s", e.Tool, e.Kind, e.Key, e.Reason)
}

// Is allows errors.Is to match against ErrPermissionDenied.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(name string) error {
	return &NotFoundError{Name: name}
}

// NewAlreadyExistsError creates an AlreadyExistsError.
func NewAlreadyExistsError(name string) error {
	return &AlreadyExistsError{Name: name}
}

// NewInvalidArgsError creates an InvalidArgsError.
func NewInvalidArgsError(tool, message string, cause error) error {
	return &InvalidArgsError{Tool: tool, Message: message, Cause: cause}
}

// NewTimeoutError creates a TimeoutError.
func NewTimeoutError(tool, duration string) error {
	return &TimeoutError{Tool: tool, Duration: duration}
}
