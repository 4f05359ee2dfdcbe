package errors

import (
	"errors"
	"fmt"
)

// Exit codes for fleetctl
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitProjectNotFound = 2
	ExitPortAllocation  = 3
	ExitProcessFailed   = 4
	ExitConfigError     = 5
	ExitImportError     = 6
	ExitCodecError      = 7
)

// FleetError is the base error type for fleetctl
type FleetError struct {
	Code    int
	Message string
	Cause   error
}

func (e *FleetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *FleetError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *FleetError) ExitCode() int {
	return e.Code
}

// New creates a new FleetError
func New(code int, message string) *FleetError {
	return &FleetError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a FleetError
func Wrap(code int, message string, cause error) *FleetError {
	return &FleetError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// ProjectNotFound returns an error for an unregistered project
func ProjectNotFound(name string) *FleetError {
	return New(ExitProjectNotFound, fmt.Sprintf("project not found: %s", name))
}

// PortAllocationFailed returns an error for port allocation failure
func PortAllocationFailed(cause error) *FleetError {
	return Wrap(ExitPortAllocation, "failed to allocate port", cause)
}

// ProcessFailed returns an error for process lifecycle operations
func ProcessFailed(op string, cause error) *FleetError {
	return Wrap(ExitProcessFailed, fmt.Sprintf("process %s failed", op), cause)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *FleetError {
	return Wrap(ExitConfigError, message, cause)
}

// ImportError returns an error for project import failures
func ImportError(message string, cause error) *FleetError {
	return Wrap(ExitImportError, message, cause)
}

// CodecError returns an error for image embed/extract failures
func CodecError(message string, cause error) *FleetError {
	return Wrap(ExitCodecError, message, cause)
}

// ProjectNotRunning returns an error when a project exists but has no live process
func ProjectNotRunning(name string) *FleetError {
	return New(ExitGeneralError, fmt.Sprintf("project %s is not running", name))
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *FleetError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var fleetErr *FleetError
	if errors.As(err, &fleetErr) {
		return fleetErr.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
