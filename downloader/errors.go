package downloader

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of job errors
type ErrorType int

const (
	ErrorValidation ErrorType = iota
	ErrorResolution
	ErrorDownload
	ErrorCancelled
	ErrorInternal
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorValidation:
		return "validation"
	case ErrorResolution:
		return "resolution"
	case ErrorDownload:
		return "download"
	case ErrorCancelled:
		return "cancelled"
	case ErrorInternal:
		return "internal"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is wrapped by validation errors returned when a job of the
	// same kind is already in flight.
	ErrBusy = errors.New("job already running")

	// ErrCancelled is returned from a ProgressHook to ask the engine to stop.
	ErrCancelled = errors.New("job cancelled")
)

// JobError represents a structured error produced by a resolve or download job
type JobError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"cause,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (je *JobError) Error() string {
	if je.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", je.Type.String(), je.Message, je.Cause)
	}
	return fmt.Sprintf("%s: %s", je.Type.String(), je.Message)
}

// Unwrap returns the underlying cause error
func (je *JobError) Unwrap() error {
	return je.Cause
}

// NewJobError creates a new JobError with the specified type and message
func NewJobError(errorType ErrorType, message string) *JobError {
	return &JobError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewJobErrorWithCause creates a new JobError with a cause
func NewJobErrorWithCause(errorType ErrorType, message string, cause error) *JobError {
	return &JobError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (je *JobError) WithContext(key string, value interface{}) *JobError {
	if je.Context == nil {
		je.Context = make(map[string]interface{})
	}
	je.Context[key] = value
	return je
}

// IsType checks if the error is of a specific type
func (je *JobError) IsType(errorType ErrorType) bool {
	return je.Type == errorType
}

// IsJobError checks if an error chain contains a JobError and optionally of a specific type
func IsJobError(err error, errorType ...ErrorType) bool {
	var je *JobError
	if !errors.As(err, &je) {
		return false
	}
	if len(errorType) == 0 {
		return true
	}
	for _, et := range errorType {
		if je.Type == et {
			return true
		}
	}
	return false
}

func validationError(message string) *JobError {
	return NewJobError(ErrorValidation, message)
}

func busyError(kind JobKind) *JobError {
	return NewJobErrorWithCause(ErrorValidation, fmt.Sprintf("a %s job is already running", kind), ErrBusy)
}
