package domain

import (
	"fmt"
	"net/http"
)

// AppErrorCode is a machine-readable error code for API responses.
type AppErrorCode string

const (
	// ErrCodeNoFiles indicates an upload request carried no files.
	ErrCodeNoFiles AppErrorCode = "NO_FILES"
	// ErrCodeFileTooLarge indicates a single file exceeded the size limit.
	ErrCodeFileTooLarge AppErrorCode = "FILE_TOO_LARGE"
	// ErrCodeTooManyFiles indicates the batch exceeded the file count limit.
	ErrCodeTooManyFiles AppErrorCode = "TOO_MANY_FILES"
	// ErrCodeInvalidFileType indicates a non-image file in an upload batch.
	ErrCodeInvalidFileType AppErrorCode = "INVALID_FILE_TYPE"
	// ErrCodeValidation indicates a generic validation error.
	ErrCodeValidation AppErrorCode = "VALIDATION_ERROR"
	// ErrCodeNotFound indicates a session or file was not found.
	ErrCodeNotFound AppErrorCode = "NOT_FOUND"
	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest AppErrorCode = "BAD_REQUEST"
	// ErrCodeRequestTooLarge indicates the request body is too large.
	ErrCodeRequestTooLarge AppErrorCode = "REQUEST_TOO_LARGE"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal AppErrorCode = "INTERNAL_ERROR"
	// ErrCodeDependencyFailed indicates the image backend failed.
	ErrCodeDependencyFailed AppErrorCode = "DEPENDENCY_FAILED"
)

// AppError is an application error with enough context to build an API
// response.
type AppError struct {
	// Machine-readable error code
	Code AppErrorCode `json:"code"`

	// Human-readable error message
	Message string `json:"message"`

	// HTTP status code
	StatusCode int `json:"-"`

	// Additional error details
	Details map[string]interface{} `json:"details,omitempty"`

	// Original error
	Err error `json:"-"`
}

// NewAppError creates a new application error.
func NewAppError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: GetHTTPStatus(code),
		Details:    make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error.
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	if e.Message == "" && err != nil {
		e.Message = err.Error()
	}
	return e
}

// GetHTTPStatus maps an error code to an HTTP status.
func GetHTTPStatus(code AppErrorCode) int {
	switch code {
	case ErrCodeNoFiles, ErrCodeInvalidFileType, ErrCodeTooManyFiles, ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeFileTooLarge, ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeDependencyFailed:
		return http.StatusBadGateway
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
