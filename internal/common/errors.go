package common

import "fmt"

// ErrorCode is a stable public error code. Backend-specific failures are
// always translated into one of these before leaving the façade.
type ErrorCode string

// Client error codes: the caller sent something unusable.
const (
	CodeInvalidChannel            ErrorCode = "INVALID_CHANNEL"
	CodeInvalidDisplayName        ErrorCode = "INVALID_DISPLAY_NAME"
	CodeInvalidLocale             ErrorCode = "INVALID_LOCALE"
	CodeInvalidTemplate           ErrorCode = "INVALID_TEMPLATE"
	CodeInvalidApplication        ErrorCode = "INVALID_APPLICATION"
	CodeTemplateTypeAlreadyExists ErrorCode = "TEMPLATE_TYPE_ALREADY_EXISTS"
	CodeTemplateTypeNotFound      ErrorCode = "TEMPLATE_TYPE_NOT_FOUND"
	CodeTemplateNotFound          ErrorCode = "TEMPLATE_NOT_FOUND"
	CodeTemplateAlreadyExists     ErrorCode = "TEMPLATE_ALREADY_EXISTS"
	CodeSystemResourceReadOnly    ErrorCode = "SYSTEM_RESOURCE_READ_ONLY"
)

// Internal error codes: signals between layers, never shown to end users.
const (
	CodeDuplicateTemplateType           ErrorCode = "DUPLICATE_TEMPLATE_TYPE"
	CodeTemplateNotFoundAtDefaultLocale ErrorCode = "TEMPLATE_NOT_FOUND_AT_DEFAULT_LOCALE"
)

// Server error codes: a downstream dependency failed or holds bad data.
const (
	CodeStoreFailure         ErrorCode = "STORE_FAILURE"
	CodeOrgResolutionFailed  ErrorCode = "ORG_RESOLUTION_FAILED"
	CodeContentCorrupt       ErrorCode = "CONTENT_CORRUPT"
	CodeContentArityMismatch ErrorCode = "CONTENT_ARITY_MISMATCH"
)

// ClientError indicates invalid input or a request that conflicts with
// existing state.
type ClientError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ClientError) Unwrap() error { return e.Err }

// NewClientError creates a new ClientError.
func NewClientError(code ErrorCode, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}

// InternalError is a recoverable condition handled by caller logic.
type InternalError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error { return e.Err }

// NewInternalError creates a new InternalError.
func NewInternalError(code ErrorCode, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

// ServerError indicates a failure of a downstream store or service.
type ServerError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServerError) Unwrap() error { return e.Err }

// NewServerError creates a new ServerError wrapping the underlying cause.
func NewServerError(code ErrorCode, message string, err error) *ServerError {
	return &ServerError{Code: code, Message: message, Err: err}
}
