package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the standardized JSON response envelope.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError contains error details in the response.
type APIError struct {
	Status  int       `json:"status"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
}

// Success sends a successful JSON response with data.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Error sends an error JSON response without a public code.
func Error(c *gin.Context, statusCode int, message string) {
	ErrorWithCode(c, statusCode, "", message)
}

// ErrorWithCode sends an error JSON response carrying a public error code.
func ErrorWithCode(c *gin.Context, statusCode int, code ErrorCode, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Status:  statusCode,
			Code:    code,
			Message: message,
		},
	})
}

// HandleError inspects an error and sends the matching HTTP response.
// Uses errors.As to traverse the full error chain, supporting wrapped errors.
func HandleError(c *gin.Context, err error) {
	var client *ClientError
	var internal *InternalError
	var server *ServerError

	switch {
	case errors.As(err, &client):
		ErrorWithCode(c, clientStatus(client.Code), client.Code, client.Message)
	case errors.As(err, &server):
		// Server details stay in the logs.
		ErrorWithCode(c, http.StatusInternalServerError, server.Code, "internal server error")
	case errors.As(err, &internal):
		ErrorWithCode(c, http.StatusInternalServerError, internal.Code, "internal server error")
	default:
		Error(c, http.StatusInternalServerError, "internal server error")
	}
}

// StatusOf returns the HTTP status HandleError would use for err.
func StatusOf(err error) int {
	var client *ClientError
	if errors.As(err, &client) {
		return clientStatus(client.Code)
	}
	return http.StatusInternalServerError
}

func clientStatus(code ErrorCode) int {
	switch code {
	case CodeTemplateNotFound, CodeTemplateTypeNotFound:
		return http.StatusNotFound
	case CodeTemplateTypeAlreadyExists, CodeTemplateAlreadyExists:
		return http.StatusConflict
	case CodeSystemResourceReadOnly:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
