// Package core provides the shared types, options and error taxonomy of the
// recipe access layer.
package core

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeNotConfigured indicates the upstream credential is missing
	ErrorTypeNotConfigured ErrorType = "not_configured_error"
	// ErrorTypeQuota indicates the daily quota is exhausted (402/429 or local ledger)
	ErrorTypeQuota ErrorType = "quota_exceeded_error"
	// ErrorTypeProvider indicates an upstream provider error (5xx)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeNetwork indicates the upstream could not be reached
	ErrorTypeNetwork ErrorType = "network_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates the upstream rejected the credential (401/403)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
)

// RecipeError is the base error type for all errors surfaced by the access layer
type RecipeError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Offline    bool      `json:"offline,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *RecipeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *RecipeError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *RecipeError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeNotConfigured:
		return http.StatusServiceUnavailable
	case ErrorTypeQuota:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeProvider, ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *RecipeError) ToJSON() map[string]any {
	body := map[string]any{
		"type":    e.Type,
		"message": e.Message,
	}
	if e.Offline {
		body["offline"] = true
	}
	return map[string]any{"error": body}
}

// NewNotConfiguredError creates the error returned when no API key is set
func NewNotConfiguredError(operation string) *RecipeError {
	return &RecipeError{
		Type:       ErrorTypeNotConfigured,
		Message:    fmt.Sprintf("%s requires a recipe API key; set SPOONACULAR_API_KEY or upstream.api_key in config.yaml", operation),
		StatusCode: http.StatusServiceUnavailable,
	}
}

// NewQuotaError creates a quota exhausted error
func NewQuotaError(message string) *RecipeError {
	if message == "" {
		message = "daily API quota exhausted; try again after the daily reset"
	}
	return &RecipeError{
		Type:       ErrorTypeQuota,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewProviderError creates a new provider error (upstream 5xx)
func NewProviderError(statusCode int, message string, err error) *RecipeError {
	return &RecipeError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewNetworkError creates an error for an unreachable upstream
func NewNetworkError(message string, err error) *RecipeError {
	return &RecipeError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// NewOfflineError creates a network error flagged as offline
func NewOfflineError(message string) *RecipeError {
	e := NewNetworkError(message, nil)
	e.StatusCode = http.StatusServiceUnavailable
	e.Offline = true
	return e
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *RecipeError {
	return &RecipeError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *RecipeError {
	return &RecipeError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ParseUpstreamError maps an upstream error response to a RecipeError.
// Spoonacular reports failures as {"status":"failure","code":402,"message":"..."}.
func ParseUpstreamError(statusCode int, body []byte) *RecipeError {
	message := string(body)
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "message"); m.Exists() && m.String() != "" {
			message = m.String()
		}
		if gjson.GetBytes(body, "offline").Bool() {
			return NewOfflineError(message)
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusPaymentRequired || statusCode == http.StatusTooManyRequests:
		return NewQuotaError(message)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &RecipeError{Type: ErrorTypeAuthentication, Message: message, StatusCode: statusCode}
	case statusCode == http.StatusNotFound:
		return NewNotFoundError(message)
	case statusCode >= 400 && statusCode < 500:
		err := NewInvalidRequestError(message, nil)
		err.StatusCode = statusCode
		return err
	default:
		return NewProviderError(http.StatusBadGateway, message, nil)
	}
}

// IsQuotaError reports whether err signals an exhausted quota
func IsQuotaError(err error) bool {
	return hasType(err, ErrorTypeQuota)
}

// IsNotConfigured reports whether err signals a missing credential
func IsNotConfigured(err error) bool {
	return hasType(err, ErrorTypeNotConfigured)
}

func hasType(err error, t ErrorType) bool {
	var re *RecipeError
	return errors.As(err, &re) && re.Type == t
}
