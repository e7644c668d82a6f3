package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestRecipeError_Error(t *testing.T) {
	err := &RecipeError{Type: ErrorTypeQuota, Message: "limit reached"}
	if got, want := err.Error(), "quota_exceeded_error: limit reached"; got != want {
		t.Errorf("Error() = %v, want %v", got, want)
	}
}

func TestRecipeError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	recipeErr := NewProviderError(http.StatusBadGateway, "wrapped error", originalErr)

	if unwrapped := recipeErr.Unwrap(); unwrapped != originalErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, originalErr)
	}
	if !errors.Is(recipeErr, originalErr) {
		t.Error("errors.Is should find the original error")
	}
}

func TestRecipeError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *RecipeError
		expected int
	}{
		{"explicit status wins", &RecipeError{Type: ErrorTypeProvider, StatusCode: 503}, 503},
		{"not configured", &RecipeError{Type: ErrorTypeNotConfigured}, http.StatusServiceUnavailable},
		{"quota", &RecipeError{Type: ErrorTypeQuota}, http.StatusTooManyRequests},
		{"invalid request", &RecipeError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication", &RecipeError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"not found", &RecipeError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"network", &RecipeError{Type: ErrorTypeNetwork}, http.StatusBadGateway},
		{"unknown", &RecipeError{Type: "mystery"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestParseUpstreamError(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantType    ErrorType
		wantMessage string
		wantOffline bool
	}{
		{
			name:        "payment required is quota",
			statusCode:  http.StatusPaymentRequired,
			body:        `{"status":"failure","code":402,"message":"Your daily points limit of 150 has been reached."}`,
			wantType:    ErrorTypeQuota,
			wantMessage: "Your daily points limit of 150 has been reached.",
		},
		{
			name:        "too many requests is quota",
			statusCode:  http.StatusTooManyRequests,
			body:        `slow down`,
			wantType:    ErrorTypeQuota,
			wantMessage: "slow down",
		},
		{
			name:        "unauthorized",
			statusCode:  http.StatusUnauthorized,
			body:        `{"message":"You are not authorized."}`,
			wantType:    ErrorTypeAuthentication,
			wantMessage: "You are not authorized.",
		},
		{
			name:        "not found",
			statusCode:  http.StatusNotFound,
			body:        `{"message":"A recipe with the id 1 does not exist."}`,
			wantType:    ErrorTypeNotFound,
			wantMessage: "A recipe with the id 1 does not exist.",
		},
		{
			name:        "other client error",
			statusCode:  http.StatusBadRequest,
			body:        ``,
			wantType:    ErrorTypeInvalidRequest,
			wantMessage: "Bad Request",
		},
		{
			name:        "server error",
			statusCode:  http.StatusInternalServerError,
			body:        `{"message":"boom"}`,
			wantType:    ErrorTypeProvider,
			wantMessage: "boom",
		},
		{
			name:        "offline payload",
			statusCode:  http.StatusServiceUnavailable,
			body:        `{"offline":true,"message":"You appear to be offline."}`,
			wantType:    ErrorTypeNetwork,
			wantMessage: "You appear to be offline.",
			wantOffline: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseUpstreamError(tt.statusCode, []byte(tt.body))
			if err.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", err.Type, tt.wantType)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.Offline != tt.wantOffline {
				t.Errorf("Offline = %v, want %v", err.Offline, tt.wantOffline)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	wrappedQuota := fmt.Errorf("search: %w", NewQuotaError(""))
	if !IsQuotaError(wrappedQuota) {
		t.Error("IsQuotaError should see through wrapping")
	}
	if IsNotConfigured(wrappedQuota) {
		t.Error("quota error is not a configuration error")
	}
	if !IsNotConfigured(NewNotConfiguredError("getRecipeDetails")) {
		t.Error("IsNotConfigured should match NewNotConfiguredError")
	}
	if IsQuotaError(errors.New("plain")) {
		t.Error("plain errors are not quota errors")
	}
}

func TestRecipeError_ToJSON(t *testing.T) {
	body := NewOfflineError("offline").ToJSON()
	inner, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %T", body["error"])
	}
	if inner["offline"] != true {
		t.Errorf("expected offline flag, got %v", inner["offline"])
	}
	if inner["type"] != ErrorTypeNetwork {
		t.Errorf("expected type %s, got %v", ErrorTypeNetwork, inner["type"])
	}
}
