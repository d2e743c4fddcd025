package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/threatforge/threatforge/internal/types"
)

// LLM error codes follow the threatforge error pattern
const (
	// Provider errors
	ErrProviderNotFound     types.ErrorCode = "LLM_PROVIDER_NOT_FOUND"
	ErrProviderInitFailed   types.ErrorCode = "LLM_PROVIDER_INIT_FAILED"
	ErrProviderUnavailable  types.ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized types.ErrorCode = "LLM_PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited  types.ErrorCode = "LLM_PROVIDER_RATE_LIMITED"

	// Completion errors
	ErrCompletionFailed    types.ErrorCode = "LLM_COMPLETION_FAILED"
	ErrContentFiltered     types.ErrorCode = "LLM_CONTENT_FILTERED"
	ErrResponseParseFailed types.ErrorCode = "LLM_RESPONSE_PARSE_FAILED"
	ErrTimeoutExceeded     types.ErrorCode = "LLM_TIMEOUT_EXCEEDED"
	ErrContextCanceled     types.ErrorCode = "LLM_CONTEXT_CANCELED"

	// Tool errors
	ErrInvalidToolArgs types.ErrorCode = "LLM_INVALID_TOOL_ARGS"
	ErrToolCallFailed  types.ErrorCode = "LLM_TOOL_CALL_FAILED"

	// Network errors
	ErrNetworkFailed types.ErrorCode = "LLM_NETWORK_FAILED"
)

// IsRetryable determines if an error is transient and may succeed on retry.
func IsRetryable(err error) bool {
	var forgeErr *types.ForgeError
	if !errors.As(err, &forgeErr) {
		return false
	}

	if forgeErr.Retryable {
		return true
	}

	switch forgeErr.Code {
	case ErrNetworkFailed, ErrProviderRateLimited, ErrProviderUnavailable, ErrTimeoutExceeded:
		return true
	default:
		return false
	}
}

// NewAuthError creates an authentication error for provider integration
func NewAuthError(provider string, cause error) *types.ForgeError {
	return &types.ForgeError{
		Code:    ErrProviderUnauthorized,
		Message: fmt.Sprintf("provider '%s' authentication failed", provider),
		Cause:   cause,
	}
}

// NewRateLimitError creates a retryable error for rate limiting
func NewRateLimitError(provider string) *types.ForgeError {
	return &types.ForgeError{
		Code:      ErrProviderRateLimited,
		Message:   "rate limit exceeded for provider: " + provider,
		Retryable: true,
	}
}

// NewTimeoutError creates a retryable error for timeout failures
func NewTimeoutError(message string) *types.ForgeError {
	return &types.ForgeError{
		Code:      ErrTimeoutExceeded,
		Message:   message,
		Retryable: true,
	}
}

// NewContentFilteredError creates an error for content-policy rejections
func NewContentFilteredError(provider string) *types.ForgeError {
	return types.NewError(ErrContentFiltered,
		"provider "+provider+" rejected the request on content-policy grounds")
}

// NewNetworkError creates a retryable error for network failures
func NewNetworkError(message string, cause error) *types.ForgeError {
	return &types.ForgeError{
		Code:      ErrNetworkFailed,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewProviderError creates a generic provider error
func NewProviderError(provider string, cause error) *types.ForgeError {
	if cause == nil {
		cause = fmt.Errorf("unknown error")
	}
	return &types.ForgeError{
		Code:      ErrProviderUnavailable,
		Message:   "provider temporarily unavailable: " + provider,
		Retryable: true,
		Cause:     cause,
	}
}

// NewParseError creates an error for malformed or missing structured output
func NewParseError(message string, cause error) *types.ForgeError {
	return types.WrapError(ErrResponseParseFailed, message, cause)
}

// NewCompletionError creates an error for completion failures
func NewCompletionError(message string, cause error) *types.ForgeError {
	return types.WrapError(ErrCompletionFailed, message, cause)
}

// TranslateError translates generic provider errors into threatforge errors
// based on error message content. Callers depend on the resulting codes to
// distinguish rate limiting, authentication, timeout, and content-policy
// failures from generic model failure.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	// Already translated
	var forgeErr *types.ForgeError
	if errors.As(err, &forgeErr) {
		return err
	}

	lowerMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lowerMsg, "unauthorized") || strings.Contains(lowerMsg, "authentication") || strings.Contains(lowerMsg, "api key") || strings.Contains(lowerMsg, "credential"):
		return NewAuthError(provider, err)
	case strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "429"):
		return NewRateLimitError(provider)
	case strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline"):
		return NewTimeoutError(err.Error())
	case strings.Contains(lowerMsg, "content policy") || strings.Contains(lowerMsg, "content filter") || strings.Contains(lowerMsg, "safety"):
		return NewContentFilteredError(provider)
	case strings.Contains(lowerMsg, "network") || strings.Contains(lowerMsg, "connection"):
		return NewNetworkError(err.Error(), err)
	default:
		return NewProviderError(provider, err)
	}
}
