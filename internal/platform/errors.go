package platform

import (
	"fmt"
	"time"
)

// PlatformError is the base error for anything a platform API returns.
// Concrete adapters wrap their wire-level failures in one of the types
// below so the publisher can pick a retry policy with errors.As.
type PlatformError struct {
	Platform string
	Code     string
	Message  string
	Payload  string
}

func (e *PlatformError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Platform, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

// RateLimitError is returned when the platform throttles the account.
// RetryAfter is zero when the platform gave no hint; the publisher then
// falls back to its backoff ladder.
type RateLimitError struct {
	PlatformError
	RetryAfter time.Duration
}

// AuthenticationError means the stored credentials are invalid or expired.
// It is never retried automatically.
type AuthenticationError struct {
	PlatformError
}

// ValidationError reports content that violates platform constraints.
// Violations is the full list so callers can adapt the content.
type ValidationError struct {
	Platform   string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: content validation failed: %v", e.Platform, e.Violations)
}

type MediaUploadError struct {
	PlatformError
}

func (e *RateLimitError) Unwrap() error      { return &e.PlatformError }
func (e *AuthenticationError) Unwrap() error { return &e.PlatformError }
func (e *MediaUploadError) Unwrap() error    { return &e.PlatformError }

// ConfigurationError means no adapter (direct or fallback) is usable for
// a platform. Raised before any network call.
type ConfigurationError struct {
	Platform string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no adapter configured for platform %q", e.Platform)
}

func NewPlatformError(platform, code, message string) *PlatformError {
	return &PlatformError{Platform: platform, Code: code, Message: message}
}

func NewRateLimitError(platform, message string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		PlatformError: PlatformError{Platform: platform, Message: message},
		RetryAfter:    retryAfter,
	}
}

func NewAuthenticationError(platform, message string) *AuthenticationError {
	return &AuthenticationError{
		PlatformError: PlatformError{Platform: platform, Message: message},
	}
}

func NewMediaUploadError(platform, message string) *MediaUploadError {
	return &MediaUploadError{
		PlatformError: PlatformError{Platform: platform, Message: message},
	}
}
