package generation

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuth              = errors.New("model API rejected the credential")
	ErrRateLimited       = errors.New("model API rate limit exceeded")
	ErrQuotaExceeded     = errors.New("model API quota exceeded")
	ErrMalformedResponse = errors.New("malformed response from model API")

	ErrMissingCredential   = errors.New("model API key is not set")
	ErrMalformedCredential = errors.New("model API key has an invalid format")
	ErrInvalidImage        = errors.New("invalid image data format")
)

// APIError is a failed call to the model API. Kind is one of the sentinel
// errors above, or nil for failures that fit none of them.
type APIError struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	prefix := "model API error"
	if e.Kind != nil {
		prefix = e.Kind.Error()
	}
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", prefix, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", prefix, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// classify maps an HTTP status and API error code onto an error kind. The
// code wins over the status because quota exhaustion is also a 429.
func classify(status int, code string) error {
	switch code {
	case "invalid_api_key":
		return ErrAuth
	case "insufficient_quota":
		return ErrQuotaExceeded
	case "rate_limit_exceeded":
		return ErrRateLimited
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// UserMessage renders err as the sentence shown to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredential):
		return "OpenAI API key is required. Please set your API key first."
	case errors.Is(err, ErrMalformedCredential):
		return "Invalid OpenAI API key format. Please check your API key and try again."
	case errors.Is(err, ErrAuth):
		return "Invalid API key. Please check your OpenAI API key configuration."
	case errors.Is(err, ErrQuotaExceeded):
		return "OpenAI API quota exceeded. Please check your usage limits."
	case errors.Is(err, ErrRateLimited):
		return "OpenAI API rate limit exceeded. Please try again in a moment."
	case errors.Is(err, ErrMalformedResponse):
		return "Invalid response from OpenAI API."
	}
	return err.Error()
}
