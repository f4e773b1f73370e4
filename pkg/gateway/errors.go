package gateway

import (
	"errors"
	"fmt"
)

// ProviderError is a non successful response of the provider API
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports rate limiting and server errors
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrorText returns the provider message of err, or err.Error() for other errors
func ErrorText(err error) string {
	var e *ProviderError
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
