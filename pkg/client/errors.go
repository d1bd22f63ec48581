package client

import (
	"errors"
	"fmt"

	"github.com/repoharvest/ghfetch/pkg/ratelimit"
	"github.com/repoharvest/ghfetch/pkg/search"
)

// ErrTransientNetwork marks transport-level failures (connection reset,
// timeout, DNS). The caller decides the retry policy; the client never
// retries on its own.
var ErrTransientNetwork = errors.New("transient network error")

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents rejected requests that exceeded the
	// point budget (HTTP 429, or 403 with the quota header at zero).
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents responses missing required fields.
	ErrorClassMalformed ErrorClass = "malformed"
)

// APIError is a non-2xx response from the GraphQL endpoint.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("github %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify maps any error from the fetch path to its class, for retry
// policy and observability.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return ErrorClassRateLimit
	case errors.Is(err, ErrTransientNetwork):
		return ErrorClassNetwork
	case errors.Is(err, search.ErrMalformedResponse):
		return ErrorClassMalformed
	case errors.As(err, &apiErr):
		return apiErr.Class
	default:
		return ErrorClassClient
	}
}

// ShouldRetry reports whether an error class is worth retrying. Rate limit
// rejections are excluded: the right response is waiting for the reset,
// not hammering the endpoint with backoff.
func ShouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
