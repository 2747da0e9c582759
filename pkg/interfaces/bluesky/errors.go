package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrMalformedResponse indicates a response body that could not be
// decoded into the expected shape. Retrying will not fix it.
var ErrMalformedResponse = errors.New("malformed api response")

// APIError represents an error returned by the Bluesky API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bluesky api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("bluesky api error: status=%d", e.StatusCode)
}

// Retryable reports whether the error is transient: rate limiting,
// request timeout, or a server-side failure.
func (e *APIError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable classifies err as transient (worth retrying) or permanent.
// Network timeouts and deadline expiry count as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// A malformed response will decode no better on a second attempt.
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}

	// Unclassified transport failures (connection resets, DNS blips)
	// are worth another attempt.
	return true
}
