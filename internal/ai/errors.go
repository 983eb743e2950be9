package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// ClassifyTransportError maps client-side failures to sentinel errors.
func ClassifyTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrInferenceTimeout, provider, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrInferenceTimeout, provider, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, err)
}

// ClassifyStatus maps an HTTP status from a provider API to an error.
// Rate limiting and server errors are retryable; other client errors are not.
func ClassifyStatus(provider string, status int, detail string) error {
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s: status %d: %s", ErrProviderUnavailable, provider, status, detail)
	case status == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s: status %d", ErrInferenceTimeout, provider, status)
	default:
		return fmt.Errorf("%s: status %d: %s", provider, status, detail)
	}
}
