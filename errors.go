package walletpnl

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a malformed address or an unsupported chain.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the explorer throttled the request. Retry later.
	ErrRateLimited = errors.New("explorer rate limit reached, wait a moment and retry")

	// ErrInvalidCredentials indicates a missing or rejected explorer API key.
	ErrInvalidCredentials = errors.New("invalid or missing explorer API key")
)

// UpstreamError carries an unexpected explorer payload or status message.
type UpstreamError struct {
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("explorer error: %s", e.Detail)
}

// TransportError wraps network failures, timeouts and non-2xx HTTP statuses.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("explorer transport error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("explorer transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
