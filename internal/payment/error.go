package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means required credentials are missing; no network
	// call is attempted.
	ErrNotConfigured = errors.New("payment gateway not configured")

	// ErrTenantMismatch means the webhook carried a business id other than
	// the configured one. Hard authorization failure, independent of
	// signature verification.
	ErrTenantMismatch = errors.New("invalid business id in webhook")

	// ErrOrderNotMatched means no correlation field resolved to a local
	// order.
	ErrOrderNotMatched = errors.New("webhook could not be matched to an order")

	// ErrMalformedPayload means a required correlation field (status) is
	// absent from the webhook payload.
	ErrMalformedPayload = errors.New("webhook payload missing required fields")

	ErrRefundNotSupported = errors.New("refunds are not supported by this gateway")
)

// TransportError wraps DNS/connection/timeout failures from the outbound
// client. Not automatically retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx provider response. The decoded body is preserved
// because provider error payloads carry business-meaningful codes.
type RemoteError struct {
	StatusCode int
	Body       map[string]any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}

// Message extracts the human-readable message from the remote body, if any.
func (e *RemoteError) Message() string {
	if e.Body == nil {
		return ""
	}
	if msg, ok := e.Body["message"].(string); ok {
		return msg
	}
	return ""
}
