// internal/payment/payment.go
package payment

import (
	"context"

	"olkupay-be/internal/order"
)

// Provider is the capability contract a payment provider implements.
// Providers are registered on a Registry at startup; the HTTP layer resolves
// the provider by identifier before invoking any of these.
type Provider interface {
	ID() string

	// Initiate starts a payment for the order during checkout and records
	// provisional order state. The order is left untouched on failure so the
	// customer may retry.
	Initiate(ctx context.Context, o *order.Order, req CheckoutRequest) (*InitiationResult, error)

	// VerifySignature authenticates a raw webhook body against the
	// provider's signing scheme. Vacuously true when no secret is
	// configured.
	VerifySignature(rawBody []byte, signatureHeader string) bool

	// MatchOrder resolves an authenticated webhook payload to exactly one
	// local order.
	MatchOrder(ctx context.Context, payload map[string]any) (*order.Order, error)

	// MapOutcome normalizes the provider-specific payload into a canonical
	// outcome. It performs the tenant check but no order mutation.
	MapOutcome(payload map[string]any) (*Outcome, error)

	// Refund is fire-and-forget against the provider; refund settlement is
	// not tracked through the reconciliation state machine.
	Refund(ctx context.Context, o *order.Order, amount int64, reason string) error
}
