package order

import "context"

// Store is the order persistence boundary the payment core works against.
// The engine never creates or deletes orders, it only mutates the
// payment-relevant fields.
type Store interface {
	GetOrder(ctx context.Context, id uint) (*Order, error)

	// FindByMetadata resolves an order whose metadata contains the given
	// key/value pair, e.g. a provider-assigned payment id recorded at
	// initiation time.
	FindByMetadata(ctx context.Context, key, value string) (*Order, error)

	// MergeMetadata upserts the given keys. Existing keys not present in
	// meta are left untouched.
	MergeMetadata(ctx context.Context, orderID uint, meta map[string]string) error

	// SetStatus unconditionally updates the payment status and appends a
	// note when one is given.
	SetStatus(ctx context.Context, orderID uint, status PaymentStatus, note string) error

	// MarkPaid transitions pending -> processing and records the payment
	// reference. Returns false when the order was not in pending, so a
	// concurrent or repeated webhook cannot double-credit.
	MarkPaid(ctx context.Context, orderID uint, transactionRef string) (bool, error)

	// MarkFailed transitions pending -> failed with a note, under the same
	// conditional-update rule as MarkPaid.
	MarkFailed(ctx context.Context, orderID uint, note string) (bool, error)

	AddNote(ctx context.Context, orderID uint, note string) error
}
