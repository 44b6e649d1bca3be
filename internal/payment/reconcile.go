package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"olkupay-be/internal/logger"
	"olkupay-be/internal/order"

	"go.uber.org/zap"
)

// Reconciler applies a canonical outcome to an order's payment state exactly
// once. Webhooks for the same order may race (provider retries, duplicate
// delivery); the read-decide-write sequence is serialized per order id.
type Reconciler struct {
	store order.Store

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewReconciler(store order.Store) *Reconciler {
	return &Reconciler{
		store: store,
		locks: make(map[uint]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing reconciliation for one order id.
// Orders are independent; only same-order deliveries contend.
func (r *Reconciler) lockFor(orderID uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[orderID] = l
	}
	return l
}

// Apply drives the state machine: pending -> processing on success,
// pending -> failed on failure. Terminal states absorb any further outcome
// as a no-op success, so redelivered webhooks are safe and a late failure
// can never retract a recorded success.
func (r *Reconciler) Apply(ctx context.Context, orderID uint, out *Outcome) error {
	lock := r.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	log := logger.FromCtx(ctx).With(
		zap.Uint("order_id", orderID),
		zap.String("provider", out.Provider),
		zap.String("outcome", string(out.Status)),
	)

	o, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if o.PaymentStatus.Terminal() {
		log.Info("order already in terminal state, skipping",
			zap.String("payment_status", string(o.PaymentStatus)),
		)
		return nil
	}

	switch out.Status {
	case OutcomeSucceeded:
		return r.applySuccess(ctx, o, out, log)
	case OutcomeFailed:
		return r.applyFailure(ctx, o, out, log)
	default:
		return fmt.Errorf("unknown outcome status %q", out.Status)
	}
}

func (r *Reconciler) applySuccess(ctx context.Context, o *order.Order, out *Outcome, log *zap.Logger) error {
	metaKey := fmt.Sprintf("_%s_transaction_code", strings.ToLower(out.Provider))
	if err := r.store.MergeMetadata(ctx, o.ID, map[string]string{
		metaKey: out.TransactionRef,
	}); err != nil {
		return fmt.Errorf("record transaction reference: %w", err)
	}

	applied, err := r.store.MarkPaid(ctx, o.ID, out.TransactionRef)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if !applied {
		// Another delivery won the conditional update between our read and
		// write; the outcome is already recorded.
		log.Info("order no longer pending, skipping")
		return nil
	}

	note := fmt.Sprintf("%s payment completed. Transaction ID: %s", out.Provider, out.TransactionRef)
	if err := r.store.AddNote(ctx, o.ID, note); err != nil {
		return fmt.Errorf("add completion note: %w", err)
	}

	log.Info("payment completed",
		zap.String("transaction_ref", out.TransactionRef),
	)
	return nil
}

func (r *Reconciler) applyFailure(ctx context.Context, o *order.Order, out *Outcome, log *zap.Logger) error {
	status := out.ProviderStatus
	if status == "" {
		status = "FAILED"
	}

	note := fmt.Sprintf("%s payment failed. Status: %s", out.Provider, status)
	applied, err := r.store.MarkFailed(ctx, o.ID, note)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	if !applied {
		log.Info("order no longer pending, skipping")
		return nil
	}

	log.Error("payment failed",
		zap.String("provider_status", status),
	)
	return nil
}
