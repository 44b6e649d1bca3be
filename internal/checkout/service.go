package checkout

import (
	"context"
	"errors"
	"fmt"

	"olkupay-be/internal/logger"
	"olkupay-be/internal/order"
	"olkupay-be/internal/payment"

	"go.uber.org/zap"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrAlreadyPaid     = errors.New("order is already paid")
)

type Service interface {
	Checkout(ctx context.Context, providerID string, req payment.CheckoutRequest) (*payment.InitiationResult, error)
}

type service struct {
	store    order.Store
	registry *payment.Registry
}

func NewService(store order.Store, registry *payment.Registry) Service {
	return &service{
		store:    store,
		registry: registry,
	}
}

// Checkout initiates a payment for the order with the chosen provider. On
// failure the order keeps its prior state so the customer may retry without
// creating duplicate provider-side attempts under a new order id.
func (s *service) Checkout(ctx context.Context, providerID string, req payment.CheckoutRequest) (*payment.InitiationResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", providerID),
		zap.Uint("order_id", req.OrderID),
	)

	provider, ok := s.registry.Get(providerID)
	if !ok {
		return nil, ErrUnknownProvider
	}

	o, err := s.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus.Paid() {
		return nil, ErrAlreadyPaid
	}

	result, err := provider.Initiate(ctx, o, req)
	if err != nil {
		log.Error("payment initiation failed", zap.Error(err))
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	log.Info("payment initiated",
		zap.String("channel", string(result.Channel)),
	)
	return result, nil
}
