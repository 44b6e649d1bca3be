package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"olkupay-be/internal/logger"
	"olkupay-be/internal/metrics"
	"olkupay-be/internal/order"
	"olkupay-be/internal/payment"
	"olkupay-be/internal/utils"

	"go.uber.org/zap"
)

// User-facing messages; checkout failures degrade to an error message while
// the order stays untouched.
const (
	msgInvalidOrder     = "Invalid order"
	msgNotConfigured    = "Payment gateway is not properly configured. Please contact the store administrator."
	msgInitFailed       = "Payment initialization failed. Please try again."
	msgAlreadyPaid      = "This order has already been paid."
	msgUnknownProvider  = "Unknown payment method"
	msgLinkCreateFailed = "Failed to create payment link"
)

type checkoutRequest struct {
	Provider    string `json:"provider"`
	OrderID     uint   `json:"order_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type checkoutResponse struct {
	Result       string   `json:"result"`
	Redirect     string   `json:"redirect,omitempty"`
	Message      string   `json:"message,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
}

type Handler struct {
	svc   Service
	stats *metrics.CheckoutStats
}

func NewHandler(svc Service, stats *metrics.CheckoutStats) *Handler {
	if stats == nil {
		stats = &metrics.CheckoutStats{}
	}
	return &Handler{svc: svc, stats: stats}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == 0 {
		utils.WriteJSONError(w, msgInvalidOrder, http.StatusBadRequest)
		return
	}

	h.stats.Started.Inc()

	result, err := h.svc.Checkout(ctx, req.Provider, payment.CheckoutRequest{
		OrderID:     req.OrderID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.stats.Failed.Inc()
		msg, status := userMessage(err)
		log.Error("checkout failed",
			zap.Uint("order_id", req.OrderID),
			zap.Error(err),
		)
		utils.WriteJSONError(w, msg, status)
		return
	}

	h.stats.Succeeded.Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(checkoutResponse{
		Result:       "success",
		Redirect:     result.RedirectURL,
		Message:      result.Message,
		Instructions: result.Instructions,
	})
}

// userMessage maps internal errors to the message shown on the checkout
// page and the HTTP status.
func userMessage(err error) (string, int) {
	var remote *payment.RemoteError
	var transport *payment.TransportError

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return msgInvalidOrder, http.StatusBadRequest
	case errors.Is(err, ErrUnknownProvider):
		return msgUnknownProvider, http.StatusBadRequest
	case errors.Is(err, ErrAlreadyPaid):
		return msgAlreadyPaid, http.StatusConflict
	case errors.Is(err, payment.ErrNotConfigured):
		return msgNotConfigured, http.StatusServiceUnavailable
	case errors.As(err, &transport):
		return msgInitFailed, http.StatusBadGateway
	case errors.As(err, &remote):
		if msg := remote.Message(); msg != "" {
			return msg, http.StatusBadGateway
		}
		return msgLinkCreateFailed, http.StatusBadGateway
	default:
		return msgInitFailed, http.StatusInternalServerError
	}
}
