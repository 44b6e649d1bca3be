// Package webhook handles provider-initiated payment callbacks. Each handler
// instance is bound to one provider; routing by provider identifier happens
// at registration time.
package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"olkupay-be/internal/logger"
	"olkupay-be/internal/metrics"
	"olkupay-be/internal/payment"

	"go.uber.org/zap"
)

// SignatureHeader carries the provider's HMAC digest of the raw body.
const SignatureHeader = "X-Webhook-Signature"

type Handler struct {
	provider   payment.Provider
	reconciler *payment.Reconciler
	repo       payment.Repository
	stats      *metrics.WebhookStats
}

func NewHandler(
	provider payment.Provider,
	reconciler *payment.Reconciler,
	repo payment.Repository,
	stats *metrics.WebhookStats,
) *Handler {
	if stats == nil {
		stats = &metrics.WebhookStats{}
	}
	return &Handler{
		provider:   provider,
		reconciler: reconciler,
		repo:       repo,
		stats:      stats,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("provider", h.provider.ID()))

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.stats.Received.Inc()
	timer := metrics.StartTimer()
	log.Info("webhook received")

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.stats.Rejected.Inc()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.stats.Rejected.Inc()
		log.Error("invalid JSON in webhook payload", zap.Error(err))
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	// Signing is computed over the exact bytes the provider sent, so
	// verification happens on the raw body, never the re-serialized payload.
	signature := r.Header.Get(SignatureHeader)
	if !h.provider.VerifySignature(raw, signature) {
		h.stats.Rejected.Inc()
		log.Error("invalid webhook signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// TaraMoney sends no delivery id; the body digest dedupes byte-identical
	// redeliveries. The reconciler guards semantic duplicates regardless.
	digest := sha256.Sum256(raw)
	eventID := hex.EncodeToString(digest[:])

	webhookID, isDuplicate, err := h.repo.SaveWebhookEvent(
		ctx, h.provider.ID(), eventID, str(payload, "paymentId"), true, raw,
	)
	if err != nil {
		log.Error("failed to persist webhook event", zap.Error(err))
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		return
	}
	if isDuplicate {
		h.stats.Duplicate.Inc()
		log.Info("duplicate webhook delivery, skipping")
		w.WriteHeader(http.StatusOK)
		return
	}

	if status, reason := h.process(r, payload, webhookID); status != http.StatusOK {
		http.Error(w, reason, status)
		return
	}

	if err := h.repo.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}

	h.stats.Processed.Inc()
	log.Info("webhook processed successfully", zap.Duration("duration", timer.Duration()))
	w.WriteHeader(http.StatusOK)
}

// process runs tenant check, order matching and reconciliation. The tenant
// check comes first: a mismatched business id must not trigger any order
// lookup.
func (h *Handler) process(r *http.Request, payload map[string]any, webhookID int64) (int, string) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("provider", h.provider.ID()))

	outcome, err := h.provider.MapOutcome(payload)
	if err != nil {
		h.stats.Rejected.Inc()
		h.markFailed(r, webhookID, err.Error())

		if errors.Is(err, payment.ErrTenantMismatch) {
			log.Error("webhook rejected", zap.Error(err))
			return http.StatusUnauthorized, "invalid business id"
		}
		log.Error("webhook payload rejected", zap.Error(err), zap.Any("payload", payload))
		return http.StatusBadRequest, "malformed payload"
	}

	o, err := h.provider.MatchOrder(ctx, payload)
	if err != nil {
		h.stats.Rejected.Inc()
		h.markFailed(r, webhookID, err.Error())

		if errors.Is(err, payment.ErrOrderNotMatched) {
			// Keep the payload around for manual triage.
			log.Error("webhook could not be matched to an order", zap.Any("payload", payload))
			return http.StatusNotFound, "order not found"
		}
		log.Error("order matching failed", zap.Error(err))
		return http.StatusInternalServerError, "failed to process webhook"
	}

	if err := h.reconciler.Apply(ctx, o.ID, outcome); err != nil {
		h.stats.Failed.Inc()
		h.markFailed(r, webhookID, err.Error())
		log.Error("reconciliation failed", zap.Uint("order_id", o.ID), zap.Error(err))
		return http.StatusInternalServerError, "failed to process webhook"
	}

	return http.StatusOK, ""
}

func (h *Handler) markFailed(r *http.Request, webhookID int64, reason string) {
	if err := h.repo.MarkWebhookFailed(r.Context(), webhookID, reason); err != nil {
		logger.FromCtx(r.Context()).Error("failed to mark webhook failed", zap.Error(err))
	}
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
