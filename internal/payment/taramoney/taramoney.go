// Package taramoney implements the TaraMoney payment provider: shareable
// order links (WhatsApp, Telegram, SMS) and direct mobile-money collections
// (Orange Money, MTN Mobile Money) with USSD dial codes.
package taramoney

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"olkupay-be/internal/logger"
	"olkupay-be/internal/order"
	"olkupay-be/internal/payment"

	"go.uber.org/zap"
)

const (
	ProviderID = "taramoney"

	// providerName is the display label used in order notes and outcome
	// attribution.
	providerName = "TaraMoney"

	BaseURL = "https://www.dklo.co/api/tara"

	endpointOrder       = "order"
	endpointMobileMoney = "cmmobile"

	statusSuccess = "SUCCESS"
)

// The order endpoint signals success either via status or via one of two
// error-code spellings observed in the wild.
var successErrorCodes = map[string]bool{
	"API_ORDER_SUCESSFULL": true,
	"API_ORDER_SUCCESSFUL": true,
}

// Metadata keys recorded on orders. The webhook matcher relies on
// metaPaymentID being written by the mobile-money flow.
const (
	metaWhatsappLink = "_taramoney_whatsapp_link"
	metaTelegramLink = "_taramoney_telegram_link"
	metaDikaloLink   = "_taramoney_dikalo_link"
	metaSMSLink      = "_taramoney_sms_link"
	metaPaymentType  = "_taramoney_payment_type"
	metaUSSDCode     = "_taramoney_ussd_code"
	metaVendor       = "_taramoney_vendor"
	metaPhoneNumber  = "_taramoney_phone_number"
	metaPaymentID    = "_taramoney_payment_id"
)

// Config is the resolved (test or live) credential set plus channel flags.
type Config struct {
	APIKey            string
	BusinessID        string
	WebhookSecret     string
	EnableMobileMoney bool
	ReturnURL         string
	WebhookURL        string
}

type Gateway struct {
	cfg   Config
	api   *payment.APIClient
	store order.Store
}

func New(cfg Config, api *payment.APIClient, store order.Store) *Gateway {
	if api == nil {
		api = payment.NewAPIClient(BaseURL, nil, 0)
	}

	return &Gateway{
		cfg:   cfg,
		api:   api,
		store: store,
	}
}

func (g *Gateway) ID() string { return ProviderID }

// Initiate validates configuration, selects the channel and calls the
// provider. Mobile money is used iff it is enabled and a phone number was
// supplied; otherwise the order-link flow applies.
func (g *Gateway) Initiate(ctx context.Context, o *order.Order, req payment.CheckoutRequest) (*payment.InitiationResult, error) {
	if g.cfg.APIKey == "" || g.cfg.BusinessID == "" {
		return nil, payment.ErrNotConfigured
	}

	log := logger.FromCtx(ctx).With(zap.Uint("order_id", o.ID))
	log.Info("processing payment")

	if g.cfg.EnableMobileMoney && req.PhoneNumber != "" {
		return g.initiateMobileMoney(ctx, o, req.PhoneNumber, log)
	}

	return g.initiateOrderLink(ctx, o, log)
}

func (g *Gateway) initiateOrderLink(ctx context.Context, o *order.Order, log *zap.Logger) (*payment.InitiationResult, error) {
	log.Info("creating TaraMoney order link")

	body := map[string]any{
		"apiKey":             g.cfg.APIKey,
		"businessId":         g.cfg.BusinessID,
		"productId":          strconv.FormatUint(uint64(o.ID), 10),
		"productName":        orderProductName(o),
		"productPrice":       o.TotalAmount,
		"productDescription": orderDescription(o),
		"productPictureUrl":  orderProductImage(o),
		"returnUrl":          g.cfg.ReturnURL,
		"webHookUrl":         g.cfg.WebhookURL,
	}

	resp, err := g.api.Post(ctx, endpointOrder, body)
	if err != nil {
		log.Error("order link creation failed", zap.Error(err))
		return nil, err
	}

	data := resp.Data
	isSuccess := str(data, "status") == statusSuccess || successErrorCodes[str(data, "error")]
	if !isSuccess {
		log.Error("order link creation rejected", zap.Any("response", data))
		return nil, &payment.RemoteError{StatusCode: resp.StatusCode, Body: data}
	}

	meta := map[string]string{
		metaWhatsappLink: str(data, "whatsappLink"),
		metaTelegramLink: str(data, "telegramLink"),
		metaDikaloLink:   str(data, "dikaloLink"),
		metaSMSLink:      str(data, "smsLink"),
		metaPaymentType:  string(payment.ChannelOrderLink),
	}
	if err := g.store.MergeMetadata(ctx, o.ID, meta); err != nil {
		return nil, fmt.Errorf("save payment links: %w", err)
	}

	if err := g.store.SetStatus(ctx, o.ID, order.PaymentStatusPending, "Awaiting TaraMoney payment"); err != nil {
		return nil, fmt.Errorf("mark order pending: %w", err)
	}

	log.Info("order link created successfully",
		zap.Strings("links", presentLinks(data)),
	)

	// Prefer the Dikalo link for redirect, then the remaining channels.
	redirect := firstNonEmpty(
		str(data, "dikaloLink"),
		str(data, "whatsappLink"),
		str(data, "telegramLink"),
		str(data, "smsLink"),
		g.cfg.ReturnURL,
	)

	return &payment.InitiationResult{
		Channel:     payment.ChannelOrderLink,
		RedirectURL: redirect,
		Instructions: payment.InjectVariables(
			payment.GetInstructions(payment.ChannelOrderLink),
			payment.InstructionVars{"amount": formatAmount(o)},
		),
	}, nil
}

func (g *Gateway) initiateMobileMoney(ctx context.Context, o *order.Order, phoneNumber string, log *zap.Logger) (*payment.InitiationResult, error) {
	log.Info("creating TaraMoney mobile money payment",
		zap.String("phone_number", phoneNumber),
	)

	body := map[string]any{
		"apiKey":       g.cfg.APIKey,
		"businessId":   g.cfg.BusinessID,
		"productId":    strconv.FormatUint(uint64(o.ID), 10),
		"productName":  orderProductName(o),
		"productPrice": o.TotalAmount,
		"phoneNumber":  phoneNumber,
		"webHookUrl":   g.cfg.WebhookURL,
	}

	resp, err := g.api.Post(ctx, endpointMobileMoney, body)
	if err != nil {
		log.Error("mobile money payment failed", zap.Error(err))
		return nil, err
	}

	data := resp.Data
	if str(data, "status") != statusSuccess {
		log.Error("mobile money payment rejected", zap.Any("response", data))
		return nil, &payment.RemoteError{StatusCode: resp.StatusCode, Body: data}
	}

	ussdCode := str(data, "ussdCode")
	vendor := str(data, "vendor")

	meta := map[string]string{
		metaUSSDCode:    ussdCode,
		metaVendor:      vendor,
		metaPhoneNumber: phoneNumber,
		metaPaymentType: string(payment.ChannelMobileMoney),
		metaPaymentID:   str(data, "paymentId"),
	}
	if err := g.store.MergeMetadata(ctx, o.ID, meta); err != nil {
		return nil, fmt.Errorf("save mobile money details: %w", err)
	}

	note := fmt.Sprintf("Awaiting mobile money payment. Dial %s on your %s phone.", ussdCode, vendor)
	if err := g.store.SetStatus(ctx, o.ID, order.PaymentStatusPending, note); err != nil {
		return nil, fmt.Errorf("mark order pending: %w", err)
	}

	log.Info("mobile money payment initiated",
		zap.String("ussd_code", ussdCode),
		zap.String("vendor", vendor),
	)

	return &payment.InitiationResult{
		Channel:     payment.ChannelMobileMoney,
		RedirectURL: g.cfg.ReturnURL,
		Message:     fmt.Sprintf("Please dial %s on your mobile phone to complete payment.", ussdCode),
		Instructions: payment.InjectVariables(
			payment.GetInstructions(payment.ChannelMobileMoney),
			payment.InstructionVars{
				"ussd_code": ussdCode,
				"vendor":    vendor,
				"amount":    formatAmount(o),
			},
		),
	}, nil
}

// VerifySignature checks the HMAC-SHA256 hex digest of the raw body against
// the signature header. Operates on the exact bytes the provider sent;
// re-serialized JSON would break the check. Vacuously true when no secret is
// configured (documented weak-security mode).
func (g *Gateway) VerifySignature(rawBody []byte, signatureHeader string) bool {
	if g.cfg.WebhookSecret == "" {
		return true
	}
	if signatureHeader == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.TrimSpace(signatureHeader))
	if err != nil {
		return false
	}

	return hmac.Equal(expected, got)
}

// MatchOrder resolves a webhook payload to an order. The provider-assigned
// payment id (mobile-money path) is the stronger correlation and is tried
// first; the self-issued productId reference (order-link path) is the
// fallback.
func (g *Gateway) MatchOrder(ctx context.Context, payload map[string]any) (*order.Order, error) {
	paymentID := str(payload, "paymentId")

	if _, ok := payload["collectionId"]; ok && paymentID != "" {
		o, err := g.store.FindByMetadata(ctx, metaPaymentID, paymentID)
		if err == nil {
			return o, nil
		}
		if err != order.ErrOrderNotFound {
			return nil, err
		}
	}

	if productID := str(payload, "productId"); productID != "" {
		id, err := strconv.ParseUint(productID, 10, 64)
		if err == nil && id > 0 {
			o, err := g.store.GetOrder(ctx, uint(id))
			if err == nil {
				if g.cfg.WebhookSecret == "" {
					// The productId reference is client-suppliable; without
					// signature verification this match rests on trust alone.
					logger.FromCtx(ctx).Warn("order matched via self-issued reference without signature verification",
						zap.Uint("order_id", o.ID),
					)
				}
				return o, nil
			}
			if err != order.ErrOrderNotFound {
				return nil, err
			}
		}
	}

	return nil, payment.ErrOrderNotMatched
}

// MapOutcome normalizes a webhook payload. The business id check is a hard
// authorization gate: TaraMoney multiplexes webhook delivery across tenants
// on one endpoint.
func (g *Gateway) MapOutcome(payload map[string]any) (*payment.Outcome, error) {
	if str(payload, "businessId") != g.cfg.BusinessID {
		return nil, payment.ErrTenantMismatch
	}

	status := str(payload, "status")
	if status == "" {
		return nil, payment.ErrMalformedPayload
	}

	outcome := payment.OutcomeFailed
	if status == statusSuccess || successErrorCodes[status] {
		outcome = payment.OutcomeSucceeded
	}

	paymentID := str(payload, "paymentId")
	transactionRef := str(payload, "transactionCode")
	if transactionRef == "" {
		transactionRef = paymentID
	}

	return &payment.Outcome{
		Provider:          providerName,
		Status:            outcome,
		TransactionRef:    transactionRef,
		ProviderPaymentID: paymentID,
		ProviderStatus:    status,
		Raw:               payload,
	}, nil
}

// Refund is advertised by the provider but not implemented by its API.
func (g *Gateway) Refund(ctx context.Context, o *order.Order, amount int64, reason string) error {
	return payment.ErrRefundNotSupported
}

func orderProductName(o *order.Order) string {
	if len(o.Items) == 1 {
		return o.Items[0].Name
	}
	return fmt.Sprintf("Order #%s", o.Number)
}

func orderDescription(o *order.Order) string {
	names := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		names = append(names, fmt.Sprintf("%s x %d", it.Name, it.Quantity))
	}
	return strings.Join(names, ", ")
}

func orderProductImage(o *order.Order) string {
	if len(o.Items) == 0 {
		return ""
	}
	return o.Items[0].ImageURL
}

func formatAmount(o *order.Order) string {
	if o.Currency == "" {
		return strconv.FormatInt(o.TotalAmount, 10)
	}
	return fmt.Sprintf("%d %s", o.TotalAmount, o.Currency)
}

func presentLinks(data map[string]any) []string {
	var links []string
	for _, l := range []struct{ label, key string }{
		{"whatsapp", "whatsappLink"},
		{"telegram", "telegramLink"},
		{"dikalo", "dikaloLink"},
		{"sms", "smsLink"},
	} {
		if str(data, l.key) != "" {
			links = append(links, l.label)
		}
	}
	return links
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
