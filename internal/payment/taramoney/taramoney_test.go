package taramoney

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"olkupay-be/internal/order"
	"olkupay-be/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of the order.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetOrder(ctx context.Context, id uint) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockStore) FindByMetadata(ctx context.Context, key, value string) (*order.Order, error) {
	args := m.Called(ctx, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockStore) MergeMetadata(ctx context.Context, orderID uint, meta map[string]string) error {
	args := m.Called(ctx, orderID, meta)
	return args.Error(0)
}

func (m *MockStore) SetStatus(ctx context.Context, orderID uint, status order.PaymentStatus, note string) error {
	args := m.Called(ctx, orderID, status, note)
	return args.Error(0)
}

func (m *MockStore) MarkPaid(ctx context.Context, orderID uint, transactionRef string) (bool, error) {
	args := m.Called(ctx, orderID, transactionRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) MarkFailed(ctx context.Context, orderID uint, note string) (bool, error) {
	args := m.Called(ctx, orderID, note)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) AddNote(ctx context.Context, orderID uint, note string) error {
	args := m.Called(ctx, orderID, note)
	return args.Error(0)
}

// fakeTransport records the last outbound request and replays a canned
// response per endpoint.
type fakeTransport struct {
	responses map[string]string // endpoint suffix -> JSON body
	lastBody  map[string]any
	lastPath  string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.lastPath = req.URL.Path
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &f.lastBody)
	}

	for suffix, body := range f.responses {
		if strings.HasSuffix(req.URL.Path, suffix) {
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		}
	}
	return &http.Response{
		StatusCode: 404,
		Body:       io.NopCloser(strings.NewReader(`{"message":"not found"}`)),
	}, nil
}

func testConfig() Config {
	return Config{
		APIKey:            "sk_live_abcdef123",
		BusinessID:        "biz_42",
		WebhookSecret:     "whsec_123",
		EnableMobileMoney: true,
		ReturnURL:         "https://shop.example/thank-you",
		WebhookURL:        "https://shop.example/webhook/taramoney",
	}
}

func newGateway(cfg Config, ft *fakeTransport, store order.Store) *Gateway {
	api := payment.NewAPIClientWithHTTPClient(BaseURL, nil, &http.Client{Transport: ft})
	return New(cfg, api, store)
}

func testOrder() *order.Order {
	return &order.Order{
		ID:            42,
		Number:        "1042",
		TotalAmount:   1500,
		Currency:      "XAF",
		PaymentStatus: order.PaymentStatusNone,
		Items: []order.Item{
			{Name: "Blue T-Shirt", Quantity: 2, ImageURL: "https://shop.example/tshirt.png"},
		},
	}
}

func TestInitiate_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing api key", Config{BusinessID: "biz_42"}},
		{"missing business id", Config{APIKey: "sk_live_abc"}},
		{"missing both", Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{}
			g := newGateway(tt.cfg, ft, new(MockStore))

			_, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{OrderID: 42})

			assert.ErrorIs(t, err, payment.ErrNotConfigured)
			assert.Empty(t, ft.lastPath, "no network call may happen before the config check")
		})
	}
}

func TestInitiate_OrderLink(t *testing.T) {
	ft := &fakeTransport{responses: map[string]string{
		"/order": `{
			"status": "SUCCESS",
			"whatsappLink": "https://wa.me/pay/abc",
			"telegramLink": "https://t.me/pay/abc",
			"dikaloLink": "https://dikalo.me/pay/abc",
			"smsLink": "sms:+237600000000?body=abc"
		}`,
	}}
	store := new(MockStore)
	g := newGateway(testConfig(), ft, store)

	store.On("MergeMetadata", mock.Anything, uint(42), map[string]string{
		"_taramoney_whatsapp_link": "https://wa.me/pay/abc",
		"_taramoney_telegram_link": "https://t.me/pay/abc",
		"_taramoney_dikalo_link":   "https://dikalo.me/pay/abc",
		"_taramoney_sms_link":      "sms:+237600000000?body=abc",
		"_taramoney_payment_type":  "order_link",
	}).Return(nil)
	store.On("SetStatus", mock.Anything, uint(42), order.PaymentStatusPending, "Awaiting TaraMoney payment").Return(nil)

	result, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{OrderID: 42})

	require.NoError(t, err)
	assert.Equal(t, payment.ChannelOrderLink, result.Channel)
	assert.Equal(t, "https://dikalo.me/pay/abc", result.RedirectURL)
	store.AssertExpectations(t)

	assert.Equal(t, "sk_live_abcdef123", ft.lastBody["apiKey"])
	assert.Equal(t, "biz_42", ft.lastBody["businessId"])
	assert.Equal(t, "42", ft.lastBody["productId"])
	assert.Equal(t, "Blue T-Shirt", ft.lastBody["productName"])
	assert.Equal(t, float64(1500), ft.lastBody["productPrice"])
	assert.Equal(t, "Blue T-Shirt x 2", ft.lastBody["productDescription"])
	assert.Equal(t, "https://shop.example/tshirt.png", ft.lastBody["productPictureUrl"])
	assert.Equal(t, "https://shop.example/thank-you", ft.lastBody["returnUrl"])
	assert.Equal(t, "https://shop.example/webhook/taramoney", ft.lastBody["webHookUrl"])
}

func TestInitiate_OrderLinkUsedWhenNoPhone(t *testing.T) {
	ft := &fakeTransport{responses: map[string]string{
		"/order": `{"status":"SUCCESS","whatsappLink":"https://wa.me/pay/abc"}`,
	}}
	store := new(MockStore)
	store.On("MergeMetadata", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	g := newGateway(testConfig(), ft, store) // mobile money enabled, but no phone

	result, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{OrderID: 42})

	require.NoError(t, err)
	assert.Equal(t, payment.ChannelOrderLink, result.Channel)
	assert.True(t, strings.HasSuffix(ft.lastPath, "/order"))
}

func TestInitiate_OrderLinkUsedWhenMobileMoneyDisabled(t *testing.T) {
	ft := &fakeTransport{responses: map[string]string{
		"/order": `{"status":"SUCCESS","whatsappLink":"https://wa.me/pay/abc"}`,
	}}
	store := new(MockStore)
	store.On("MergeMetadata", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	cfg := testConfig()
	cfg.EnableMobileMoney = false
	g := newGateway(cfg, ft, store)

	result, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{
		OrderID:     42,
		PhoneNumber: "670000001",
	})

	require.NoError(t, err)
	assert.Equal(t, payment.ChannelOrderLink, result.Channel)
	assert.True(t, strings.HasSuffix(ft.lastPath, "/order"))
}

func TestInitiate_OrderLinkRedirectFallback(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "whatsapp when no dikalo",
			response: `{"status":"SUCCESS","whatsappLink":"https://wa.me/pay/abc","telegramLink":"https://t.me/pay/abc"}`,
			want:     "https://wa.me/pay/abc",
		},
		{
			name:     "telegram when no dikalo or whatsapp",
			response: `{"status":"SUCCESS","telegramLink":"https://t.me/pay/abc","smsLink":"sms:+2376?body=x"}`,
			want:     "https://t.me/pay/abc",
		},
		{
			name:     "sms as last link",
			response: `{"status":"SUCCESS","smsLink":"sms:+2376?body=x"}`,
			want:     "sms:+2376?body=x",
		},
		{
			name:     "return url when no links at all",
			response: `{"status":"SUCCESS"}`,
			want:     "https://shop.example/thank-you",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{responses: map[string]string{"/order": tt.response}}
			store := new(MockStore)
			store.On("MergeMetadata", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			store.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

			g := newGateway(testConfig(), ft, store)
			result, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{OrderID: 42})

			require.NoError(t, err)
			assert.Equal(t, tt.want, result.RedirectURL)
		})
	}
}

func TestInitiate_OrderLinkSuccessByErrorCode(t *testing.T) {
	// The provider signals success through two spellings of the same code.
	for _, code := range []string{"API_ORDER_SUCESSFULL", "API_ORDER_SUCCESSFUL"} {
		t.Run(code, func(t *testing.T) {
			ft := &fakeTransport{responses: map[string]string{
				"/order": `{"error":"` + code + `","whatsappLink":"https://wa.me/pay/abc"}`,
			}}
			store := new(MockStore)
			store.On("MergeMetadata", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			store.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

			g := newGateway(testConfig(), ft, store)
			result, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{OrderID: 42})

			require.NoError(t, err)
			assert.Equal(t, "https://wa.me/pay/abc", result.RedirectURL)
		})
	}
}

func TestInitiate_OrderLinkRejected(t *testing.T) {
	ft := &fakeTransport{responses: map[string]string{
		"/order": `{"status":"FAILED","message":"Invalid API key"}`,
	}}
	store := new(MockStore)
	g := newGateway(testConfig(), ft, store)

	_, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{OrderID: 42})

	var remote *payment.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Invalid API key", remote.Message())
	store.AssertNotCalled(t, "MergeMetadata")
	store.AssertNotCalled(t, "SetStatus")
}

func TestInitiate_MobileMoney(t *testing.T) {
	ft := &fakeTransport{responses: map[string]string{
		"/cmmobile": `{
			"status": "SUCCESS",
			"ussdCode": "*126#",
			"vendor": "MTN",
			"paymentId": "pay_1"
		}`,
	}}
	store := new(MockStore)
	g := newGateway(testConfig(), ft, store)

	store.On("MergeMetadata", mock.Anything, uint(42), map[string]string{
		"_taramoney_ussd_code":    "*126#",
		"_taramoney_vendor":       "MTN",
		"_taramoney_phone_number": "670000001",
		"_taramoney_payment_type": "mobile_money",
		"_taramoney_payment_id":   "pay_1",
	}).Return(nil)
	store.On("SetStatus", mock.Anything, uint(42), order.PaymentStatusPending,
		"Awaiting mobile money payment. Dial *126# on your MTN phone.").Return(nil)

	result, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{
		OrderID:     42,
		PhoneNumber: "670000001",
	})

	require.NoError(t, err)
	assert.Equal(t, payment.ChannelMobileMoney, result.Channel)
	assert.Equal(t, "https://shop.example/thank-you", result.RedirectURL)
	assert.Equal(t, "Please dial *126# on your mobile phone to complete payment.", result.Message)
	assert.Contains(t, result.Instructions[0], "*126#")
	assert.Contains(t, result.Instructions[0], "MTN")
	store.AssertExpectations(t)

	assert.True(t, strings.HasSuffix(ft.lastPath, "/cmmobile"))
	assert.Equal(t, "670000001", ft.lastBody["phoneNumber"])
}

func TestInitiate_MobileMoneyRejected(t *testing.T) {
	ft := &fakeTransport{responses: map[string]string{
		"/cmmobile": `{"status":"FAILED","message":"Unsupported phone number"}`,
	}}
	store := new(MockStore)
	g := newGateway(testConfig(), ft, store)

	_, err := g.Initiate(context.Background(), testOrder(), payment.CheckoutRequest{
		OrderID:     42,
		PhoneNumber: "670000001",
	})

	var remote *payment.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Unsupported phone number", remote.Message())
	store.AssertNotCalled(t, "SetStatus")
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"paymentId":"pay_1","status":"SUCCESS"}`)

	g := New(testConfig(), nil, nil)

	t.Run("valid", func(t *testing.T) {
		assert.True(t, g.VerifySignature(body, sign("whsec_123", body)))
	})

	t.Run("valid with surrounding whitespace", func(t *testing.T) {
		assert.True(t, g.VerifySignature(body, " "+sign("whsec_123", body)+"\n"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, g.VerifySignature(body, sign("other", body)))
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := sign("whsec_123", body)
		assert.False(t, g.VerifySignature([]byte(`{"paymentId":"pay_2"}`), sig))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.False(t, g.VerifySignature(body, ""))
	})

	t.Run("garbage header", func(t *testing.T) {
		assert.False(t, g.VerifySignature(body, "not-hex"))
	})

	t.Run("no secret configured accepts anything", func(t *testing.T) {
		cfg := testConfig()
		cfg.WebhookSecret = ""
		open := New(cfg, nil, nil)

		assert.True(t, open.VerifySignature(body, ""))
		assert.True(t, open.VerifySignature(body, "whatever"))
	})
}

func TestMatchOrder_ByPaymentID(t *testing.T) {
	store := new(MockStore)
	g := New(testConfig(), nil, store)

	want := &order.Order{ID: 42, PaymentStatus: order.PaymentStatusPending}
	store.On("FindByMetadata", mock.Anything, "_taramoney_payment_id", "pay_1").Return(want, nil)

	got, err := g.MatchOrder(context.Background(), map[string]any{
		"collectionId": "col_9",
		"paymentId":    "pay_1",
	})

	require.NoError(t, err)
	assert.Equal(t, want, got)
	store.AssertNotCalled(t, "GetOrder")
}

func TestMatchOrder_FallbackToProductID(t *testing.T) {
	store := new(MockStore)
	g := New(testConfig(), nil, store)

	want := &order.Order{ID: 42, PaymentStatus: order.PaymentStatusPending}
	store.On("GetOrder", mock.Anything, uint(42)).Return(want, nil)

	got, err := g.MatchOrder(context.Background(), map[string]any{
		"productId": "42",
		"status":    "SUCCESS",
	})

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMatchOrder_PaymentIDMissThenProductID(t *testing.T) {
	store := new(MockStore)
	g := New(testConfig(), nil, store)

	want := &order.Order{ID: 42}
	store.On("FindByMetadata", mock.Anything, "_taramoney_payment_id", "pay_1").
		Return(nil, order.ErrOrderNotFound)
	store.On("GetOrder", mock.Anything, uint(42)).Return(want, nil)

	got, err := g.MatchOrder(context.Background(), map[string]any{
		"collectionId": "col_9",
		"paymentId":    "pay_1",
		"productId":    "42",
	})

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMatchOrder_NoMatch(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"empty payload", map[string]any{}},
		{"non-numeric product id", map[string]any{"productId": "abc"}},
		{"zero product id", map[string]any{"productId": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			g := New(testConfig(), nil, store)

			_, err := g.MatchOrder(context.Background(), tt.payload)
			assert.ErrorIs(t, err, payment.ErrOrderNotMatched)
		})
	}

	t.Run("unknown order id", func(t *testing.T) {
		store := new(MockStore)
		g := New(testConfig(), nil, store)
		store.On("GetOrder", mock.Anything, uint(99)).Return(nil, order.ErrOrderNotFound)

		_, err := g.MatchOrder(context.Background(), map[string]any{"productId": "99"})
		assert.ErrorIs(t, err, payment.ErrOrderNotMatched)
	})
}

func TestMapOutcome(t *testing.T) {
	g := New(testConfig(), nil, nil)

	t.Run("tenant mismatch", func(t *testing.T) {
		_, err := g.MapOutcome(map[string]any{
			"businessId": "someone_else",
			"status":     "SUCCESS",
		})
		assert.ErrorIs(t, err, payment.ErrTenantMismatch)
	})

	t.Run("missing business id", func(t *testing.T) {
		_, err := g.MapOutcome(map[string]any{"status": "SUCCESS"})
		assert.ErrorIs(t, err, payment.ErrTenantMismatch)
	})

	t.Run("missing status", func(t *testing.T) {
		_, err := g.MapOutcome(map[string]any{"businessId": "biz_42"})
		assert.ErrorIs(t, err, payment.ErrMalformedPayload)
	})

	t.Run("success", func(t *testing.T) {
		out, err := g.MapOutcome(map[string]any{
			"businessId":      "biz_42",
			"status":          "SUCCESS",
			"paymentId":       "pay_1",
			"transactionCode": "tx_9",
		})

		require.NoError(t, err)
		assert.Equal(t, "TaraMoney", out.Provider)
		assert.Equal(t, payment.OutcomeSucceeded, out.Status)
		assert.Equal(t, "tx_9", out.TransactionRef)
		assert.Equal(t, "pay_1", out.ProviderPaymentID)
		assert.Equal(t, "SUCCESS", out.ProviderStatus)
	})

	t.Run("success via error code spellings", func(t *testing.T) {
		for _, code := range []string{"API_ORDER_SUCESSFULL", "API_ORDER_SUCCESSFUL"} {
			out, err := g.MapOutcome(map[string]any{
				"businessId": "biz_42",
				"status":     code,
			})
			require.NoError(t, err)
			assert.Equal(t, payment.OutcomeSucceeded, out.Status, code)
		}
	})

	t.Run("transaction ref falls back to payment id", func(t *testing.T) {
		out, err := g.MapOutcome(map[string]any{
			"businessId": "biz_42",
			"status":     "SUCCESS",
			"paymentId":  "pay_1",
		})

		require.NoError(t, err)
		assert.Equal(t, "pay_1", out.TransactionRef)
	})

	t.Run("anything else is a failure", func(t *testing.T) {
		out, err := g.MapOutcome(map[string]any{
			"businessId": "biz_42",
			"status":     "API_ORDER_FAILED",
		})

		require.NoError(t, err)
		assert.Equal(t, payment.OutcomeFailed, out.Status)
		assert.Equal(t, "API_ORDER_FAILED", out.ProviderStatus)
	})
}

func TestRefund(t *testing.T) {
	g := New(testConfig(), nil, nil)

	err := g.Refund(context.Background(), testOrder(), 1500, "customer request")
	assert.ErrorIs(t, err, payment.ErrRefundNotSupported)
}

func TestOrderProductName(t *testing.T) {
	single := testOrder()
	assert.Equal(t, "Blue T-Shirt", orderProductName(single))

	multi := testOrder()
	multi.Items = append(multi.Items, order.Item{Name: "Red Cap", Quantity: 1})
	assert.Equal(t, "Order #1042", orderProductName(multi))
	assert.Equal(t, "Blue T-Shirt x 2, Red Cap x 1", orderDescription(multi))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1500 XAF", formatAmount(testOrder()))

	noCurrency := testOrder()
	noCurrency.Currency = ""
	assert.Equal(t, "1500", formatAmount(noCurrency))
}
