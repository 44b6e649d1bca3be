package payment

type Channel string

const (
	ChannelOrderLink   Channel = "order_link"
	ChannelMobileMoney Channel = "mobile_money"
)

// CheckoutRequest is the synchronous checkout input. PhoneNumber is the
// channel data for the mobile-money flow; channel selection itself is
// data-driven, not a user toggle.
type CheckoutRequest struct {
	OrderID     uint   `json:"order_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type InitiationResult struct {
	Channel      Channel  `json:"channel"`
	RedirectURL  string   `json:"redirect"`
	Message      string   `json:"message,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the canonical result derived from a provider-specific webhook
// payload. Absent optional fields are empty strings, never nil lookups.
type Outcome struct {
	Provider          string
	Status            OutcomeStatus
	TransactionRef    string
	ProviderPaymentID string
	ProviderStatus    string
	Raw               map[string]any
}
