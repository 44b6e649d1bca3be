package order

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusNone       PaymentStatus = "no_payment"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Terminal reports whether the payment engine may still mutate the order.
// processing/completed/failed never transition back to pending.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusProcessing ||
		s == PaymentStatusCompleted ||
		s == PaymentStatusFailed
}

// Paid reports terminal-success. completed is set by later store-level
// fulfilment logic but counts the same here.
func (s PaymentStatus) Paid() bool {
	return s == PaymentStatusProcessing || s == PaymentStatusCompleted
}

type Order struct {
	ID               uint
	Number           string
	TotalAmount      int64 // minor currency units, provider expects integers
	Currency         string
	PaymentStatus    PaymentStatus
	PaymentReference string
	Metadata         map[string]string
	Items            []Item
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Item struct {
	Name     string
	Quantity int
	ImageURL string
}
