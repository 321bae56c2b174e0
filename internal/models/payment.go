package models

import (
	"time"
)

// PaymentStatus represents the status of one payment attempt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is one attempt to collect money for a reservation. A reservation
// may accumulate several payment rows over its life (retry after failure) but
// holds at most one non-terminal (pending) payment at a time. OrderID is
// locally generated, globally unique, and is the idempotency key for gateway
// callbacks.
type Payment struct {
	ID             string        `json:"id" db:"id"`
	ReservationID  string        `json:"reservation_id" db:"reservation_id"`
	OrderID        string        `json:"order_id" db:"order_id"`
	Amount         float64       `json:"amount" db:"amount"`
	DiscountAmount float64       `json:"discount_amount" db:"discount_amount"`
	PaymentMethod  string        `json:"payment_method" db:"payment_method"`
	PaymentStatus  PaymentStatus `json:"payment_status" db:"payment_status"`
	TransactionID  *string       `json:"transaction_id,omitempty" db:"transaction_id"`
	PaidAt         *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the payment can no longer change from a gateway
// callback. Duplicate or reordered callbacks against a terminal payment must
// return the stored result unchanged.
func (p *Payment) IsTerminal() bool {
	switch p.PaymentStatus {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// GatewayTransaction is the external-processor-specific record of one
// redirect/callback cycle, one-to-one with a payment attempt.
type GatewayTransaction struct {
	ID                string     `json:"id" db:"id"`
	PaymentID         string     `json:"payment_id" db:"payment_id"`
	OrderID           string     `json:"order_id" db:"order_id"`
	ResponseCode      string     `json:"response_code" db:"response_code"`
	BankCode          *string    `json:"bank_code,omitempty" db:"bank_code"`
	TransactionID     *string    `json:"transaction_id,omitempty" db:"transaction_id"`
	PaidAt            *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	SignatureVerified bool       `json:"signature_verified" db:"signature_verified"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// GatewayResult is the internal taxonomy of gateway response codes,
// decoupling reconciliation from the processor's raw code list.
type GatewayResult string

const (
	GatewayResultSuccess           GatewayResult = "success"
	GatewayResultUserCancelled     GatewayResult = "user_cancelled"
	GatewayResultInsufficientFunds GatewayResult = "insufficient_funds"
	GatewayResultExpired           GatewayResult = "expired"
	GatewayResultBankMaintenance   GatewayResult = "bank_maintenance"
	GatewayResultOther             GatewayResult = "other"
)

// CallbackResult carries the verified, already-mapped outcome of a gateway
// callback into the reconciliation state machine.
type CallbackResult struct {
	OrderID       string
	Result        GatewayResult
	ResponseCode  string
	TransactionID string
	BankCode      string
	PaidAt        *time.Time
}

// CallbackOutcome is what applying a callback produced. Known=false means the
// orderId referenced no payment we hold; the callback is acknowledged and
// discarded. Applied=false with Known=true means the payment was already
// terminal and the stored status is returned unchanged.
type CallbackOutcome struct {
	Known   bool          `json:"known"`
	Applied bool          `json:"applied"`
	Status  PaymentStatus `json:"status,omitempty"`
}
