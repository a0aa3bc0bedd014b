package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // attempt recorded, settlement unknown
	PaymentStatusPaid     PaymentStatus = "paid"     // settled at the gateway
	PaymentStatusFailed   PaymentStatus = "failed"   // gateway declined the attempt
	PaymentStatusRefunded PaymentStatus = "refunded" // money returned after a paid settlement
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodPix  PaymentMethod = "pix"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodPix
}

// CanTransitionTo enforces pending -> paid|failed -> refunded(paid only).
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusFailed
	case PaymentStatusPaid:
		return next == PaymentStatusRefunded
	}
	return false
}

// Payment is one settlement attempt (card) or one paid PIX intent.
type Payment struct {
	ID               string        `json:"id"`
	StudentID        string        `json:"student_id"`
	SubscriptionID   *string       `json:"subscription_id,omitempty"`
	AmountCents      int64         `json:"amount_cents"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	Method           PaymentMethod `json:"payment_method"`
	Installments     *int          `json:"installments,omitempty"`
	PixPaymentID     *string       `json:"pix_payment_id,omitempty"`
	GatewayChargeID  string        `json:"gateway_charge_id"`
	GatewayInvoiceID *string       `json:"gateway_invoice_id,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
