package adapter

import (
	"context"
	"time"

	"elearning-billing/internal/domain/model"
)

// CheckoutSessionRequest opens a hosted card checkout for a recurring plan.
type CheckoutSessionRequest struct {
	Reference    string // idempotency key for the gateway
	StudentID    string
	PlanID       string
	AmountCents  int64
	Currency     string
	Interval     model.BillingInterval
	Installments int
	InterestFree bool
	SuccessURL   string
	CancelURL    string
	Metadata     map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PixChargeRequest asks the gateway for a QR code for an exact amount.
type PixChargeRequest struct {
	Reference   string
	AmountCents int64
	Currency    string
	ExpiresAt   time.Time
	Description string
	Metadata    map[string]string
}

type PixChargeStatus string

const (
	PixChargePending PixChargeStatus = "pending"
	PixChargePaid    PixChargeStatus = "paid"
	PixChargeExpired PixChargeStatus = "expired"
)

type PixCharge struct {
	ID            string
	Status        PixChargeStatus
	QRCode        string
	QRCodeBase64  string
	CopyPasteCode string
	ExpiresAt     time.Time
	PaidAt        *time.Time
}

// PaymentGateway is the hex port for the external payment processor.
type PaymentGateway interface {
	Name() string

	// CreateCheckoutSession returns a hosted page for card payment with installments.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// CreatePixCharge issues a QR code and copy-paste string for a PIX intent.
	CreatePixCharge(ctx context.Context, req PixChargeRequest) (*PixCharge, error)
	// GetPixCharge returns the gateway's authoritative view of a PIX charge.
	GetPixCharge(ctx context.Context, chargeID string) (*PixCharge, error)
	// VerifyWebhookSignature authenticates a raw webhook body against its signature header.
	VerifyWebhookSignature(payload []byte, signature string) error
	// ListCharges returns settled charges created in [from, to).
	ListCharges(ctx context.Context, from, to time.Time) ([]model.GatewayCharge, error)
	// CancelSubscription stops renewal of a gateway subscription.
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
}
