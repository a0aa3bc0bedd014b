package model

import (
	"time"

	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain"
)

type PixStatus string

const (
	PixStatusPending PixStatus = "pending"
	PixStatusPaid    PixStatus = "paid"
	PixStatusExpired PixStatus = "expired"
)

// PixPayment is an instant-payment intent. Amounts are frozen at creation.
type PixPayment struct {
	ID               string          `json:"id"`
	StudentID        string          `json:"student_id"`
	PlanID           string          `json:"plan_id"`
	SubscriptionID   *string         `json:"subscription_id,omitempty"` // reactivation target
	AmountCents      int64           `json:"amount_cents"`
	Currency         string          `json:"currency"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	FinalAmountCents int64           `json:"final_amount_cents"`
	QRCode           string          `json:"qr_code"`
	QRCodeBase64     string          `json:"qr_code_base64"`
	CopyPasteCode    string          `json:"copy_paste_code"`
	GatewayChargeID  string          `json:"gateway_charge_id"`
	Status           PixStatus       `json:"status"`
	ExpiresAt        time.Time       `json:"expires_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	SettingsVersion  int64           `json:"settings_version"`
}

// NewPixPayment prices an intent from the plan and a settings snapshot.
// Gateway fields are filled in once the charge exists.
func NewPixPayment(id, studentID string, plan *Plan, settings PaymentSettings, now time.Time) (*PixPayment, error) {
	if id == "" || studentID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	final, _ := ApplyDiscount(plan.PriceCents, settings.PixDiscountPercent)
	return &PixPayment{
		ID:               id,
		StudentID:        studentID,
		PlanID:           plan.ID,
		AmountCents:      plan.PriceCents,
		Currency:         plan.Currency,
		DiscountPercent:  settings.PixDiscountPercent,
		FinalAmountCents: final,
		Status:           PixStatusPending,
		ExpiresAt:        now.Add(settings.PixExpiration()),
		CreatedAt:        now,
		SettingsVersion:  settings.Version,
	}, nil
}

// DiscountCents is what the student saves by paying with PIX.
func (p *PixPayment) DiscountCents() int64 { return p.AmountCents - p.FinalAmountCents }

// Overdue reports a pending intent whose display window has passed.
func (p *PixPayment) Overdue(now time.Time) bool {
	return p.Status == PixStatusPending && now.After(p.ExpiresAt)
}

// ApplyDiscount returns the final amount and the savings in minor units,
// rounding the final amount half-up to two decimal places.
func ApplyDiscount(amountCents int64, percent decimal.Decimal) (final int64, discount int64) {
	amount := decimal.New(amountCents, -2)
	factor := decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100)))
	final = amount.Mul(factor).Round(2).Shift(2).IntPart()
	return final, amountCents - final
}

// CentsToDecimal renders minor units as a two-place decimal amount.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
