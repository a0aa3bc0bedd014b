package apiv1

import (
	"time"

	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/usecase"
)

type CheckoutRequest struct {
	PlanID        string `json:"planId"`
	PaymentMethod string `json:"paymentMethod"`
	Installments  *int   `json:"installments,omitempty"`
}

type ReactivateRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	Installments  *int   `json:"installments,omitempty"`
}

type CreateSubscriptionRequest struct {
	PlanID string `json:"planId"`
}

// PaymentConfig is both the admin read model and the write body.
type PaymentConfig struct {
	MaxInstallments             *int             `json:"maxInstallments"`
	PixDiscountPercent          *decimal.Decimal `json:"pixDiscountPercent"`
	InstallmentsWithoutInterest *int             `json:"installmentsWithoutInterest"`
	PixExpirationMinutes        *int             `json:"pixExpirationMinutes"`
	Version                     int64            `json:"version,omitempty"`
	UpdatedBy                   string           `json:"updatedBy,omitempty"`
	UpdatedAt                   *time.Time       `json:"updatedAt,omitempty"`
}

// CheckoutResponse carries the card fields or the pix fields depending on PaymentMethod.
type CheckoutResponse struct {
	PaymentMethod  string     `json:"paymentMethod"`
	CheckoutURL    string     `json:"checkoutUrl,omitempty"`
	SessionID      string     `json:"sessionId,omitempty"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	PaymentID      string     `json:"paymentId,omitempty"`
	QRCode         string     `json:"qrCode,omitempty"`
	QRCodeBase64   string     `json:"qrCodeBase64,omitempty"`
	CopyPasteCode  string     `json:"copyPasteCode,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Amount         string     `json:"amount,omitempty"`
	Discount       string     `json:"discount,omitempty"`
	FinalAmount    string     `json:"finalAmount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
}

type PixStatus struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paidAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	FinalAmount string     `json:"finalAmount"`
}

type Subscription struct {
	ID                 string     `json:"id"`
	PlanID             string     `json:"planId"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
	Interval   string `json:"interval"`
}

func money(cents int64) string { return model.CentsToDecimal(cents).StringFixed(2) }

func toCheckoutResponse(res *usecase.CheckoutResult) CheckoutResponse {
	if res.Pix == nil {
		return CheckoutResponse{
			PaymentMethod:  string(res.Method),
			CheckoutURL:    res.CheckoutURL,
			SessionID:      res.SessionID,
			SubscriptionID: res.SubscriptionID,
		}
	}
	p := res.Pix
	expires := p.ExpiresAt
	return CheckoutResponse{
		PaymentMethod: string(model.PaymentMethodPix),
		PaymentID:     p.ID,
		QRCode:        p.QRCode,
		QRCodeBase64:  p.QRCodeBase64,
		CopyPasteCode: p.CopyPasteCode,
		ExpiresAt:     &expires,
		Amount:        money(p.AmountCents),
		Discount:      money(p.DiscountCents()),
		FinalAmount:   money(p.FinalAmountCents),
		Currency:      p.Currency,
	}
}

func toPaymentConfig(s *model.PaymentSettings) PaymentConfig {
	pct := s.PixDiscountPercent
	out := PaymentConfig{
		MaxInstallments:             &s.MaxInstallments,
		PixDiscountPercent:          &pct,
		InstallmentsWithoutInterest: &s.InstallmentsWithoutInterest,
		PixExpirationMinutes:        &s.PixExpirationMinutes,
		Version:                     s.Version,
		UpdatedBy:                   s.UpdatedBy,
	}
	if !s.CreatedAt.IsZero() {
		at := s.CreatedAt
		out.UpdatedAt = &at
	}
	return out
}

func toSubscription(s *model.Subscription) Subscription {
	return Subscription{
		ID:                 s.ID,
		PlanID:             s.PlanID,
		Status:             string(s.Status),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
	}
}

func toPlan(p *model.Plan) Plan {
	return Plan{
		ID:         p.ID,
		Name:       p.Name,
		Price:      money(p.PriceCents),
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
		Interval:   string(p.Interval),
	}
}
