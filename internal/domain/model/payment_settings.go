package model

import (
	"time"

	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain"
)

const (
	MaxInstallmentsCeiling      = 24
	MaxPixExpirationMinutes     = 24 * 60
	DefaultPixExpirationMinutes = 30
)

// PaymentSettings is one immutable version of the admin-tunable payment parameters.
// It is passed by value so an in-flight operation never observes a later write.
type PaymentSettings struct {
	Version                     int64           `json:"version"`
	MaxInstallments             int             `json:"max_installments"`
	PixDiscountPercent          decimal.Decimal `json:"pix_discount_percent"`
	InstallmentsWithoutInterest int             `json:"installments_without_interest"`
	PixExpirationMinutes        int             `json:"pix_expiration_minutes"`
	UpdatedBy                   string          `json:"updated_by"`
	CreatedAt                   time.Time       `json:"created_at"`
}

// PaymentSettingsInput is an admin write request.
type PaymentSettingsInput struct {
	MaxInstallments             int
	PixDiscountPercent          decimal.Decimal
	InstallmentsWithoutInterest int
	PixExpirationMinutes        int
}

func (in PaymentSettingsInput) Validate() error {
	if in.MaxInstallments < 1 || in.MaxInstallments > MaxInstallmentsCeiling {
		return domain.ErrInvalidPaymentSetting
	}
	if in.PixDiscountPercent.IsNegative() || in.PixDiscountPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return domain.ErrInvalidPaymentSetting
	}
	if in.InstallmentsWithoutInterest < 0 || in.InstallmentsWithoutInterest > in.MaxInstallments {
		return domain.ErrInvalidPaymentSetting
	}
	if in.PixExpirationMinutes < 1 || in.PixExpirationMinutes > MaxPixExpirationMinutes {
		return domain.ErrInvalidPaymentSetting
	}
	return nil
}

// AllowsInstallments checks 1 <= n <= MaxInstallments.
func (s PaymentSettings) AllowsInstallments(n int) bool {
	return n >= 1 && n <= s.MaxInstallments
}

// InterestFree reports whether n installments carry no interest for the student.
func (s PaymentSettings) InterestFree(n int) bool {
	return n <= s.InstallmentsWithoutInterest
}

// PixExpiration is the lifetime of a PIX intent created under these settings.
func (s PaymentSettings) PixExpiration() time.Duration {
	return time.Duration(s.PixExpirationMinutes) * time.Minute
}
