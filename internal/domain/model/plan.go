package model

import (
	"time"

	"elearning-billing/internal/domain"
)

type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

// Plan is a catalog entry a student can subscribe to. Prices are in minor units.
type Plan struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceCents int64           `json:"price_cents"`
	Currency   string          `json:"currency"`
	Interval   BillingInterval `json:"interval"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, priceCents int64, currency string, interval BillingInterval) (*Plan, error) {
	if id == "" || name == "" || priceCents <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if interval != BillingIntervalMonth && interval != BillingIntervalYear {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:         id,
		Name:       name,
		PriceCents: priceCents,
		Currency:   currency,
		Interval:   interval,
		Active:     true,
		CreatedAt:  time.Now(),
	}, nil
}

// PeriodEnd returns the end of one billing period starting at start.
func (p *Plan) PeriodEnd(start time.Time) time.Time {
	if p.Interval == BillingIntervalYear {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
