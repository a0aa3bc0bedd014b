package model

import (
	"time"

	"elearning-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Live lists every status a subscription can leave; cancelled is terminal.
var LiveSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusActive,
	SubscriptionStatusSuspended,
}

// Subscription is a student's local record of a recurring plan.
type Subscription struct {
	ID                    string             `json:"id"`
	StudentID             string             `json:"student_id"`
	PlanID                string             `json:"plan_id"`
	Status                SubscriptionStatus `json:"status"`
	GatewaySubscriptionID *string            `json:"gateway_subscription_id,omitempty"`
	CurrentPeriodStart    *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd      *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
	CancelledAt           *time.Time         `json:"cancelled_at,omitempty"`
	// GatewayEventAt is the creation time of the newest gateway event applied to this row.
	GatewayEventAt *time.Time `json:"-"`
}

// NewPendingSubscription creates the unconfirmed shadow row used at checkout.
func NewPendingSubscription(id, studentID, planID string) (*Subscription, error) {
	if id == "" || studentID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:        id,
		StudentID: studentID,
		PlanID:    planID,
		Status:    SubscriptionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsEntitled reports whether the subscription grants access at instant now.
func (s *Subscription) IsEntitled(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.CurrentPeriodEnd == nil || now.Before(*s.CurrentPeriodEnd)
}

// CanTransitionTo encodes the lifecycle graph. Cancelled only leaves through reactivation.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusPending:
		return next == SubscriptionStatusActive || next == SubscriptionStatusSuspended || next == SubscriptionStatusCancelled
	case SubscriptionStatusActive:
		return next == SubscriptionStatusSuspended || next == SubscriptionStatusCancelled || next == SubscriptionStatusActive
	case SubscriptionStatusSuspended:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCancelled
	case SubscriptionStatusCancelled:
		return false
	}
	return false
}

// SubscriptionUpdate describes a guarded transition. The row is only touched when its
// current status is one of From and, for gateway events, EventAt is not older than the
// last event applied.
type SubscriptionUpdate struct {
	Status           SubscriptionStatus
	From             []SubscriptionStatus
	GatewayID        *string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	CancelledAt      *time.Time
	ClearCancelledAt bool
	// ClearGatewayID detaches the row from its gateway subscription. It wins over GatewayID.
	ClearGatewayID bool
	EventAt        *time.Time
	// IgnoreOrder applies the change whatever EventAt is, still advancing the
	// stored event time to the later of the two.
	IgnoreOrder bool
}

// MapGatewaySubscriptionStatus translates processor statuses into the local enum.
func MapGatewaySubscriptionStatus(s string) (SubscriptionStatus, bool) {
	switch s {
	case "active", "trialing":
		return SubscriptionStatusActive, true
	case "past_due", "unpaid":
		return SubscriptionStatusSuspended, true
	case "canceled", "cancelled", "incomplete_expired":
		return SubscriptionStatusCancelled, true
	case "incomplete":
		return SubscriptionStatusPending, true
	}
	return "", false
}
