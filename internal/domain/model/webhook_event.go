package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"elearning-billing/internal/domain"
)

// EventKind is the closed set of gateway events this service understands.
type EventKind string

const (
	EventSubscriptionCreated     EventKind = "subscription.created"
	EventSubscriptionUpdated     EventKind = "subscription.updated"
	EventSubscriptionDeleted     EventKind = "subscription.deleted"
	EventInvoicePaymentSucceeded EventKind = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventKind = "invoice.payment_failed"
	EventPixPaymentSucceeded     EventKind = "pix.payment_succeeded"
	EventPixPaymentExpired       EventKind = "pix.payment_expired"
	EventUnknown                 EventKind = "unknown"
)

func parseEventKind(s string) EventKind {
	switch k := EventKind(s); k {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventInvoicePaymentSucceeded, EventInvoicePaymentFailed,
		EventPixPaymentSucceeded, EventPixPaymentExpired:
		return k
	}
	return EventUnknown
}

// WebhookEvent is a verified and decoded gateway event. Data holds exactly one of
// the *EventData types below, selected by Kind; it is nil for EventUnknown.
type WebhookEvent struct {
	ID         string
	Kind       EventKind
	RawType    string
	CreatedAt  time.Time
	ReceivedAt time.Time
	Data       EventData
}

// EventData is implemented only by the payload types in this package.
type EventData interface{ eventData() }

// EventMetadata is the metadata this service attaches when it opens a checkout.
type EventMetadata struct {
	StudentID      string `json:"student_id"`
	PlanID         string `json:"plan_id"`
	SubscriptionID string `json:"subscription_id"`
	PixPaymentID   string `json:"pix_payment_id"`
	Reactivation   string `json:"reactivation"`
}

func (m EventMetadata) IsReactivation() bool {
	ok, _ := strconv.ParseBool(m.Reactivation)
	return ok
}

type SubscriptionEventData struct {
	GatewaySubscriptionID string
	GatewayStatus         string
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
	Metadata              EventMetadata
}

type InvoiceEventData struct {
	InvoiceID             string
	GatewaySubscriptionID string
	ChargeID              string
	Attempt               int
	AmountCents           int64
	Currency              string
	Installments          int
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
}

// AttemptKey identifies one settlement attempt of an invoice.
func (d *InvoiceEventData) AttemptKey() string {
	if d.ChargeID != "" {
		return d.ChargeID
	}
	return fmt.Sprintf("%s#%d", d.InvoiceID, d.Attempt)
}

type PixEventData struct {
	ChargeID     string
	PixPaymentID string
	PaidAt       *time.Time
}

func (*SubscriptionEventData) eventData() {}
func (*InvoiceEventData) eventData()      {}
func (*PixEventData) eventData()          {}

type wireEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type wireSubscription struct {
	ID                 string        `json:"id"`
	Status             string        `json:"status"`
	CurrentPeriodStart int64         `json:"current_period_start"`
	CurrentPeriodEnd   int64         `json:"current_period_end"`
	Metadata           EventMetadata `json:"metadata"`
}

type wireInvoice struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Charge       string `json:"charge"`
	AttemptCount int    `json:"attempt_count"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	Installments int    `json:"installments"`
	PeriodStart  int64  `json:"period_start"`
	PeriodEnd    int64  `json:"period_end"`
}

type wirePix struct {
	ID       string        `json:"id"`
	PaidAt   int64         `json:"paid_at"`
	Metadata EventMetadata `json:"metadata"`
}

// ParseWebhookEvent decodes a raw (already authenticated) payload.
func ParseWebhookEvent(payload []byte, receivedAt time.Time) (*WebhookEvent, error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, domain.ErrMalformedEvent
	}
	ev := &WebhookEvent{
		ID:         env.ID,
		Kind:       parseEventKind(env.Type),
		RawType:    env.Type,
		CreatedAt:  unixOrZero(env.Created, receivedAt),
		ReceivedAt: receivedAt,
	}

	switch ev.Kind {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var w wireSubscription
		if err := json.Unmarshal(env.Data.Object, &w); err != nil || w.ID == "" {
			return nil, domain.ErrMalformedEvent
		}
		ev.Data = &SubscriptionEventData{
			GatewaySubscriptionID: w.ID,
			GatewayStatus:         w.Status,
			PeriodStart:           unixPtr(w.CurrentPeriodStart),
			PeriodEnd:             unixPtr(w.CurrentPeriodEnd),
			Metadata:              w.Metadata,
		}
	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var w wireInvoice
		if err := json.Unmarshal(env.Data.Object, &w); err != nil || w.ID == "" || w.Subscription == "" {
			return nil, domain.ErrMalformedEvent
		}
		amount := w.AmountPaid
		if amount == 0 {
			amount = w.AmountDue
		}
		ev.Data = &InvoiceEventData{
			InvoiceID:             w.ID,
			GatewaySubscriptionID: w.Subscription,
			ChargeID:              w.Charge,
			Attempt:               w.AttemptCount,
			AmountCents:           amount,
			Currency:              w.Currency,
			Installments:          w.Installments,
			PeriodStart:           unixPtr(w.PeriodStart),
			PeriodEnd:             unixPtr(w.PeriodEnd),
		}
	case EventPixPaymentSucceeded, EventPixPaymentExpired:
		var w wirePix
		if err := json.Unmarshal(env.Data.Object, &w); err != nil || w.ID == "" {
			return nil, domain.ErrMalformedEvent
		}
		ev.Data = &PixEventData{
			ChargeID:     w.ID,
			PixPaymentID: w.Metadata.PixPaymentID,
			PaidAt:       unixPtr(w.PaidAt),
		}
	}
	return ev, nil
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func unixOrZero(sec int64, fallback time.Time) time.Time {
	if sec <= 0 {
		return fallback
	}
	return time.Unix(sec, 0).UTC()
}
