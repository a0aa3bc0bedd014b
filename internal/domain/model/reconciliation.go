package model

import "time"

// GatewayCharge is a settled charge as reported by the gateway ledger.
type GatewayCharge struct {
	ID          string
	AmountCents int64
	Currency    string
	Method      PaymentMethod
	Status      string
	CreatedAt   time.Time
}

type MismatchKind string

const (
	MismatchMissingLocal   MismatchKind = "missing_local"
	MismatchMissingGateway MismatchKind = "missing_gateway"
	MismatchAmount         MismatchKind = "amount_mismatch"
)

type ReconciliationItem struct {
	Kind               MismatchKind `json:"kind"`
	GatewayChargeID    string       `json:"gateway_charge_id"`
	PaymentID          string       `json:"payment_id,omitempty"`
	LocalAmountCents   int64        `json:"local_amount_cents"`
	GatewayAmountCents int64        `json:"gateway_amount_cents"`
}

// ReconciliationReport compares the local ledger to the gateway for [From, To).
type ReconciliationReport struct {
	From               time.Time               `json:"from"`
	To                 time.Time               `json:"to"`
	LocalCount         int                     `json:"local_count"`
	GatewayCount       int                     `json:"gateway_count"`
	LocalTotalCents    int64                   `json:"local_total_cents"`
	GatewayTotalCents  int64                   `json:"gateway_total_cents"`
	LocalByMethodCents map[PaymentMethod]int64 `json:"local_by_method_cents"`
	Items              []ReconciliationItem    `json:"items"`
}

func (r *ReconciliationReport) Balanced() bool { return len(r.Items) == 0 }
