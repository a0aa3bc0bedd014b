package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxGateway is an in-memory gateway for dev mode and tests. It signs
// webhooks with the same scheme as the real processor.
type SandboxGateway struct {
	mu        sync.Mutex
	seq       int64
	secret    string
	tolerance time.Duration
	now       func() time.Time

	sessions      map[string]adapter.CheckoutSessionRequest // reference -> request
	sessionIDs    map[string]string                         // reference -> session id
	pix           map[string]*adapter.PixCharge
	pixByRef      map[string]string
	charges       map[string]model.GatewayCharge
	cancelled     map[string]bool
	unavailable   bool
	checkoutCalls int
}

func NewSandboxGateway(secret string) *SandboxGateway {
	return &SandboxGateway{
		secret:     secret,
		tolerance:  5 * time.Minute,
		now:        time.Now,
		sessions:   make(map[string]adapter.CheckoutSessionRequest),
		sessionIDs: make(map[string]string),
		pix:        make(map[string]*adapter.PixCharge),
		pixByRef:   make(map[string]string),
		charges:    make(map[string]model.GatewayCharge),
		cancelled:  make(map[string]bool),
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_sandbox_%d", prefix, g.seq)
}

// SetUnavailable makes every outbound call fail with ErrGatewayUnavailable.
func (g *SandboxGateway) SetUnavailable(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = down
}

// SetClock overrides the time source.
func (g *SandboxGateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

func (g *SandboxGateway) CreateCheckoutSession(_ context.Context, in adapter.CheckoutSessionRequest) (*adapter.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkoutCalls++
	if g.unavailable {
		return nil, domain.ErrGatewayUnavailable
	}
	// same reference, same session
	if id, ok := g.sessionIDs[in.Reference]; ok && in.Reference != "" {
		return &adapter.CheckoutSession{ID: id, URL: "https://sandbox.gateway.test/checkout/" + id}, nil
	}
	id := g.next("cs")
	g.sessions[in.Reference] = in
	g.sessionIDs[in.Reference] = id
	return &adapter.CheckoutSession{ID: id, URL: "https://sandbox.gateway.test/checkout/" + id}, nil
}

// CheckoutCalls reports how many sessions were requested, including failed ones.
func (g *SandboxGateway) CheckoutCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkoutCalls
}

func (g *SandboxGateway) CreatePixCharge(_ context.Context, in adapter.PixChargeRequest) (*adapter.PixCharge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, domain.ErrGatewayUnavailable
	}
	if id, ok := g.pixByRef[in.Reference]; ok && in.Reference != "" {
		c := *g.pix[id]
		return &c, nil
	}
	id := g.next("pix")
	code := fmt.Sprintf("00020126sandbox%s5204000053039865406%d", id, in.AmountCents)
	c := &adapter.PixCharge{
		ID:            id,
		Status:        adapter.PixChargePending,
		QRCode:        code,
		QRCodeBase64:  base64.StdEncoding.EncodeToString([]byte(code)),
		CopyPasteCode: code,
		ExpiresAt:     in.ExpiresAt,
	}
	g.pix[id] = c
	g.pixByRef[in.Reference] = id
	g.charges[id] = model.GatewayCharge{
		ID:          id,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		Method:      model.PaymentMethodPix,
		Status:      string(adapter.PixChargePending),
		CreatedAt:   g.now(),
	}
	out := *c
	return &out, nil
}

func (g *SandboxGateway) GetPixCharge(_ context.Context, chargeID string) (*adapter.PixCharge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, domain.ErrGatewayUnavailable
	}
	c, ok := g.pix[chargeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

// MarkPixPaid simulates the payer completing a PIX transfer.
func (g *SandboxGateway) MarkPixPaid(chargeID string, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.pix[chargeID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = adapter.PixChargePaid
	c.PaidAt = &at
	ch := g.charges[chargeID]
	ch.Status = "succeeded"
	g.charges[chargeID] = ch
	return nil
}

// ExpirePix simulates the gateway expiring an unpaid charge.
func (g *SandboxGateway) ExpirePix(chargeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.pix[chargeID]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Status == adapter.PixChargePending {
		c.Status = adapter.PixChargeExpired
		delete(g.charges, chargeID)
	}
	return nil
}

// RecordCharge adds a settled card charge to the ledger.
func (g *SandboxGateway) RecordCharge(c model.GatewayCharge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[c.ID] = c
}

func (g *SandboxGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	g.mu.Lock()
	now := g.now()
	g.mu.Unlock()
	return VerifySignature(g.secret, payload, signature, g.tolerance, now)
}

// SignPayload returns the signature header the sandbox would send with payload.
func (g *SandboxGateway) SignPayload(payload []byte) string {
	g.mu.Lock()
	now := g.now()
	g.mu.Unlock()
	return Sign(g.secret, payload, now)
}

// ListCharges returns settled charges only; pending PIX charges are not in the ledger.
func (g *SandboxGateway) ListCharges(_ context.Context, from, to time.Time) ([]model.GatewayCharge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, domain.ErrGatewayUnavailable
	}
	var out []model.GatewayCharge
	for _, c := range g.charges {
		if c.Status != "succeeded" {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (g *SandboxGateway) CancelSubscription(_ context.Context, gatewaySubscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return domain.ErrGatewayUnavailable
	}
	g.cancelled[gatewaySubscriptionID] = true
	return nil
}

// Cancelled reports whether CancelSubscription was called for id.
func (g *SandboxGateway) Cancelled(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled[id]
}
