package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"elearning-billing/internal/config"
	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the processor's REST API. Amounts travel as minor units.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	secret     string
	successURL string
	cancelURL  string
	tolerance  time.Duration
	client     *http.Client
	now        func() time.Time
}

func NewHTTPGateway(cfg config.GatewayConfig) (*HTTPGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway api key empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		secret:     cfg.WebhookSecret,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		tolerance:  cfg.SignatureTolerance,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

func (g *HTTPGateway) Name() string { return "http" }

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends body as JSON and decodes a 2xx response into out. Transport failures
// and 5xx map to ErrGatewayUnavailable, 404 to ErrNotFound.
func (g *HTTPGateway) do(ctx context.Context, method, path, idempotencyKey string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ae)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return domain.ErrNotFound
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: http %d", domain.ErrGatewayUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("gateway %s %s: http %d %s: %s", method, path, resp.StatusCode, ae.Error.Code, ae.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}

type wireCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, in adapter.CheckoutSessionRequest) (*adapter.CheckoutSession, error) {
	successURL, cancelURL := in.SuccessURL, in.CancelURL
	if successURL == "" {
		successURL = g.successURL
	}
	if cancelURL == "" {
		cancelURL = g.cancelURL
	}
	payload := map[string]any{
		"mode":        "subscription",
		"amount":      in.AmountCents,
		"currency":    strings.ToLower(in.Currency),
		"interval":    string(in.Interval),
		"success_url": successURL,
		"cancel_url":  cancelURL,
		"metadata":    in.Metadata,
		"payment_method_options": map[string]any{
			"card": map[string]any{
				"installments":  in.Installments,
				"interest_free": in.InterestFree,
			},
		},
	}
	var out wireCheckoutSession
	if err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", in.Reference, payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.URL == "" {
		return nil, fmt.Errorf("%w: checkout session without id or url", domain.ErrGatewayUnavailable)
	}
	return &adapter.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

type wirePixCharge struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	QRCode        string `json:"qr_code"`
	QRCodeBase64  string `json:"qr_code_base64"`
	CopyPasteCode string `json:"copy_paste"`
	ExpiresAt     int64  `json:"expires_at"`
	PaidAt        int64  `json:"paid_at"`
}

func (w wirePixCharge) toCharge() *adapter.PixCharge {
	c := &adapter.PixCharge{
		ID:            w.ID,
		Status:        adapter.PixChargeStatus(w.Status),
		QRCode:        w.QRCode,
		QRCodeBase64:  w.QRCodeBase64,
		CopyPasteCode: w.CopyPasteCode,
	}
	if w.ExpiresAt > 0 {
		c.ExpiresAt = time.Unix(w.ExpiresAt, 0).UTC()
	}
	if w.PaidAt > 0 {
		t := time.Unix(w.PaidAt, 0).UTC()
		c.PaidAt = &t
	}
	switch c.Status {
	case adapter.PixChargePending, adapter.PixChargePaid, adapter.PixChargeExpired:
	default:
		c.Status = adapter.PixChargePending
	}
	return c
}

func (g *HTTPGateway) CreatePixCharge(ctx context.Context, in adapter.PixChargeRequest) (*adapter.PixCharge, error) {
	payload := map[string]any{
		"amount":      in.AmountCents,
		"currency":    strings.ToLower(in.Currency),
		"expires_at":  in.ExpiresAt.Unix(),
		"description": in.Description,
		"metadata":    in.Metadata,
	}
	var out wirePixCharge
	if err := g.do(ctx, http.MethodPost, "/v1/pix/charges", in.Reference, payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.CopyPasteCode == "" {
		return nil, fmt.Errorf("%w: pix charge without id or code", domain.ErrGatewayUnavailable)
	}
	return out.toCharge(), nil
}

func (g *HTTPGateway) GetPixCharge(ctx context.Context, chargeID string) (*adapter.PixCharge, error) {
	var out wirePixCharge
	if err := g.do(ctx, http.MethodGet, "/v1/pix/charges/"+url.PathEscape(chargeID), "", nil, &out); err != nil {
		return nil, err
	}
	return out.toCharge(), nil
}

func (g *HTTPGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	return VerifySignature(g.secret, payload, signature, g.tolerance, g.now())
}

type wireCharge struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
}

type wireChargeList struct {
	Data    []wireCharge `json:"data"`
	HasMore bool         `json:"has_more"`
}

// ListCharges walks the cursor-paginated ledger.
func (g *HTTPGateway) ListCharges(ctx context.Context, from, to time.Time) ([]model.GatewayCharge, error) {
	var (
		out    []model.GatewayCharge
		cursor string
	)
	for {
		q := url.Values{}
		q.Set("created_gte", strconv.FormatInt(from.Unix(), 10))
		q.Set("created_lt", strconv.FormatInt(to.Unix(), 10))
		q.Set("limit", "100")
		if cursor != "" {
			q.Set("starting_after", cursor)
		}
		var page wireChargeList
		if err := g.do(ctx, http.MethodGet, "/v1/charges?"+q.Encode(), "", nil, &page); err != nil {
			return nil, err
		}
		for _, c := range page.Data {
			out = append(out, model.GatewayCharge{
				ID:          c.ID,
				AmountCents: c.Amount,
				Currency:    strings.ToUpper(c.Currency),
				Method:      model.PaymentMethod(c.PaymentMethod),
				Status:      c.Status,
				CreatedAt:   time.Unix(c.Created, 0).UTC(),
			})
		}
		if !page.HasMore || len(page.Data) == 0 {
			return out, nil
		}
		cursor = page.Data[len(page.Data)-1].ID
	}
}

func (g *HTTPGateway) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	err := g.do(ctx, http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(gatewaySubscriptionID), "", nil, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
