//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"elearning-billing/internal/domain/model"
)

func TestCountersNormalizeLabels(t *testing.T) {
	before := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("invoice.payment_failed", "applied"))
	IncWebhookEvent(" Invoice.Payment_Failed ", "APPLIED")
	after := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("invoice.payment_failed", "applied"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, grew by %v", after-before)
	}
}

func TestSetSubscriptionsTotal(t *testing.T) {
	SetSubscriptionsTotal(map[model.SubscriptionStatus]int{model.SubscriptionStatusActive: 7})
	if got := testutil.ToFloat64(subscriptionsTotal.WithLabelValues("active")); got != 7 {
		t.Errorf("expected 7 active, got %v", got)
	}
	if got := testutil.ToFloat64(subscriptionsTotal.WithLabelValues("suspended")); got != 0 {
		t.Errorf("expected missing statuses to be zeroed, got %v", got)
	}
}

func TestCollectorsRegisterOnce(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			t.Fatalf("collector failed to register: %v", err)
		}
	}
	AddPixExpired("sweep", 0)
	MustRegister()
	MustRegister()
}
