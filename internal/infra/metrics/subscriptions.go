package metrics

import (
	"elearning-billing/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionTransitionsTotal,
		subscriptionsTotal,
	)
}

var (
	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Applied subscription status transitions by target status and origin.",
		},
		[]string{"to", "origin"}, // origin: webhook|student|pix
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"}, // 'pending', 'active', 'suspended', 'cancelled'
	)
)

func IncSubscriptionTransition(to model.SubscriptionStatus, origin string) {
	subscriptionTransitionsTotal.WithLabelValues(string(to), norm(origin)).Inc()
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusPending,
		model.SubscriptionStatusActive,
		model.SubscriptionStatusSuspended,
		model.SubscriptionStatusCancelled,
	}
	for _, s := range statuses {
		subscriptionsTotal.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
