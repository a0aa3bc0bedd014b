package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookEventsTotal,
		WebhookDuration,
		PixStatusChecksTotal,
		PixExpiredTotal,
	)
}

var (
	// Webhook deliveries grouped by event type and outcome.
	// result: applied|duplicate|ignored|rejected|error
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook deliveries by event type and result.",
		},
		[]string{"type", "result"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook processing in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)

	// PIX status reads grouped by the source that answered.
	// source: local|gateway|fallback
	PixStatusChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_status_checks_total",
			Help: "PIX status checks by answering source.",
		},
		[]string{"source"},
	)

	// reason: gateway|overdue|sweep
	PixExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_expired_total",
			Help: "PIX intents moved to expired, by reason.",
		},
		[]string{"reason"},
	)
)

func IncWebhookEvent(eventType, result string) {
	WebhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}

func ObserveWebhook(result string, seconds float64) {
	WebhookDuration.WithLabelValues(norm(result)).Observe(seconds)
}

func IncPixStatusCheck(source string) {
	PixStatusChecksTotal.WithLabelValues(norm(source)).Inc()
}

func AddPixExpired(reason string, n int) {
	if n <= 0 {
		return
	}
	PixExpiredTotal.WithLabelValues(norm(reason)).Add(float64(n))
}
