package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the webhook intake and the ledger.
var (
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svntex_webhook_deliveries_total",
			Help: "Webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "svntex_webhook_processing_duration_seconds",
			Help:    "Time from receiving a webhook to writing the response",
			Buckets: prometheus.DefBuckets,
		},
	)

	LedgerPVAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "svntex_ledger_pv_applied_total",
			Help: "Sum of order totals added to the company PV counter",
		},
	)

	AffiliateActivationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "svntex_affiliate_activations_total",
			Help: "Affiliates that crossed the activation threshold",
		},
	)

	OutboxMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svntex_outbox_messages_total",
			Help: "Outbox publish attempts by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svntex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svntex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Register registers all metrics with the default registry. Call once from main.
func Register() {
	prometheus.MustRegister(
		WebhookDeliveriesTotal,
		WebhookProcessingDuration,
		LedgerPVAppliedTotal,
		AffiliateActivationsTotal,
		OutboxMessagesTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
