package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics records billing activity for Prometheus scraping.
type BillingMetrics interface {
	IncChargeCreated(method, plan string)
	IncReconciliation(purpose, outcome string)
	IncLifecycleAction(action, result string)
	ObserveGatewayRequest(operation, status string, duration time.Duration)
}

type billingMetrics struct {
	chargesCreated   *prometheus.CounterVec
	reconciliations  *prometheus.CounterVec
	lifecycleActions *prometheus.CounterVec
	gatewayRequests  *prometheus.HistogramVec
}

// NewBillingMetrics registers the billing metric set on the given registry.
func NewBillingMetrics(registry *prometheus.Registry) BillingMetrics {
	return &billingMetrics{
		chargesCreated: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_charges_created_total",
				Help: "The total number of charges and agreements created",
			},
			[]string{"method", "plan"},
		),
		reconciliations: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reconciliations_total",
				Help: "Reconciliation decisions by purpose and outcome",
			},
			[]string{"purpose", "outcome"},
		),
		lifecycleActions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_lifecycle_actions_total",
				Help: "Subscription lifecycle actions by result",
			},
			[]string{"action", "result"},
		),
		gatewayRequests: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_gateway_request_duration_seconds",
				Help:    "Latency of payment gateway requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}
}

func (m *billingMetrics) IncChargeCreated(method, plan string) {
	m.chargesCreated.WithLabelValues(method, plan).Inc()
}

func (m *billingMetrics) IncReconciliation(purpose, outcome string) {
	m.reconciliations.WithLabelValues(purpose, outcome).Inc()
}

func (m *billingMetrics) IncLifecycleAction(action, result string) {
	m.lifecycleActions.WithLabelValues(action, result).Inc()
}

func (m *billingMetrics) ObserveGatewayRequest(operation, status string, duration time.Duration) {
	m.gatewayRequests.WithLabelValues(operation, status).Observe(duration.Seconds())
}
