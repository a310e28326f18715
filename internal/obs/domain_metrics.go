package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout outcomes.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutAmount records order totals in dollars.
	CheckoutAmount prometheus.Histogram
	// DiscountCodeAttempts counts code applications by outcome.
	DiscountCodeAttempts *prometheus.CounterVec
	// InsightsRequests counts generative text calls by kind and outcome.
	InsightsRequests *prometheus.CounterVec
	// ReceiptTasksTotal counts receipt email tasks by stage and outcome.
	ReceiptTasksTotal *prometheus.CounterVec
	// EventPublishTotal counts event fan-out results per notifier.
	EventPublishTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"})
		CheckoutAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_order_total_dollars",
			Help:      "Final order totals of successful checkouts.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		DiscountCodeAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_code_attempts_total",
			Help:      "Count of discount code applications by outcome.",
		}, []string{"result"})
		InsightsRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_requests_total",
			Help:      "Count of generative text requests by kind and outcome.",
		}, []string{"kind", "result"})
		ReceiptTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_tasks_total",
			Help:      "Count of receipt email tasks by stage and outcome.",
		}, []string{"stage", "result"})
		EventPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Count of domain event deliveries by topic and outcome.",
		}, []string{"topic", "result"})

		CheckoutTotal = register(reg, CheckoutTotal)
		CheckoutAmount = register(reg, CheckoutAmount)
		DiscountCodeAttempts = register(reg, DiscountCodeAttempts)
		InsightsRequests = register(reg, InsightsRequests)
		ReceiptTasksTotal = register(reg, ReceiptTasksTotal)
		EventPublishTotal = register(reg, EventPublishTotal)
	})
}

// ObserveCheckout records a checkout outcome. Safe before registration.
func ObserveCheckout(result string, total float64) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
	if result == "ok" && CheckoutAmount != nil {
		CheckoutAmount.Observe(total)
	}
}

// ObserveDiscountCode records a discount code application outcome.
func ObserveDiscountCode(result string) {
	if DiscountCodeAttempts != nil {
		DiscountCodeAttempts.WithLabelValues(result).Inc()
	}
}

// ObserveInsights records a generative text call.
func ObserveInsights(kind, result string) {
	if InsightsRequests != nil {
		InsightsRequests.WithLabelValues(kind, result).Inc()
	}
}

// ObserveReceiptTask records a receipt task stage ("enqueue" or "send").
func ObserveReceiptTask(stage, result string) {
	if ReceiptTasksTotal != nil {
		ReceiptTasksTotal.WithLabelValues(stage, result).Inc()
	}
}

// ObserveEventPublish records a notifier delivery.
func ObserveEventPublish(topic, result string) {
	if EventPublishTotal != nil {
		EventPublishTotal.WithLabelValues(topic, result).Inc()
	}
}
