package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerOpenedTotal *prometheus.CounterVec
	// OutboundRequests counts outbound attempts by target and outcome.
	OutboundRequests *prometheus.CounterVec
)

// MustRegisterMetrics creates and registers the breaker and outbound collectors.
// Collectors stay nil, and recording is skipped, until this runs.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"})
		BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"})
		OutboundRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_requests_total",
			Help:      "Outbound HTTP attempts by target and outcome",
		}, []string{"target", "outcome"})
		reg.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, OutboundRequests)
	})
}

func observeOutbound(target, outcome string) {
	if OutboundRequests != nil {
		OutboundRequests.WithLabelValues(target, outcome).Inc()
	}
}

func setStateGauge(target string, s State) {
	if BreakerState == nil {
		return
	}
	v := -1.0
	switch s {
	case Closed:
		v = 0
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	BreakerState.WithLabelValues(target).Set(v)
}

func observeTransition(target string, from, to State) {
	setStateGauge(target, to)
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
}
