// Package metrics exposes prometheus collectors for live bindings and
// content writes.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	bindingsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "showcase",
			Subsystem: "binding",
			Name:      "active",
			Help:      "Live bindings currently subscribed.",
		},
		[]string{"kind"},
	)
	bindingEmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "binding",
			Name:      "emissions_total",
			Help:      "Values delivered to live bindings.",
		},
		[]string{"kind"},
	)
	subscriptionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "binding",
			Name:      "subscription_failures_total",
			Help:      "Subscription failures reported to live bindings.",
		},
		[]string{"kind"},
	)
	resubscribes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "binding",
			Name:      "resubscribes_total",
			Help:      "Re-subscription attempts after a failure.",
		},
		[]string{"kind"},
	)
	writes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "content",
			Name:      "writes_total",
			Help:      "Content writes by operation and outcome.",
		},
		[]string{"op", "success"},
	)
	partialReorders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "content",
			Name:      "partial_reorders_total",
			Help:      "Reorders that left a collection partially updated.",
		},
		[]string{"collection"},
	)
)

// Binding kinds.
const (
	KindDocument   = "document"
	KindCollection = "collection"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(bindingsActive, bindingEmissions, subscriptionFailures,
			resubscribes, writes, partialReorders)
	})
}

func BindingOpened(kind string) {
	RegisterMetrics()
	bindingsActive.WithLabelValues(kind).Inc()
}

func BindingClosed(kind string) {
	RegisterMetrics()
	bindingsActive.WithLabelValues(kind).Dec()
}

func RecordEmission(kind string) {
	RegisterMetrics()
	bindingEmissions.WithLabelValues(kind).Inc()
}

func RecordSubscriptionFailure(kind string) {
	RegisterMetrics()
	subscriptionFailures.WithLabelValues(kind).Inc()
}

func RecordResubscribe(kind string) {
	RegisterMetrics()
	resubscribes.WithLabelValues(kind).Inc()
}

// RecordWrite counts one write operation; err is the outcome.
func RecordWrite(op string, err error) {
	RegisterMetrics()
	success := "true"
	if err != nil {
		success = "false"
	}
	writes.WithLabelValues(op, success).Inc()
}

func RecordPartialReorder(collection string) {
	RegisterMetrics()
	partialReorders.WithLabelValues(collection).Inc()
}
