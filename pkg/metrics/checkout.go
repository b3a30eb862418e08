package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout step outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeDegraded = "degraded"
)

// CheckoutMetrics tracks the order placement pipeline.
type CheckoutMetrics struct {
	steps   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	orders  *prometheus.CounterVec
	unsaved prometheus.Counter
}

// NewCheckoutMetrics registers checkout metrics on reg; a nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "steps_total",
		Help:      "Checkout steps executed, by step and outcome.",
	}, []string{"step", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "step_duration_seconds",
		Help:      "Latency of checkout steps that call external collaborators.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"step"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "orders_total",
		Help:      "Orders recorded, by final status.",
	}, []string{"status"})
	unsaved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "captured_unsaved_total",
		Help:      "Confirmed payments whose order could not be persisted.",
	})
	reg.MustRegister(steps, latency, orders, unsaved)
	return &CheckoutMetrics{steps: steps, latency: latency, orders: orders, unsaved: unsaved}
}

// ObserveStep records one execution of a checkout step.
func (m *CheckoutMetrics) ObserveStep(step, outcome string, duration time.Duration) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.WithLabelValues(normalizeLabel(step), normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(normalizeLabel(step)).Observe(duration.Seconds())
}

// IncOrder counts a persisted order or failed order.
func (m *CheckoutMetrics) IncOrder(status string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncCapturedUnsaved counts payments that succeeded without a saved order.
func (m *CheckoutMetrics) IncCapturedUnsaved() {
	if m == nil || m.unsaved == nil {
		return
	}
	m.unsaved.Inc()
}
