package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics counts fulfillment and reconciliation outcomes. A nil value is a no-op.
type EngineMetrics struct {
	reservations  *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	payments      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewEngineMetrics registers the engine counters on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Inventory reservation attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by target status and outcome.",
	}, []string{"status", "outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_payments_total",
		Help: "Invoice payment postings by outcome.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification events by event type and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(reservations, transitions, payments, notifications)
	return &EngineMetrics{
		reservations:  reservations,
		transitions:   transitions,
		payments:      payments,
		notifications: notifications,
	}
}

// IncReservation records a reserve attempt; outcome is "reserved" or "insufficient".
func (m *EngineMetrics) IncReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncTransition records an order transition attempt.
func (m *EngineMetrics) IncTransition(status, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(outcome)).Inc()
}

// IncPayment records a payment posting; outcome is "recorded", "duplicate" or "rejected".
func (m *EngineMetrics) IncPayment(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncNotification records a dispatcher outcome for an event.
func (m *EngineMetrics) IncNotification(event, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
