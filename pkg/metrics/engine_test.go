package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.IncReservation("insufficient")
	m.IncReservation("insufficient")
	m.IncTransition("confirmed", "ok")
	m.IncPayment("duplicate")
	m.IncNotification("order.status_changed", "dropped")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "inventory_reservations_total", "outcome", "insufficient"); err != nil || got != 2 {
		t.Fatalf("expected 2 insufficient reservations, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "order_transitions_total", "status", "confirmed"); err != nil || got != 1 {
		t.Fatalf("expected 1 confirmed transition, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "invoice_payments_total", "outcome", "duplicate"); err != nil || got != 1 {
		t.Fatalf("expected 1 duplicate payment, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "notifications_total", "outcome", "dropped"); err != nil || got != 1 {
		t.Fatalf("expected 1 dropped notification, got %f (%v)", got, err)
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.IncReservation("reserved")
	m.IncTransition("", "")
	m.IncPayment("recorded")
	m.IncNotification("x", "queued")

	NewEngineMetrics(nil).IncPayment("recorded")
}
