package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDispatcherMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatcherMetrics(reg)

	m.IncDelivery(OutcomeSent, "in_app")
	m.IncDelivery(OutcomeSent, "in_app")
	m.IncDelivery(OutcomeRetried, "telegram")
	m.AddStaleClaims(3)
	m.SetDueBacklog(7)
	m.ObserveTick(120 * time.Millisecond)

	sent := testutil.ToFloat64(m.deliveries.WithLabelValues(OutcomeSent, "in_app"))
	if sent != 2 {
		t.Fatalf("expected 2 sent, got %v", sent)
	}
	if got := testutil.ToFloat64(m.staleClaims); got != 3 {
		t.Fatalf("expected 3 stale claims, got %v", got)
	}
	if got := testutil.ToFloat64(m.dueBacklog); got != 7 {
		t.Fatalf("expected backlog 7, got %v", got)
	}
}

func TestNilReceiversAreNoOps(t *testing.T) {
	var m *DispatcherMetrics
	m.IncDelivery(OutcomeFailed, "in_app")
	m.ObserveTick(time.Second)
	m.AddStaleClaims(1)
	m.SetDueBacklog(1)

	empty := NewDispatcherMetrics(nil)
	empty.IncDelivery(OutcomeSent, "in_app")
}
