package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcome labels.
const (
	OutcomeSent      = "sent"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
	OutcomeSkipped   = "skipped"
)

// DispatcherMetrics records the due-scan loop's behavior.
type DispatcherMetrics struct {
	tickDuration prometheus.Histogram
	deliveries   *prometheus.CounterVec
	staleClaims  prometheus.Counter
	dueBacklog   prometheus.Gauge
}

// NewDispatcherMetrics registers dispatcher metrics on the provided registerer.
func NewDispatcherMetrics(reg prometheus.Registerer) *DispatcherMetrics {
	if reg == nil {
		return &DispatcherMetrics{}
	}
	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_tick_duration_seconds",
		Help:    "Duration of dispatcher ticks in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_deliveries_total",
		Help: "Delivery attempts by outcome.",
	}, []string{"outcome", "channel"})
	staleClaims := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_stale_claims_released_total",
		Help: "Claims released back to pending by the stale-claim sweep.",
	})
	dueBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_due_backlog",
		Help: "Due notifications observed at the start of the last tick.",
	})
	reg.MustRegister(tickDuration, deliveries, staleClaims, dueBacklog)
	return &DispatcherMetrics{
		tickDuration: tickDuration,
		deliveries:   deliveries,
		staleClaims:  staleClaims,
		dueBacklog:   dueBacklog,
	}
}

// ObserveTick records the duration of one dispatcher tick.
func (d *DispatcherMetrics) ObserveTick(duration time.Duration) {
	if d == nil || d.tickDuration == nil {
		return
	}
	d.tickDuration.Observe(duration.Seconds())
}

// IncDelivery counts one delivery attempt outcome.
func (d *DispatcherMetrics) IncDelivery(outcome, channel string) {
	if d == nil || d.deliveries == nil {
		return
	}
	d.deliveries.WithLabelValues(outcome, channel).Inc()
}

// AddStaleClaims counts claims released by the stale sweep.
func (d *DispatcherMetrics) AddStaleClaims(n int64) {
	if d == nil || d.staleClaims == nil || n <= 0 {
		return
	}
	d.staleClaims.Add(float64(n))
}

// SetDueBacklog records the due-set size seen by the last tick.
func (d *DispatcherMetrics) SetDueBacklog(n int) {
	if d == nil || d.dueBacklog == nil {
		return
	}
	d.dueBacklog.Set(float64(n))
}
