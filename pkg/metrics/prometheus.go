package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals      *prometheus.CounterVec
	scores       prometheus.Histogram
	sizing       *prometheus.CounterVec
	orders       *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
	queueDepth   prometheus.Gauge
	inFlight     prometheus.Gauge
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpilot_signals_total",
				Help: "Signals processed by filter status",
			},
			[]string{"status"},
		),
		scores: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chainpilot_signal_score",
				Help:    "Final score distribution of scored signals",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		sizing: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpilot_sizing_decisions_total",
				Help: "Sizing decisions by outcome",
			},
			[]string{"outcome"},
		),
		orders: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpilot_orders_total",
				Help: "Order terminal transitions by status",
			},
			[]string{"status"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainpilot_breaker_state",
				Help: "Breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"kind"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chainpilot_order_queue_depth",
				Help: "Pending orders in the priority queue",
			},
		),
		inFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chainpilot_orders_in_flight",
				Help: "Orders currently being executed",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainpilot_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainpilot_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal records a processed signal by filter status.
func (r *Recorder) RecordSignal(status string) {
	r.signals.WithLabelValues(status).Inc()
}

// RecordScore records the final score of a scored signal.
func (r *Recorder) RecordScore(score float64) {
	r.scores.Observe(score)
}

// RecordSizing records a sizing decision outcome.
func (r *Recorder) RecordSizing(outcome string) {
	r.sizing.WithLabelValues(outcome).Inc()
}

// RecordOrder records an order terminal status.
func (r *Recorder) RecordOrder(status string) {
	r.orders.WithLabelValues(status).Inc()
}

// RecordBreakerState records a breaker state transition.
func (r *Recorder) RecordBreakerState(kind, state string) {
	var v float64
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	r.breakerState.WithLabelValues(kind).Set(v)
}

// RecordQueueDepth records the order queue depth.
func (r *Recorder) RecordQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// RecordInFlight records orders currently executing.
func (r *Recorder) RecordInFlight(n int) {
	r.inFlight.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
