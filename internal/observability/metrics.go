package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aegis"

// Metrics holds the Prometheus counters, histograms, and gauges for the tick
// loop, forecast engine, broadcast hub and audit sinks.
type Metrics struct {
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	TickPanics   prometheus.Counter
	LoopRunning  prometheus.Gauge

	// Broadcast metrics.
	Subscribers        prometheus.Gauge
	Broadcasts         *prometheus.CounterVec // labels: type={telemetry,alert}
	DroppedSubscribers prometheus.Counter

	// Forecast metrics.
	Predictions        *prometheus.CounterVec // labels: source, reason
	ForecastConfidence prometheus.Gauge
	CurrentRunup       prometheus.Gauge

	Alerts *prometheus.CounterVec // labels: kind, severity

	// Audit metrics.
	AuditRecords *prometheus.CounterVec // labels: sink, outcome={success,error,skipped}
	AuditDropped prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total simulation ticks completed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one tick from ocean step to broadcast.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5},
		}),
		TickPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_panics_total",
			Help:      "Ticks aborted by a recovered panic.",
		}),
		LoopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_running",
			Help:      "1 when the tick loop is active, 0 when shut down.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Currently connected subscribers.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages fanned out by type.",
		}, []string{"type"}),
		DroppedSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers removed after a failed send.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Forecasts by source and fallback reason.",
		}, []string{"source", "reason"}),
		ForecastConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_confidence",
			Help:      "Confidence of the latest forecast.",
		}),
		CurrentRunup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runup_meters",
			Help:      "Current Stockdon run-up in metres.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts appended by kind and severity.",
		}, []string{"kind", "severity"}),
		AuditRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Audit writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit records dropped because the queue was full.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Ticks,
		m.TickDuration,
		m.TickPanics,
		m.LoopRunning,
		m.Subscribers,
		m.Broadcasts,
		m.DroppedSubscribers,
		m.Predictions,
		m.ForecastConfidence,
		m.CurrentRunup,
		m.Alerts,
		m.AuditRecords,
		m.AuditDropped,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
