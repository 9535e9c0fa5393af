package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fxhedge"

// Metrics exposes Prometheus metrics for the position monitor.
type Metrics struct {
	// Polling
	PollsTotal     *prometheus.CounterVec
	PollsSkipped   *prometheus.CounterVec
	PollsDiscarded *prometheus.CounterVec

	// Position
	HealthFactor *prometheus.GaugeVec
	SafetyBuffer *prometheus.GaugeVec
	RiskSeverity *prometheus.GaugeVec
	ExchangeRate *prometheus.GaugeVec

	// Writes
	WritesTotal  *prometheus.CounterVec
	WriteLatency *prometheus.HistogramVec

	OracleUpdates *prometheus.CounterVec
	WSClients     prometheus.Gauge

	gatherer prometheus.Gatherer
}

func build(prefix string) *Metrics {
	ns := namespace
	if prefix != "" {
		ns = prefix
	}
	return &Metrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "polls_total",
			Help:      "Poll task runs by task and result",
		}, []string{"task", "result"}),

		PollsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "polls_skipped_total",
			Help:      "Ticks skipped because the previous run of the task was still in flight",
		}, []string{"task"}),

		PollsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "polls_discarded_total",
			Help:      "Poll results discarded because the session generation changed",
		}, []string{"task"}),

		HealthFactor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "health_factor",
			Help:      "Last valid health factor per owner",
		}, []string{"owner"}),

		SafetyBuffer: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "safety_buffer_percent",
			Help:      "Safety buffer percentage per owner",
		}, []string{"owner"}),

		RiskSeverity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "risk_severity",
			Help:      "Risk tier severity (0=safe, 3=liquidation)",
		}, []string{"owner"}),

		ExchangeRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "exchange_rate_usd",
			Help:      "Resolved USD per unit by currency and source",
		}, []string{"currency", "source"}),

		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "writes_total",
			Help:      "Write attempts by action and final status",
		}, []string{"action", "status"}),

		WriteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "write_latency_seconds",
			Help:      "Submit-to-receipt latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"action"}),

		OracleUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "oracle_updates_total",
			Help:      "Oracle price pushes by result",
		}, []string{"result"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "ws_clients",
			Help:      "Connected websocket view subscribers",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PollsTotal,
		m.PollsSkipped,
		m.PollsDiscarded,
		m.HealthFactor,
		m.SafetyBuffer,
		m.RiskSeverity,
		m.ExchangeRate,
		m.WritesTotal,
		m.WriteLatency,
		m.OracleUpdates,
		m.WSClients,
	}
}

// New creates the metrics and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := build("")
	reg.MustRegister(m.collectors()...)
	m.gatherer = reg
	return m
}

// NewNoop creates unregistered metrics suitable for testing.
func NewNoop() *Metrics {
	return build("test")
}

// Handler serves the registry New was given, or the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePoll(task string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PollsTotal.WithLabelValues(task, result).Inc()
}

func (m *Metrics) ObserveSkip(task string) {
	if m == nil {
		return
	}
	m.PollsSkipped.WithLabelValues(task).Inc()
}

func (m *Metrics) ObserveDiscard(task string) {
	if m == nil {
		return
	}
	m.PollsDiscarded.WithLabelValues(task).Inc()
}

// ObservePosition records the evaluated figures for owner. hf is nil when the
// health factor is not a valid number; in that case the gauge is removed.
func (m *Metrics) ObservePosition(owner string, hf *float64, bufferPercent float64, severity int) {
	if m == nil {
		return
	}
	if hf != nil {
		m.HealthFactor.WithLabelValues(owner).Set(*hf)
	} else {
		m.HealthFactor.DeleteLabelValues(owner)
	}
	m.SafetyBuffer.WithLabelValues(owner).Set(bufferPercent)
	m.RiskSeverity.WithLabelValues(owner).Set(float64(severity))
}

func (m *Metrics) ObserveRate(currency, source string, rate float64) {
	if m == nil {
		return
	}
	m.ExchangeRate.WithLabelValues(currency, source).Set(rate)
}

func (m *Metrics) ObserveWrite(action, status string, seconds float64) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(action, status).Inc()
	if seconds > 0 {
		m.WriteLatency.WithLabelValues(action).Observe(seconds)
	}
}

func (m *Metrics) ObserveOracleUpdate(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OracleUpdates.WithLabelValues(result).Inc()
}
