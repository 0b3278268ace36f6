package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

const namespace = "dspgend"

// Metrics holds the Prometheus collectors of the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// requests counts dispatched requests.
	// Labels: route (flag key or "none"), outcome (ok, unmatched, invalid, busy, failed, exit, timeout, limited)
	requests *prometheus.CounterVec

	// execDuration measures how long each program run took.
	// Labels: route
	execDuration *prometheus.HistogramVec

	// slotQueued and slotProcessing mirror the concurrency manager counters.
	// Labels: device
	slotQueued     *prometheus.GaugeVec
	slotProcessing *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry, together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total dispatched requests by route and outcome",
		}, []string{"route", "outcome"}),
		execDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "duration_seconds",
			Help:      "dspgen run duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		slotQueued: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "queued",
			Help:      "Requests waiting for an execution slot",
		}, []string{"device"}),
		slotProcessing: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "processing",
			Help:      "Requests holding an execution slot",
		}, []string{"device"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveRequest(route, outcome string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "none"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) ObserveExec(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.execDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) SetSlot(device string, queued, processing int) {
	if m == nil {
		return
	}
	m.slotQueued.WithLabelValues(device).Set(float64(queued))
	m.slotProcessing.WithLabelValues(device).Set(float64(processing))
}

// RequestCount returns the current value of the request counter, for tests and diagnostics.
func (m *Metrics) RequestCount(route, outcome string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.requests.WithLabelValues(route, outcome))
}

// Slot returns the queued and processing gauges of a device.
func (m *Metrics) Slot(device string) (queued, processing prometheus.Gauge) {
	return m.slotQueued.WithLabelValues(device), m.slotProcessing.WithLabelValues(device)
}
