package dojo

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listener kinds used as the "kind" label.
const (
	KindModel  = "model"
	KindEntity = "entity"
)

// Metrics holds the collectors a Client reports to. Each Metrics owns its
// registry so several clients can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	deliveries   *prometheus.CounterVec
	active       *prometheus.GaugeVec
	streamErrors prometheus.Counter
	requests     *prometheus.HistogramVec
}

// NewMetrics creates and registers the client collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dojo",
				Name:      "listener_deliveries_total",
				Help:      "Total number of callbacks invoked by listeners.",
			},
			[]string{"kind"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dojo",
				Name:      "listeners_active",
				Help:      "Current number of running listeners.",
			},
			[]string{"kind"},
		),
		streamErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dojo",
				Name:      "stream_errors_total",
				Help:      "Total number of malformed update stream items skipped.",
			},
		),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dojo",
				Name:      "request_duration_seconds",
				Help:      "Duration of one-shot client requests.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op", "status"},
		),
	}
	m.Registry.MustRegister(m.deliveries, m.active, m.streamErrors, m.requests)
	return m
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(op string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.requests.WithLabelValues(op, status).Observe(seconds)
}
