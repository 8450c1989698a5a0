package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightdelivered/ideabank/internal/parser"
)

// Metrics holds the server's prometheus collectors. Each server gets its own
// registry so several can live in one process.
type Metrics struct {
	registry       *prometheus.Registry
	rowsAccepted   prometheus.Counter
	rowsRejected   *prometheus.CounterVec
	datasetsLoaded prometheus.Counter
	datasetsActive prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rowsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ideabank",
			Name:      "rows_accepted_total",
			Help:      "Data rows that produced an idea.",
		}),
		rowsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ideabank",
			Name:      "rows_rejected_total",
			Help:      "Data rows dropped during parsing, by reason.",
		}, []string{"reason"}),
		datasetsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ideabank",
			Name:      "datasets_loaded_total",
			Help:      "Datasets stored for follow-up queries.",
		}),
		datasetsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ideabank",
			Name:      "datasets_active",
			Help:      "Datasets currently held in memory.",
		}),
	}
}

// ObserveReport records the row outcome of one parse.
func (m *Metrics) ObserveReport(r parser.Report) {
	m.rowsAccepted.Add(float64(r.Accepted))
	for reason, n := range r.Rejected {
		m.rowsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// DatasetLoaded counts a stored dataset.
func (m *Metrics) DatasetLoaded() {
	m.datasetsLoaded.Inc()
	m.datasetsActive.Inc()
}

// DatasetDropped counts a deleted dataset.
func (m *Metrics) DatasetDropped() {
	m.datasetsActive.Dec()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
