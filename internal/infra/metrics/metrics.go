package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters exported on /metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	rows       *prometheus.CounterVec
	batches    *prometheus.CounterVec
	renders    *prometheus.HistogramVec
	dispatches *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certdispatch_batch_rows_total",
			Help: "Rows processed by batch runs, by document kind and outcome.",
		}, []string{"kind", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certdispatch_batches_total",
			Help: "Batch runs, by document kind and result.",
		}, []string{"kind", "result"}),
		renders: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certdispatch_render_duration_seconds",
			Help:    "Duration of document renders including conversion.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind", "outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certdispatch_emails_total",
			Help: "E-mails handed to the mail transport, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.rows, m.batches, m.renders, m.dispatches)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

// ObserveRow counts one processed batch row.
func (m *Metrics) ObserveRow(kind string, failed bool) {
	if m == nil {
		return
	}
	o := "success"
	if failed {
		o = "failed"
	}
	m.rows.WithLabelValues(kind, o).Inc()
}

// ObserveBatch counts one batch run. result is "completed" when every row
// succeeded, "partial" when some rows failed, or "rejected" when the input was
// refused before any row ran.
func (m *Metrics) ObserveBatch(kind, result string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(kind, result).Inc()
}

// ObserveRender records how long one render took.
func (m *Metrics) ObserveRender(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(kind, outcome(err)).Observe(d.Seconds())
}

// ObserveDispatch counts one e-mail attempt.
func (m *Metrics) ObserveDispatch(err error) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome(err)).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
