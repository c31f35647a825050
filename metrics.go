package devreload

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the supervisor's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	childStarts  prometheus.Counter
	reloads      *prometheus.CounterVec
	watchedFiles prometheus.Gauge
	state        prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		childStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devreload_child_starts_total",
			Help: "Number of serve processes started",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devreload_reloads_total",
			Help: "Number of reloads by triggering change",
		}, []string{"reason"}),
		watchedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devreload_watched_files",
			Help: "Number of files in the current watch set",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devreload_supervisor_state",
			Help: "Supervisor state (0 starting, 1 running, 2 reloading, 3 stopped)",
		}),
	}

	m.registry.MustRegister(m.childStarts, m.reloads, m.watchedFiles, m.state)
	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics at /metrics
func (m *Metrics) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (m *Metrics) childStarted() {
	if m == nil {
		return
	}
	m.childStarts.Inc()
}

func (m *Metrics) reloaded(kind ChangeKind) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) watching(n int) {
	if m == nil {
		return
	}
	m.watchedFiles.Set(float64(n))
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
