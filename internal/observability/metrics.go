package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments the relay exposes.
type Metrics struct {
	ActiveListeners   prometheus.Gauge
	FragmentsRelayed  *prometheus.CounterVec
	SynthesisRequests *prometheus.CounterVec
	SynthesisLatency  prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the instruments against a caller-owned
// registerer.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveListeners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_listeners",
			Help:      "Listeners currently attached to a translation stream.",
		}),
		FragmentsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_relayed_total",
			Help:      "Translated fragments fanned out, by language.",
		}, []string{"language"}),
		SynthesisRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_requests_total",
			Help:      "Speech synthesis calls by outcome.",
		}, []string{"status"}),
		SynthesisLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Upstream speech synthesis latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000},
		}),
	}
}

func (m *Metrics) ObserveSynthesisLatency(d time.Duration) {
	m.SynthesisLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
