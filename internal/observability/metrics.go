package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Exchanges       *prometheus.CounterVec
	ExchangeLatency prometheus.Histogram
	UpstreamRetries prometheus.Counter
	ProviderErrors  *prometheus.CounterVec
	TurnsAppended   prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Exchanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Chat exchanges by outcome.",
		}, []string{"outcome"}),
		ExchangeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_latency_ms",
			Help:      "End-to-end exchange latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
		UpstreamRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Rate-limited upstream calls that were retried.",
		}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider errors by failure kind.",
		}, []string{"kind"}),
		TurnsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_appended_total",
			Help:      "Turns durably appended to transcripts.",
		}),
	}
}

func (m *Metrics) ObserveExchange(outcome string, d time.Duration) {
	m.Exchanges.WithLabelValues(outcome).Inc()
	m.ExchangeLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
