package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crawl_relay"

// Metrics holds the relay counters. It satisfies relay.Metrics.
type Metrics struct {
	registry    *prometheus.Registry
	inbound     *prometheus.CounterVec
	crawls      *prometheus.CounterVec
	completions *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
}

// NewMetrics registers the relay counters on a fresh registry together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound chat messages by routing kind.",
		}, []string{"kind"}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "Page crawls by outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Completion requests by outcome.",
		}, []string{"outcome"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Failed best-effort side effects by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		m.inbound,
		m.crawls,
		m.completions,
		m.sideEffects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) InboundMessage(kind string)  { m.inbound.WithLabelValues(kind).Inc() }
func (m *Metrics) CrawlResult(outcome string)  { m.crawls.WithLabelValues(outcome).Inc() }
func (m *Metrics) SideEffectFailure(op string) { m.sideEffects.WithLabelValues(op).Inc() }

func (m *Metrics) CompletionResult(outcome string) {
	m.completions.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
