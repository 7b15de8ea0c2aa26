// Package metrics exposes the control plane's own operational counters —
// distinct from the peer Prometheus text this repository scrapes — via
// prometheus/client_golang, following the teacher's singleton-registry
// pattern trimmed to this domain's handful of collectors.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type operationalMetrics struct {
	registry *prometheus.Registry

	broadcastsIssued  *prometheus.CounterVec
	broadcastsFailed  *prometheus.CounterVec
	scrapesSucceeded  prometheus.Counter
	scrapesFailed     prometheus.Counter
	dispatcherAcquire *prometheus.CounterVec
	liveQueriers      prometheus.Gauge
}

var opMetrics atomic.Pointer[operationalMetrics]

// Init builds the operational metrics registry and makes it the process
// singleton. Safe to call once at daemon startup.
func Init(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &operationalMetrics{
		registry: registry,
		broadcastsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_issued_total",
			Help:      "Broadcast operations issued, by operation name.",
		}, []string{"op"}),
		broadcastsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_failed_total",
			Help:      "Broadcast operations that returned a propagated error, by operation name.",
		}, []string{"op"}),
		scrapesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_scrapes_succeeded_total",
			Help:      "Peer /metrics scrapes that returned a parseable sample set.",
		}),
		scrapesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_scrapes_failed_total",
			Help:      "Peer /metrics scrapes that were skipped (dead peer, transport error, or parse failure).",
		}),
		dispatcherAcquire: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_acquire_total",
			Help:      "Querier dispatcher acquisitions, partitioned by selection strategy used.",
		}, []string{"strategy"}),
		liveQueriers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_queriers",
			Help:      "Number of queriers observed live during the most recent selection cycle.",
		}),
	}
	registry.MustRegister(
		m.broadcastsIssued,
		m.broadcastsFailed,
		m.scrapesSucceeded,
		m.scrapesFailed,
		m.dispatcherAcquire,
		m.liveQueriers,
	)
	opMetrics.Store(m)
}

// Handler returns the promhttp handler serving this process's own
// operational /metrics endpoint.
func Handler() http.Handler {
	m := opMetrics.Load()
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func RecordBroadcastIssued(op string) {
	if m := opMetrics.Load(); m != nil {
		m.broadcastsIssued.WithLabelValues(op).Inc()
	}
}

func RecordBroadcastFailed(op string) {
	if m := opMetrics.Load(); m != nil {
		m.broadcastsFailed.WithLabelValues(op).Inc()
	}
}

func RecordScrapeSucceeded() {
	if m := opMetrics.Load(); m != nil {
		m.scrapesSucceeded.Inc()
	}
}

func RecordScrapeFailed() {
	if m := opMetrics.Load(); m != nil {
		m.scrapesFailed.Inc()
	}
}

func RecordDispatcherAcquire(strategy string) {
	if m := opMetrics.Load(); m != nil {
		m.dispatcherAcquire.WithLabelValues(strategy).Inc()
	}
}

func SetLiveQueriers(n int) {
	if m := opMetrics.Load(); m != nil {
		m.liveQueriers.Set(float64(n))
	}
}
