package cli

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/refgraph/pkg/observability"
)

const metricsNamespace = "refgraph"

// =============================================================================
// Prometheus Hooks
// =============================================================================

// metrics implements the observability hooks on a private Prometheus registry
// so tests and multiple servers never collide on the global one.
type metrics struct {
	reg *prometheus.Registry

	updates          *prometheus.CounterVec
	updateDuration   *prometheus.HistogramVec
	resources        *prometheus.CounterVec
	discoveredEdges  *prometheus.CounterVec
	cacheLoadBytes   *prometheus.GaugeVec
	cacheCorrupt     *prometheus.CounterVec
	cacheSaveBytes   *prometheus.GaugeVec
	builds           *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	graphNodes       prometheus.Gauge
	graphEdges       prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "update",
			Name:      "total",
			Help:      "Cache updates by outcome",
		}, []string{"cache", "status"}),
		updateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "update",
			Name:      "duration_seconds",
			Help:      "Cache update duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10),
		}, []string{"cache"}),
		resources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "update",
			Name:      "resources_total",
			Help:      "Resources handled by cache updates, by outcome",
		}, []string{"cache", "outcome"}),
		discoveredEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "update",
			Name:      "discovered_edges_total",
			Help:      "Edges returned by resolvers",
		}, []string{"cache", "resolver"}),
		cacheLoadBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "loaded_bytes",
			Help:      "Size of the last cache file loaded",
		}, []string{"cache"}),
		cacheCorrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "corrupt_total",
			Help:      "Cache files discarded after failing structural checks",
		}, []string{"cache"}),
		cacheSaveBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "saved_bytes",
			Help:      "Size of the last cache file written",
		}, []string{"cache"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "build",
			Name:      "total",
			Help:      "Graph builds by mode",
		}, []string{"mode"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Graph build duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 3, 10),
		}, []string{"mode"}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Nodes in the current graph",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Dependency edges in the current graph",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "code"}),
		httpRequestTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.updateDuration, m.resources, m.discoveredEdges,
		m.cacheLoadBytes, m.cacheCorrupt, m.cacheSaveBytes,
		m.builds, m.buildDuration, m.graphNodes, m.graphEdges,
		m.httpRequests, m.httpRequestTimes,
	)
	return m
}

// install registers m as the process-wide observability hooks.
func (m *metrics) install() {
	observability.SetUpdateHooks(m)
	observability.SetCacheHooks(m)
	observability.SetBuildHooks(m)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *metrics) OnUpdateStart(context.Context, string) {}

func (m *metrics) OnResourceDiscovered(_ context.Context, cacheID, resolverID string, edges int) {
	m.discoveredEdges.WithLabelValues(cacheID, resolverID).Add(float64(edges))
}

func (m *metrics) OnUpdateComplete(_ context.Context, cacheID string, stats observability.UpdateStats, d time.Duration, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case stats.Skipped:
		status = "skipped"
	}
	m.updates.WithLabelValues(cacheID, status).Inc()
	m.updateDuration.WithLabelValues(cacheID).Observe(d.Seconds())
	m.resources.WithLabelValues(cacheID, "discovered").Add(float64(stats.Discovered))
	m.resources.WithLabelValues(cacheID, "pruned").Add(float64(stats.Pruned))
	m.resources.WithLabelValues(cacheID, "failed").Add(float64(stats.Failed))
}

func (m *metrics) OnCacheLoad(_ context.Context, cacheID string, size int, corrupt bool) {
	if corrupt {
		m.cacheCorrupt.WithLabelValues(cacheID).Inc()
		return
	}
	m.cacheLoadBytes.WithLabelValues(cacheID).Set(float64(size))
}

func (m *metrics) OnCacheSave(_ context.Context, cacheID string, size int) {
	m.cacheSaveBytes.WithLabelValues(cacheID).Set(float64(size))
}

func (m *metrics) OnBuildStart(context.Context, bool) {}

func (m *metrics) OnBuildComplete(_ context.Context, fast bool, nodes, edges int, d time.Duration) {
	mode := buildMode(fast)
	m.builds.WithLabelValues(mode).Inc()
	m.buildDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

// observeRequest records one served HTTP request.
func (m *metrics) observeRequest(route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpRequestTimes.WithLabelValues(route).Observe(d.Seconds())
}

func buildMode(fast bool) string {
	if fast {
		return "fast"
	}
	return "full"
}
