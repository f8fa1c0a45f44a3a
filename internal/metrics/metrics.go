// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edgar"

// Publish results recorded by ObservePublish.
const (
	PublishOK     = "ok"
	PublishFailed = "failed"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	reg *prometheus.Registry

	upstreamAttempts *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
}

// New registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		upstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "attempts_total",
			Help:      "Outbound upstream attempts by host, method and outcome.",
		}, []string{"host", "method", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of a single upstream attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host", "method"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Served HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "End-to-end HTTP handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Aggregation events handed to publishers, by publisher and result.",
		}, []string{"publisher", "result"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.upstreamAttempts,
		m.upstreamLatency,
		m.httpRequests,
		m.httpLatency,
		m.eventsPublished,
	)
	return m
}

// ObserveAttempt records one upstream attempt. It satisfies httpclient.Observer.
func (m *Metrics) ObserveAttempt(host, method, outcome string, took time.Duration) {
	m.upstreamAttempts.WithLabelValues(host, method, outcome).Inc()
	m.upstreamLatency.WithLabelValues(host, method).Observe(took.Seconds())
}

// ObserveRequest records one served HTTP request. route is the router pattern, not the raw path.
func (m *Metrics) ObserveRequest(route, method string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(took.Seconds())
}

// ObservePublish records the delivery result of one event to one publisher.
func (m *Metrics) ObservePublish(publisher string, err error) {
	result := PublishOK
	if err != nil {
		result = PublishFailed
	}
	m.eventsPublished.WithLabelValues(publisher, result).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
