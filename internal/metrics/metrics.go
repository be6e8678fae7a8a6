// Package metrics exposes sync outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "habitflow"

// Collector implements gateway.Reporter and store.Metrics.
type Collector struct {
	remoteCalls      *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	bulkLoadLatency  prometheus.Histogram
	bulkLoadFailures prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote document store calls by collection, operation and result.",
		}, []string{"collection", "op", "result"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Dispatched actions by type, path and result.",
		}, []string{"action", "path", "result"}),
		bulkLoadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_load_duration_seconds",
			Help:      "Time to load every collection after an identity change.",
			Buckets:   prometheus.DefBuckets,
		}),
		bulkLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_load_failed_kinds_total",
			Help:      "Collections that failed to load and were replaced with empty defaults.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
	}

	reg.MustRegister(
		c.remoteCalls,
		c.dispatches,
		c.bulkLoadLatency,
		c.bulkLoadFailures,
		c.httpRequests,
	)
	return c
}

func result(failed bool) string {
	if failed {
		return "degraded"
	}
	return "ok"
}

// ObserveCall records one remote call made by the gateway.
func (c *Collector) ObserveCall(collection, op string, err error) {
	c.remoteCalls.WithLabelValues(collection, op, result(err != nil)).Inc()
}

// ObserveDispatch records one applied action.
func (c *Collector) ObserveDispatch(actionType string, remote, degraded bool) {
	path := "local"
	if remote {
		path = "remote"
	}
	c.dispatches.WithLabelValues(actionType, path, result(degraded)).Inc()
}

func (c *Collector) ObserveBulkLoad(d time.Duration, failed int) {
	c.bulkLoadLatency.Observe(d.Seconds())
	c.bulkLoadFailures.Add(float64(failed))
}

func (c *Collector) RecordHTTPRequest(method, route string, status int) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the metrics gathered by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
