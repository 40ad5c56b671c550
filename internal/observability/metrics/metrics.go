// Package metrics exports Prometheus counters for the ledger API and the
// oracle worker. Everything is registered on a private registry under the
// "nomadhouse" namespace, labelled with the service name given to Init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nomadhouse"

var (
	enabled  bool
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	listingOperationsTotal *prometheus.CounterVec
	payoutsTotal           *prometheus.CounterVec

	titleRequestsTotal *prometheus.CounterVec
	deedsMintedTotal   prometheus.Counter

	oracleFulfillmentsTotal *prometheus.CounterVec
)

// Init builds a fresh registry. With enabledFlag false every recorder is a
// no-op and Handler answers 404.
func Init(enabledFlag bool, service string) {
	enabled = enabledFlag
	if !enabled {
		registry = nil
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry))

	httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "API requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	listingOperationsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "marketplace", Name: "listing_operations_total",
		Help: "Listing transitions (post, buy, pause, unpause, cancel) by outcome",
	}, []string{"operation", "status"})

	payoutsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "marketplace", Name: "payouts_total",
		Help: "Gas-limited payouts by kind (earnings, fees) and outcome",
	}, []string{"kind", "status"})

	titleRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "collection", Name: "title_requests_total",
		Help: "Title verification requests by resulting status",
	}, []string{"status"})

	deedsMintedTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "collection", Name: "deeds_minted_total",
		Help: "Deeds minted from verified titles",
	})

	oracleFulfillmentsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "oracle", Name: "fulfillments_total",
		Help: "Answers submitted by the oracle worker by result",
	}, []string{"result"})
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	if !enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Enabled reports whether Init was called with metrics on
func Enabled() bool {
	return enabled
}
