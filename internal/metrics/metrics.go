// Package metrics holds the Prometheus instruments exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cinegate_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// StoreErrors counts failed catalog operations by operation name.
var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_store_errors_total",
	Help: "Document store failures by catalog operation.",
}, []string{"op"})

// CacheLookups counts response cache hits and misses.
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_cache_lookups_total",
	Help: "Response cache lookups by operation and result.",
}, []string{"op", "result"})

// ResolverFallbacks counts slugs resolved by a strategy other than the
// detected one.
var ResolverFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_resolver_fallbacks_total",
	Help: "Slug resolutions that needed fallback probing, by resolved kind.",
}, []string{"kind"})

// DownloadSteps counts negotiation calls by step and outcome.
var DownloadSteps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_download_steps_total",
	Help: "Download negotiation calls by step and outcome.",
}, []string{"step", "outcome"})

// TokenDecisions counts redirect token checks by decision and reason.
var TokenDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_token_decisions_total",
	Help: "Download token validations by decision and reason.",
}, []string{"decision", "reason"})

// AuditDropped counts audit events that could not be recorded.
var AuditDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinegate_audit_dropped_total",
	Help: "Audit events lost by sink.",
}, []string{"sink"})

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route
// pattern, keeping label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
