// Package metrics exposes the service's Prometheus collectors. A Registry
// satisfies every recorder interface the services and the backend client
// accept.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gstbooks"

// Registry owns a private Prometheus registry and the domain collectors.
type Registry struct {
	reg *prometheus.Registry

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Credential metrics
	otpRequests       *prometheus.CounterVec
	authentications   *prometheus.CounterVec
	usableCredentials prometheus.Gauge

	// Reconciliation metrics
	reconciliations *prometheus.CounterVec

	// Document metrics
	documentSubmissions *prometheus.CounterVec

	// Remote backend metrics
	remoteRequests        *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec
}

// NewRegistry registers the collectors together with the Go runtime and
// process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"method", "route"}),

		otpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credential",
			Name:      "otp_requests_total",
			Help:      "OTP requests by outcome",
		}, []string{"outcome"}),

		authentications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credential",
			Name:      "authentications_total",
			Help:      "OTP authentications by outcome",
		}, []string{"outcome"}),

		usableCredentials: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "credential",
			Name:      "usable",
			Help:      "Credentials whose session is currently usable",
		}),

		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome",
		}, []string{"outcome", "empty"}),

		documentSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "submissions_total",
			Help:      "Document submissions by kind and outcome",
		}, []string{"kind", "outcome"}),

		remoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Requests to the GST backend by operation and status",
		}, []string{"operation", "status"}),

		remoteRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "GST backend request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (r *Registry) RecordOTPRequest(outcome string) {
	r.otpRequests.WithLabelValues(outcome).Inc()
}

func (r *Registry) RecordAuthentication(outcome string) {
	r.authentications.WithLabelValues(outcome).Inc()
}

func (r *Registry) SetUsableCredentials(n int) {
	r.usableCredentials.Set(float64(n))
}

func (r *Registry) RecordReconciliation(outcome string, empty bool) {
	r.reconciliations.WithLabelValues(outcome, strconv.FormatBool(empty)).Inc()
}

func (r *Registry) RecordDocumentSubmission(kind, outcome string) {
	r.documentSubmissions.WithLabelValues(kind, outcome).Inc()
}

// RecordRemoteRequest counts a backend call. Status 0 means the request
// never got a response.
func (r *Registry) RecordRemoteRequest(operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	r.remoteRequests.WithLabelValues(operation, status).Inc()
	r.remoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
