package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	DocumentsWritten *prometheus.CounterVec
	LLMDuration      *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clinical_http_requests_total",
			Help: "HTTP requests served, by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		DocumentsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clinical_documents_written_total",
			Help: "Committed document writes, by resource type and action",
		}, []string{"resource_type", "action"}),
		LLMDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinical_llm_request_duration_seconds",
			Help:    "Latency of language model calls, by outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		gatherer: reg,
	}
}

// ObserveHTTPRequest counts one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// IncrementDocumentsWritten counts one committed create, update or delete.
func (m *Metrics) IncrementDocumentsWritten(resourceType, action string) {
	if m == nil {
		return
	}
	m.DocumentsWritten.WithLabelValues(resourceType, action).Inc()
}

// ObserveLLMRequest records the latency of one language model call.
func (m *Metrics) ObserveLLMRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
