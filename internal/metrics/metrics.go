// Package metrics holds the Prometheus collectors for one acceptance run.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds all collectors for a run. Each run gets its own registry so
// nothing leaks between runs or tests.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	OperationsTotal     *prometheus.CounterVec
	StepsTotal          *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spoilercheck_http_requests_total",
			Help: "HTTP requests sent to the API under test by status code and method",
		},
		[]string{"code", "method"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spoilercheck_http_request_duration_seconds",
			Help:    "Round-trip time of requests sent to the API under test",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spoilercheck_operations_total",
			Help: "API operations performed by operation name and response status code",
		},
		[]string{"operation", "code"},
	)

	stepsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spoilercheck_steps_total",
			Help: "Acceptance steps executed by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		operationsTotal,
		stepsTotal,
	)

	return &Metrics{
		registry:            registry,
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		OperationsTotal:     operationsTotal,
		StepsTotal:          stepsTotal,
	}
}

// Registry returns the registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// InstrumentRoundTripper wraps next so every request is counted and timed.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.HTTPRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(m.HTTPRequestDuration, next),
	)
}

// RecordOperation counts one API operation and the status code it returned.
// A status of 0 means the request never got a response.
func (m *Metrics) RecordOperation(operation string, status int) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.OperationsTotal.WithLabelValues(operation, code).Inc()
}

// RecordStep counts one executed acceptance step.
func (m *Metrics) RecordStep(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	m.StepsTotal.WithLabelValues(result).Inc()
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
