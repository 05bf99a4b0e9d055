// Package metrics exposes batch run counters in the prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Case outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics owns its own registry so tests and several runners in one process
// never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	cases        *prometheus.CounterVec
	checkFails   *prometheus.CounterVec
	caseDuration prometheus.Histogram
	batches      prometheus.Counter
	batchSeconds prometheus.Histogram
	vcfFailures  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseqc",
			Name:      "cases_total",
			Help:      "Cases processed, by outcome.",
		}, []string{"outcome"}),
		checkFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseqc",
			Name:      "check_failures_total",
			Help:      "Quality check failures, by check name.",
		}, []string{"check"}),
		caseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caseqc",
			Name:      "case_duration_seconds",
			Help:      "Time spent loading, resolving and evaluating one case.",
			Buckets:   prometheus.DefBuckets,
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caseqc",
			Name:      "batches_total",
			Help:      "Batch runs completed.",
		}),
		batchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caseqc",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one batch run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		vcfFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caseqc",
			Name:      "vcf_projection_failures_total",
			Help:      "Genomic entries the VCF projection could not convert.",
		}),
	}
	m.registry.MustRegister(
		m.cases, m.checkFails, m.caseDuration, m.batches, m.batchSeconds, m.vcfFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveCase counts one finished case.
func (m *Metrics) ObserveCase(outcome string, elapsed time.Duration) {
	m.cases.WithLabelValues(outcome).Inc()
	m.caseDuration.Observe(elapsed.Seconds())
}

// ObserveCheckFailure counts one failed quality check.
func (m *Metrics) ObserveCheckFailure(check string) {
	m.checkFails.WithLabelValues(check).Inc()
}

// ObserveVCFFailure counts one failed projection.
func (m *Metrics) ObserveVCFFailure() {
	m.vcfFailures.Inc()
}

// ObserveBatch counts one finished batch run.
func (m *Metrics) ObserveBatch(elapsed time.Duration) {
	m.batches.Inc()
	m.batchSeconds.Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
