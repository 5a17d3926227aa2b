// Package metrics exposes Prometheus instrumentation for discovery and test runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/specvital/explorer/pkg/domain"
)

const Namespace = "explorer"

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
)

// Metricer records engine activity.
type Metricer interface {
	RecordDiscovery(suites, tests int, duration time.Duration)
	RecordScanError(phase string)
	RecordInvocation(kind domain.Kind, exitCode int, duration time.Duration)
	RecordTestResult(state domain.State)
	RecordRun(outcome string, duration time.Duration)
}

// Metrics is the Prometheus Metricer.
type Metrics struct {
	discoveredSuites  prometheus.Gauge
	discoveredTests   prometheus.Gauge
	discoveryDuration prometheus.Histogram
	scanErrorsTotal   *prometheus.CounterVec
	invocationsTotal  *prometheus.CounterVec
	invocationSeconds *prometheus.HistogramVec
	testResultsTotal  *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	runSeconds        prometheus.Histogram
}

var _ Metricer = (*Metrics)(nil)

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		discoveredSuites: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "discovered_suites",
			Help:      "Number of suites in the current test tree",
		}),
		discoveredTests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "discovered_tests",
			Help:      "Number of tests in the current test tree",
		}),
		discoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Duration of discovery passes",
			Buckets:   prometheus.DefBuckets,
		}),
		scanErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scan_errors_total",
			Help:      "Count of files skipped during discovery",
		}, []string{"phase"}),
		invocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invocations_total",
			Help:      "Count of test runner invocations",
		}, []string{"kind", "exit"}),
		invocationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of test runner invocations",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		testResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "test_results_total",
			Help:      "Count of resolved test outcomes",
		}, []string{"state"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Count of run batches by outcome",
		}, []string{"outcome"}),
		runSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of run batches",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
	}
}

func (m *Metrics) RecordDiscovery(suites, tests int, duration time.Duration) {
	m.discoveredSuites.Set(float64(suites))
	m.discoveredTests.Set(float64(tests))
	m.discoveryDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordScanError(phase string) {
	m.scanErrorsTotal.WithLabelValues(phase).Inc()
}

// RecordInvocation counts one runner process. Exit codes are bucketed so the
// label set stays bounded.
func (m *Metrics) RecordInvocation(kind domain.Kind, exitCode int, duration time.Duration) {
	m.invocationsTotal.WithLabelValues(string(kind), exitLabel(exitCode)).Inc()
	m.invocationSeconds.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (m *Metrics) RecordTestResult(state domain.State) {
	m.testResultsTotal.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) RecordRun(outcome string, duration time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runSeconds.Observe(duration.Seconds())
}

func exitLabel(code int) string {
	switch {
	case code == 0:
		return "passed"
	case code == 1:
		return "failed"
	case code == 2:
		return "usage"
	default:
		return "abnormal"
	}
}

// Noop discards all measurements.
type Noop struct{}

var _ Metricer = Noop{}

func (Noop) RecordDiscovery(int, int, time.Duration)          {}
func (Noop) RecordScanError(string)                           {}
func (Noop) RecordInvocation(domain.Kind, int, time.Duration) {}
func (Noop) RecordTestResult(domain.State)                    {}
func (Noop) RecordRun(string, time.Duration)                  {}
