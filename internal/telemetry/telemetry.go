// Package telemetry exposes Prometheus collectors for pipeline runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"goregime/domain/inference"
	"goregime/domain/metric"
)

const (
	// OutcomeSuccess labels runs with zero fatal errors.
	OutcomeSuccess = "success"
	// OutcomeFatal labels runs aborted by a structural error.
	OutcomeFatal = "fatal"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goregime",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "goregime",
			Name:      "run_seconds",
			Help:      "Pipeline run latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	valuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goregime",
			Name:      "metric_values_total",
			Help:      "Total (metric, term) values produced, partitioned by reason.",
		},
		[]string{"reason"},
	)

	permutationTestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goregime",
			Name:      "permutation_tests_total",
			Help:      "Total permutation tests, partitioned by mode.",
		},
		[]string{"mode"},
	)

	evidenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goregime",
			Name:      "evidence_records_total",
			Help:      "Total inference records, partitioned by evidence tier.",
		},
		[]string{"tier"},
	)
)

// Register attaches goregime collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		valuesTotal,
		permutationTestsTotal,
		evidenceTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeFatal {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveValues counts values by reason code.
func ObserveValues(values []metric.Value) {
	for _, v := range values {
		valuesTotal.WithLabelValues(string(v.Reason)).Inc()
	}
}

// ObserveRecords counts permutation modes and evidence tiers.
func ObserveRecords(records []inference.Record) {
	for _, r := range records {
		if r.Permutation != nil {
			permutationTestsTotal.WithLabelValues(string(r.Permutation.Mode)).Inc()
		}
		evidenceTotal.WithLabelValues(string(r.Evidence)).Inc()
	}
}
