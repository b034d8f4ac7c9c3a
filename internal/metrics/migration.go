// Package metrics provides Prometheus metrics for adintel migration runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adintel"

// MigrationMetrics holds the collectors updated during a migration run.
// A nil *MigrationMetrics is valid and records nothing.
type MigrationMetrics struct {
	PagesCounter      *prometheus.CounterVec
	CandidatesGauge   prometheus.Gauge
	StepDuration      *prometheus.HistogramVec
	VerificationGauge *prometheus.GaugeVec
	LastRunSuccess    prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge
	RestoredRowsGauge *prometheus.GaugeVec
}

// NewMigrationMetrics creates and registers the migration collectors.
func NewMigrationMetrics(reg prometheus.Registerer) (*MigrationMetrics, error) {
	m := &MigrationMetrics{
		PagesCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "pages_total",
			Help:      "Brand pages processed by the data copier, by result.",
		}, []string{"result"}),
		CandidatesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "candidates",
			Help:      "Legacy brands with a page URL considered by the last run.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "step_duration_seconds",
			Help:      "Duration of each migration step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"step"}),
		VerificationGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "verification_checks",
			Help:      "Verification checks of the last verify run, by result.",
		}, []string{"result"}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "last_run_success",
			Help:      "1 if the last run succeeded, 0 otherwise.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		RestoredRowsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "restored_rows",
			Help:      "Rows handled by the last restore, by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.PagesCounter,
		m.CandidatesGauge,
		m.StepDuration,
		m.VerificationGauge,
		m.LastRunSuccess,
		m.LastRunTimestamp,
		m.RestoredRowsGauge,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// RecordPages adds the copier's counts.
func (m *MigrationMetrics) RecordPages(migrated, skipped, total int) {
	if m == nil {
		return
	}
	m.PagesCounter.WithLabelValues("migrated").Add(float64(migrated))
	m.PagesCounter.WithLabelValues("skipped").Add(float64(skipped))
	m.CandidatesGauge.Set(float64(total))
}

// ObserveStep records how long a named step took.
func (m *MigrationMetrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// SetVerification records the outcome of a verify run.
func (m *MigrationMetrics) SetVerification(passed, failed int) {
	if m == nil {
		return
	}
	m.VerificationGauge.WithLabelValues("passed").Set(float64(passed))
	m.VerificationGauge.WithLabelValues("failed").Set(float64(failed))
}

// SetRestored records the outcome of a restore.
func (m *MigrationMetrics) SetRestored(restored, missing int) {
	if m == nil {
		return
	}
	m.RestoredRowsGauge.WithLabelValues("restored").Set(float64(restored))
	m.RestoredRowsGauge.WithLabelValues("missing").Set(float64(missing))
}

// RecordRun marks the end of a run.
func (m *MigrationMetrics) RecordRun(success bool, finishedAt time.Time) {
	if m == nil {
		return
	}
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// WriteTextfile writes everything gathered by g to path in the Prometheus
// text format, for pickup by the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
