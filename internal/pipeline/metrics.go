package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go-catmat-matcher/internal/model"
)

// Metrics exposes Prometheus collectors for job and lookup activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookupDuration *prometheus.HistogramVec
	lookupRetries  prometheus.Counter
	records        *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	jobsActive     prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg and panics on conflict.
// Use a fresh registry per test.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "catmat",
				Subsystem: "matcher",
				Name:      "lookup_duration_seconds",
				Help:      "Duration of single catalog lookups.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		lookupRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "catmat",
				Subsystem: "matcher",
				Name:      "lookup_retries_total",
				Help:      "Number of catalog lookups that were retried.",
			},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catmat",
				Subsystem: "jobs",
				Name:      "records_processed_total",
				Help:      "Records recorded per classification.",
			},
			[]string{"classification", "error"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "catmat",
				Subsystem: "jobs",
				Name:      "state_transitions_total",
				Help:      "Job lifecycle transitions by target state.",
			},
			[]string{"state"},
		),
		jobsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "catmat",
				Subsystem: "jobs",
				Name:      "active",
				Help:      "Number of jobs with a running dispatcher.",
			},
		),
	}
	reg.MustRegister(m.lookupDuration, m.lookupRetries, m.records, m.transitions, m.jobsActive)
	return m
}

// ObserveLookup records one catalog lookup attempt
func (m *Metrics) ObserveLookup(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	m.lookupDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.lookupRetries.Inc()
}

// ObserveEvent counts a recorded result
func (m *Metrics) ObserveEvent(ev model.ProcessingEvent) {
	if m == nil {
		return
	}
	flag := "false"
	if ev.Error {
		flag = "true"
	}
	m.records.WithLabelValues(string(ev.Classification), flag).Inc()
}

func (m *Metrics) ObserveTransition(state model.JobState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) IncActiveJobs() {
	if m == nil {
		return
	}
	m.jobsActive.Inc()
}

func (m *Metrics) DecActiveJobs() {
	if m == nil {
		return
	}
	m.jobsActive.Dec()
}
