// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes backup activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/schedule"
)

const namespace = "ec2backup"

// Metrics holds the collectors. It implements backup.Observer.
type Metrics struct {
	registry *prometheus.Registry

	snapshots    *prometheus.CounterVec
	deleted      *prometheus.CounterVec
	failures     *prometheus.CounterVec
	dispatched   *prometheus.CounterVec
	skipped      prometheus.Counter
	leafDuration *prometheus.HistogramVec
	runDuration  prometheus.Histogram
	runFailures  prometheus.Counter
	lastRun      prometheus.Gauge
}

// New returns Metrics registered on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots handled by leaf runs, by type and action.",
		}, []string{"type", "action"}),
		deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_deleted_total",
			Help:      "Snapshots retired beyond their generation.",
		}, []string{"type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaf_failures_total",
			Help:      "Leaf runs that returned an error.",
		}, []string{"type", "kind"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dispatched_total",
			Help:      "Jobs dispatched by the root fan-out.",
		}, []string{"type"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_skipped_total",
			Help:      "Due instances skipped for an invalid generation tag.",
		}),
		leafDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaf_duration_seconds",
			Help:      "Leaf run duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Root fan-out duration including inline leaves.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		runFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Root fan-outs that returned an error.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Schedule time of the last fan-out.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.snapshots, m.deleted, m.failures, m.dispatched, m.skipped,
		m.leafDuration, m.runDuration, m.runFailures, m.lastRun,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe records a leaf outcome.
func (m *Metrics) Observe(_ context.Context, o backup.Outcome, err error) {
	kind := "local"
	if o.Remote {
		kind = "remote"
	}
	if !o.Started.IsZero() && !o.Finished.IsZero() {
		m.leafDuration.WithLabelValues(kind).Observe(o.Finished.Sub(o.Started).Seconds())
	}
	typ := typeLabel(o, err)
	if err != nil {
		m.failures.WithLabelValues(typ, kind).Inc()
	}
	if o.Action != "" {
		m.snapshots.WithLabelValues(typ, string(o.Action)).Inc()
	}
	if n := len(o.Deleted); n > 0 {
		m.deleted.WithLabelValues(typ).Add(float64(n))
	}
}

// typeLabel bounds the type label to the known backup types. Rejected jobs
// and unknown types are counted as "invalid".
func typeLabel(o backup.Outcome, err error) string {
	if errors.Is(err, backup.ErrInvalidJob) {
		return invalidType
	}
	if _, perr := schedule.ParseType(o.Job.Type); perr != nil {
		return invalidType
	}
	return o.Job.Type
}

const invalidType = "invalid"

// ObserveRun records a root fan-out.
func (m *Metrics) ObserveRun(r fanout.Report, took time.Duration, err error) {
	for _, j := range r.Jobs {
		m.dispatched.WithLabelValues(j.Type).Inc()
	}
	m.skipped.Add(float64(len(r.Skipped)))
	m.runDuration.Observe(took.Seconds())
	if !r.At.IsZero() {
		m.lastRun.Set(float64(r.At.Unix()))
	}
	if err != nil {
		m.runFailures.Inc()
	}
}

var _ backup.Observer = (*Metrics)(nil)
