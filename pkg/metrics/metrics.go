// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes this daemon's own Prometheus metrics: queue
// depth by status, housekeeping tick outcomes, and store actor latency.
// Shaped after kraklabs-cie's pkg/ingestion/metrics.go: a private
// collectors struct holding the prometheus instruments, a sync.Once
// guarded init building and registering them in one MustRegister call,
// and small package-level record/set helpers so callers never touch a
// prometheus type directly.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	queueDepth *prometheus.GaugeVec

	deadLetterSweeps   prometheus.Counter
	dueRetryGauge      prometheus.Gauge
	parsersAutoResumed prometheus.Counter

	actorLatency *prometheus.HistogramVec
}

var (
	c    collectors
	once sync.Once
)

func (c *collectors) init() {
	once.Do(func() {
		c.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scoutd",
			Subsystem: "queue",
			Name:      "jobs",
			Help:      "Number of processing-queue jobs by status.",
		}, []string{"status"})

		c.deadLetterSweeps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scoutd",
			Subsystem: "scheduler",
			Name:      "dead_letter_sweeps_total",
			Help:      "Jobs moved into the dead-letter table by the housekeeping sweep.",
		})
		c.dueRetryGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scoutd",
			Subsystem: "scheduler",
			Name:      "due_retries",
			Help:      "Queued jobs whose backoff has elapsed and are only waiting on a free worker.",
		})
		c.parsersAutoResumed = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scoutd",
			Subsystem: "scheduler",
			Name:      "parsers_auto_resumed_total",
			Help:      "Parsers automatically resumed after their pause cooldown elapsed.",
		})

		c.actorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scoutd",
			Subsystem: "store",
			Name:      "actor_op_seconds",
			Help:      "Latency of operations submitted to a backend's actor goroutine.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"})

		prometheus.MustRegister(
			c.queueDepth,
			c.deadLetterSweeps,
			c.dueRetryGauge,
			c.parsersAutoResumed,
			c.actorLatency,
		)
	})
}

// SetQueueDepth records the current job count for each processing
// status, overwriting the previous observation. Called once per
// status/control API scrape or housekeeping tick.
func SetQueueDepth(queued, running, completed, failed int64) {
	c.init()
	c.queueDepth.WithLabelValues("queued").Set(float64(queued))
	c.queueDepth.WithLabelValues("running").Set(float64(running))
	c.queueDepth.WithLabelValues("completed").Set(float64(completed))
	c.queueDepth.WithLabelValues("failed").Set(float64(failed))
}

// RecordDeadLetterSweep adds n jobs to the dead-letter-sweep counter.
func RecordDeadLetterSweep(n int64) {
	if n <= 0 {
		return
	}
	c.init()
	c.deadLetterSweeps.Add(float64(n))
}

// SetDueRetries records the current due-retry backlog.
func SetDueRetries(n int64) {
	c.init()
	c.dueRetryGauge.Set(float64(n))
}

// RecordParsersAutoResumed adds n parsers to the auto-resume counter.
func RecordParsersAutoResumed(n int) {
	if n <= 0 {
		return
	}
	c.init()
	c.parsersAutoResumed.Add(float64(n))
}

// ObserveActorLatency records how long an actor op took for backend
// (the backend's Kind, e.g. "row" or "columnar").
func ObserveActorLatency(backend string, seconds float64) {
	c.init()
	c.actorLatency.WithLabelValues(backend).Observe(seconds)
}

// Handler returns the default Prometheus gatherer, for the
// status/control server to serve at /metrics through promhttp.
func Handler() prometheus.Gatherer {
	c.init()
	return prometheus.DefaultGatherer
}
