// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler is the daemon's housekeeping: a gocron-driven set
// of periodic jobs over the job queue, none of them in the foreground
// worker's own claim/complete path. Built with an explicit constructor
// rather than package-level scheduler state, so tests can run more
// than one scheduler concurrently.
package scheduler

import (
	"context"
	"time"

	"github.com/casparianflow/flow/internal/queue"
	"github.com/casparianflow/flow/pkg/log"
	"github.com/casparianflow/flow/pkg/metrics"
	"github.com/go-co-op/gocron/v2"
)

const (
	// DefaultDeadLetterSweepInterval is how often stale terminally-failed
	// jobs are swept into the dead-letter table.
	DefaultDeadLetterSweepInterval = 5 * time.Minute
	// DefaultRetryScanInterval is how often the due-retry backlog gauge
	// is recomputed.
	DefaultRetryScanInterval = 30 * time.Second
	// DefaultHealthTickerInterval is how often parser health is logged
	// and stale pauses are auto-resumed.
	DefaultHealthTickerInterval = time.Minute

	// staleFailureAge is how long a job must have sat in failed status,
	// unreplayed and unswept, before the dead-letter sweep claims it.
	staleFailureAge = 10 * time.Minute
	// pauseCooldown is how long an auto- or operator-paused parser stays
	// paused before the health ticker gives it another chance.
	pauseCooldown = 15 * time.Minute
)

// Intervals overrides the three jobs' periods; a zero field keeps its
// package default.
type Intervals struct {
	DeadLetterSweep time.Duration
	RetryScan       time.Duration
	HealthTicker    time.Duration
}

func (iv Intervals) deadLetterSweep() time.Duration {
	if iv.DeadLetterSweep > 0 {
		return iv.DeadLetterSweep
	}
	return DefaultDeadLetterSweepInterval
}

func (iv Intervals) retryScan() time.Duration {
	if iv.RetryScan > 0 {
		return iv.RetryScan
	}
	return DefaultRetryScanInterval
}

func (iv Intervals) healthTicker() time.Duration {
	if iv.HealthTicker > 0 {
		return iv.HealthTicker
	}
	return DefaultHealthTickerInterval
}

// Scheduler wraps one gocron.Scheduler running the daemon's
// housekeeping jobs against one queue.Queue.
type Scheduler struct {
	s     gocron.Scheduler
	q     *queue.Queue
	stats SchedulerStats
}

// SchedulerStats exposes the last observation each job made, for the
// status/control API to report without re-querying the queue itself.
type SchedulerStats struct {
	LastDeadLetterSweepCount int64
	LastDueRetryCount        int64
	LastAutoResumedPlugins   []string
}

// New builds a Scheduler; it does not start it. q must not be nil.
func New(q *queue.Queue, iv Intervals) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sch := &Scheduler{s: gs, q: q}

	if _, err := gs.NewJob(
		gocron.DurationJob(iv.deadLetterSweep()),
		gocron.NewTask(sch.sweepDeadLetters),
	); err != nil {
		return nil, err
	}
	if _, err := gs.NewJob(
		gocron.DurationJob(iv.retryScan()),
		gocron.NewTask(sch.scanRetryDue),
	); err != nil {
		return nil, err
	}
	if _, err := gs.NewJob(
		gocron.DurationJob(iv.healthTicker()),
		gocron.NewTask(sch.tickHealth),
	); err != nil {
		return nil, err
	}
	return sch, nil
}

// Start begins running the scheduled jobs in the background.
func (sch *Scheduler) Start() {
	sch.s.Start()
}

// Shutdown stops the scheduler, blocking until any in-flight job
// completes.
func (sch *Scheduler) Shutdown() error {
	return sch.s.Shutdown()
}

// Stats returns a snapshot of what the most recent tick of each job
// observed.
func (sch *Scheduler) Stats() SchedulerStats {
	return sch.stats
}

func (sch *Scheduler) sweepDeadLetters() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := sch.q.SweepStaleFailures(ctx, staleFailureAge)
	if err != nil {
		log.Errorf("scheduler: dead-letter sweep: %v", err)
		return
	}
	sch.stats.LastDeadLetterSweepCount = n
	metrics.RecordDeadLetterSweep(n)
	if n > 0 {
		log.Infof("scheduler: dead-letter sweep moved %d stale failure(s)", n)
	}
}

func (sch *Scheduler) scanRetryDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := sch.q.CountDueRetries(ctx)
	if err != nil {
		log.Errorf("scheduler: retry-due scan: %v", err)
		return
	}
	sch.stats.LastDueRetryCount = n
	metrics.SetDueRetries(n)
}

func (sch *Scheduler) tickHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resumed, err := sch.q.AutoResumeStalePauses(ctx, pauseCooldown)
	if err != nil {
		log.Errorf("scheduler: health ticker auto-resume: %v", err)
	} else {
		sch.stats.LastAutoResumedPlugins = resumed
		metrics.RecordParsersAutoResumed(len(resumed))
		for _, name := range resumed {
			log.Notef("scheduler: auto-resumed parser %q after %s cooldown", name, pauseCooldown)
		}
	}

	health, err := sch.q.ListParserHealth(ctx)
	if err != nil {
		log.Errorf("scheduler: health ticker list: %v", err)
		return
	}
	for _, h := range health {
		if h.PausedAt != nil {
			log.Warnf("scheduler: parser %q paused, consecutive_failures=%d", h.PluginName, h.ConsecutiveFailures)
		}
	}

	if stats, err := sch.q.Stats(ctx); err != nil {
		log.Errorf("scheduler: health ticker stats: %v", err)
	} else {
		metrics.SetQueueDepth(stats.Queued, stats.Running, stats.Completed, stats.Failed)
	}
}
