// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/casparianflow/flow/internal/queue"
	"github.com/casparianflow/flow/internal/schema"
	"github.com/casparianflow/flow/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, schema.Apply(ctx, b))
	return queue.New(b)
}

func TestNewRegistersThreeJobs(t *testing.T) {
	q := newTestQueue(t)
	sch, err := New(q, Intervals{})
	require.NoError(t, err)
	require.NotNil(t, sch)
	require.Len(t, sch.s.Jobs(), 3)
	sch.Start()
	require.NoError(t, sch.Shutdown())
}

func TestIntervalsFallBackToDefaults(t *testing.T) {
	var iv Intervals
	require.Equal(t, DefaultDeadLetterSweepInterval, iv.deadLetterSweep())
	require.Equal(t, DefaultRetryScanInterval, iv.retryScan())
	require.Equal(t, DefaultHealthTickerInterval, iv.healthTicker())

	iv = Intervals{DeadLetterSweep: time.Second, RetryScan: 2 * time.Second, HealthTicker: 3 * time.Second}
	require.Equal(t, time.Second, iv.deadLetterSweep())
	require.Equal(t, 2*time.Second, iv.retryScan())
	require.Equal(t, 3*time.Second, iv.healthTicker())
}

func TestSweepDeadLettersLeavesFreshFailure(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	sch, err := New(q, Intervals{})
	require.NoError(t, err)

	j, err := q.Enqueue(ctx, queue.NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)
	_, err = q.PopJob(ctx, "host-a", 1)
	require.NoError(t, err)
	require.NoError(t, q.FailJob(ctx, j.ID, queue.CompletionFailed, "boom"))

	// sweepDeadLetters only claims failures older than staleFailureAge;
	// a fresh failure is left alone.
	sch.sweepDeadLetters()
	require.Equal(t, int64(0), sch.Stats().LastDeadLetterSweepCount)

	got, err := q.GetJob(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, queue.JobFailed, got.Status)
}

func TestScanRetryDueCountsDueRetries(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	sch, err := New(q, Intervals{})
	require.NoError(t, err)

	j, err := q.Enqueue(ctx, queue.NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)
	_, err = q.PopJob(ctx, "host-a", 1)
	require.NoError(t, err)
	require.NoError(t, q.ScheduleRetry(ctx, j.ID, "transient", time.Now().Add(-time.Minute).UnixMilli()))

	sch.scanRetryDue()
	require.Equal(t, int64(1), sch.Stats().LastDueRetryCount)
}

func TestTickHealthLeavesFreshPause(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	sch, err := New(q, Intervals{})
	require.NoError(t, err)

	require.NoError(t, q.PauseParser(ctx, "csv-parser"))
	paused, err := q.IsParserPaused(ctx, "csv-parser")
	require.NoError(t, err)
	require.True(t, paused)

	// A pause younger than the cooldown is left alone.
	sch.tickHealth()
	paused, err = q.IsParserPaused(ctx, "csv-parser")
	require.NoError(t, err)
	require.True(t, paused)
	require.Empty(t, sch.Stats().LastAutoResumedPlugins)
}
