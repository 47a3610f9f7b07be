// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSetQueueDepthRecordsAllFourStatuses(t *testing.T) {
	SetQueueDepth(3, 1, 42, 2)
	c.init()
	require.Equal(t, float64(3), testutil.ToFloat64(c.queueDepth.WithLabelValues("queued")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.queueDepth.WithLabelValues("running")))
	require.Equal(t, float64(42), testutil.ToFloat64(c.queueDepth.WithLabelValues("completed")))
	require.Equal(t, float64(2), testutil.ToFloat64(c.queueDepth.WithLabelValues("failed")))
}

func TestRecordDeadLetterSweepIgnoresNonPositive(t *testing.T) {
	c.init()
	before := testutil.ToFloat64(c.deadLetterSweeps)
	RecordDeadLetterSweep(0)
	require.Equal(t, before, testutil.ToFloat64(c.deadLetterSweeps))
	RecordDeadLetterSweep(5)
	require.Equal(t, before+5, testutil.ToFloat64(c.deadLetterSweeps))
}

func TestRecordParsersAutoResumedIgnoresNonPositive(t *testing.T) {
	c.init()
	before := testutil.ToFloat64(c.parsersAutoResumed)
	RecordParsersAutoResumed(0)
	require.Equal(t, before, testutil.ToFloat64(c.parsersAutoResumed))
	RecordParsersAutoResumed(2)
	require.Equal(t, before+2, testutil.ToFloat64(c.parsersAutoResumed))
}

func TestSetDueRetries(t *testing.T) {
	SetDueRetries(7)
	c.init()
	require.Equal(t, float64(7), testutil.ToFloat64(c.dueRetryGauge))
}

func TestObserveActorLatencyRecordsSample(t *testing.T) {
	c.init()
	ObserveActorLatency("row", 0.05)
	require.GreaterOrEqual(t, testutil.CollectAndCount(c.actorLatency), 1)
}

func TestHandlerReturnsDefaultGatherer(t *testing.T) {
	require.NotNil(t, Handler())
}
