// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package protocol

import "github.com/casparianflow/flow/internal/queue"

// WarningSeverityThreshold is the annotation severity at or above
// which a run is no longer an unqualified success.
const WarningSeverityThreshold = 3

// ClassifyCompletion turns what the host observed driving a parser
// run into the queue's completion-status vocabulary: a parser that
// abandoned a file mid-stream (closed output_end early rather than
// emitting every row it was asked to) reports partial_success; one
// that emitted everything but logged warning-severity annotations
// reports completed_with_warnings; otherwise success.
func ClassifyCompletion(abandonedMidStream bool, warningAnnotations int64) queue.CompletionStatus {
	if abandonedMidStream {
		return queue.CompletionPartialSuccess
	}
	if warningAnnotations > 0 {
		return queue.CompletionCompletedWithWarnings
	}
	return queue.CompletionSuccess
}
