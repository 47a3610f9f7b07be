// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package protocol

import (
	"bufio"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/ipc"
)

// HardFailure marks a hard parse failure — a missing output_end, an
// out-of-order stream_index, a schema_hash mismatch, or a row-count
// mismatch — that routes the job through fail_job rather than being
// tolerated as a warning.
type HardFailure struct {
	Output string
	Reason string
}

func (e *HardFailure) Error() string {
	return fmt.Sprintf("protocol: hard failure on output %q: %s", e.Output, e.Reason)
}

// BatchHandler receives each record batch the parser emits for one
// output, in arrival order.
type BatchHandler func(output string, rec arrow.Record) error

// OutputResult summarizes one fully-driven output.
type OutputResult struct {
	Output      string
	RowsEmitted int64
	StreamIndex int
}

// SchemaLookup resolves an output name to the schema_hash the host
// independently computed for it (via SchemaHash), so Driver can
// verify the parser's claimed hash matches rather than trusting it
// blindly.
type SchemaLookup func(output string) (string, error)

// Driver sequences one parser run: a hello frame, then one
// (output_begin, Arrow IPC stream, output_end) triple per output, in
// the fixed order both sides agree on. It reads control frames from a
// line-oriented reader (the parser's stderr in production) and Arrow
// IPC data from a byte stream (the parser's stdout), kept as plain
// io.Reader so tests can drive it with in-memory pipes instead of a
// real subprocess.
type Driver struct {
	control         *bufio.Scanner
	data            io.Reader
	nextStreamIndex int
}

func NewDriver(control io.Reader, data io.Reader) *Driver {
	s := bufio.NewScanner(control)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Driver{control: s, data: data}
}

func (d *Driver) readLine() ([]byte, bool) {
	if !d.control.Scan() {
		return nil, false
	}
	return d.control.Bytes(), true
}

// ReadHello consumes and validates the run's opening hello frame.
func (d *Driver) ReadHello() (HelloFrame, error) {
	line, ok := d.readLine()
	if !ok {
		return HelloFrame{}, fmt.Errorf("protocol: control stream closed before hello frame (%w)", d.control.Err())
	}
	return ParseHello(line)
}

// ReadOutput drives exactly one output's (output_begin, batches,
// output_end) triple: verifies stream_index is the next expected
// value, verifies the parser's claimed schema_hash against lookup,
// streams every record batch to handler, and verifies the output_end
// frame's rows_emitted against what was actually counted. Any
// mismatch or a missing output_end is a *HardFailure.
func (d *Driver) ReadOutput(lookup SchemaLookup, handler BatchHandler) (OutputResult, error) {
	line, ok := d.readLine()
	if !ok {
		return OutputResult{}, fmt.Errorf("protocol: control stream closed before output_begin (%w)", d.control.Err())
	}
	begin, err := ParseOutputBegin(line)
	if err != nil {
		return OutputResult{}, err
	}
	if begin.StreamIndex != d.nextStreamIndex {
		return OutputResult{}, &HardFailure{Output: begin.Output, Reason: fmt.Sprintf("stream_index %d out of order, expected %d", begin.StreamIndex, d.nextStreamIndex)}
	}
	expectedHash, err := lookup(begin.Output)
	if err != nil {
		return OutputResult{}, fmt.Errorf("protocol: resolving expected schema hash for %q: %w", begin.Output, err)
	}
	if begin.SchemaHash != expectedHash {
		return OutputResult{}, &HardFailure{Output: begin.Output, Reason: fmt.Sprintf("schema_hash mismatch: got %s want %s", begin.SchemaHash, expectedHash)}
	}

	var rowsSeen int64
	reader, err := ipc.NewReader(d.data)
	if err != nil {
		return OutputResult{}, fmt.Errorf("protocol: opening Arrow IPC stream for %q: %w", begin.Output, err)
	}
	for reader.Next() {
		rec := reader.Record()
		rowsSeen += rec.NumRows()
		if handler != nil {
			if err := handler(begin.Output, rec); err != nil {
				reader.Release()
				return OutputResult{}, fmt.Errorf("protocol: handling batch for %q: %w", begin.Output, err)
			}
		}
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		reader.Release()
		return OutputResult{}, fmt.Errorf("protocol: reading Arrow IPC stream for %q: %w", begin.Output, err)
	}
	reader.Release()

	endLine, ok := d.readLine()
	if !ok {
		return OutputResult{}, &HardFailure{Output: begin.Output, Reason: "missing output_end"}
	}
	end, err := ParseOutputEnd(endLine)
	if err != nil {
		return OutputResult{}, err
	}
	if end.Output != begin.Output || end.StreamIndex != begin.StreamIndex {
		return OutputResult{}, &HardFailure{Output: begin.Output, Reason: "output_end does not match its output_begin"}
	}
	if end.RowsEmitted != rowsSeen {
		return OutputResult{}, &HardFailure{Output: begin.Output, Reason: fmt.Sprintf("rows_emitted %d does not match %d rows actually streamed", end.RowsEmitted, rowsSeen)}
	}

	d.nextStreamIndex++
	return OutputResult{Output: begin.Output, RowsEmitted: rowsSeen, StreamIndex: begin.StreamIndex}, nil
}
