// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package protocol implements the host/parser wire contract:
// newline-delimited JSON control frames on the parser's stderr bracket
// one Arrow IPC stream per output on its stdout. The host drives the
// subprocess; this package holds the frame shapes, schema hashing, and
// the sequencing/verification logic independent of process plumbing.
package protocol

import (
	"encoding/json"
	"fmt"
)

const ProtocolVersion = "0.1"

// frameEnvelope is decoded first to dispatch on "type" before the full
// frame shape is parsed.
type frameEnvelope struct {
	Type string `json:"type"`
}

// HelloFrame is the parser's first control frame.
type HelloFrame struct {
	Type         string          `json:"type"`
	Protocol     string          `json:"protocol"`
	ParserID     string          `json:"parser_id"`
	ParserVersion string         `json:"parser_version"`
	Capabilities map[string]bool `json:"capabilities"`
}

// OutputBeginFrame precedes one output's Arrow IPC stream.
type OutputBeginFrame struct {
	Type        string `json:"type"`
	Output      string `json:"output"`
	SchemaHash  string `json:"schema_hash"`
	StreamIndex int    `json:"stream_index"`
}

// OutputEndFrame follows one output's Arrow IPC stream.
type OutputEndFrame struct {
	Type        string `json:"type"`
	Output      string `json:"output"`
	RowsEmitted int64  `json:"rows_emitted"`
	StreamIndex int    `json:"stream_index"`
}

// ParseHello decodes and validates a hello frame, rejecting a
// protocol version the host does not speak.
func ParseHello(line []byte) (HelloFrame, error) {
	var f HelloFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return HelloFrame{}, fmt.Errorf("protocol: decoding hello frame: %w", err)
	}
	if f.Type != "hello" {
		return HelloFrame{}, fmt.Errorf("protocol: expected hello frame, got %q", f.Type)
	}
	if f.Protocol != ProtocolVersion {
		return HelloFrame{}, fmt.Errorf("protocol: unsupported protocol version %q (want %q)", f.Protocol, ProtocolVersion)
	}
	return f, nil
}

// ParseOutputBegin decodes and validates an output_begin frame.
func ParseOutputBegin(line []byte) (OutputBeginFrame, error) {
	var f OutputBeginFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return OutputBeginFrame{}, fmt.Errorf("protocol: decoding output_begin frame: %w", err)
	}
	if f.Type != "output_begin" {
		return OutputBeginFrame{}, fmt.Errorf("protocol: expected output_begin frame, got %q", f.Type)
	}
	return f, nil
}

// ParseOutputEnd decodes and validates an output_end frame.
func ParseOutputEnd(line []byte) (OutputEndFrame, error) {
	var f OutputEndFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return OutputEndFrame{}, fmt.Errorf("protocol: decoding output_end frame: %w", err)
	}
	if f.Type != "output_end" {
		return OutputEndFrame{}, fmt.Errorf("protocol: expected output_end frame, got %q", f.Type)
	}
	return f, nil
}

// FrameType peeks at a line's discriminator without fully decoding it,
// for callers that need to branch before picking a Parse* function.
func FrameType(line []byte) (string, error) {
	var e frameEnvelope
	if err := json.Unmarshal(line, &e); err != nil {
		return "", fmt.Errorf("protocol: decoding frame envelope: %w", err)
	}
	return e.Type, nil
}
