// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/casparianflow/flow/internal/queue"
	"github.com/stretchr/testify/require"
)

func TestSchemaHashDeterministicAcrossKeyOrder(t *testing.T) {
	a, err := SchemaHash([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	b, err := SchemaHash([]byte(`{"a":2,"b":1}`))
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := SchemaHash([]byte(`{"a":3,"b":1}`))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestParseHelloRejectsWrongVersion(t *testing.T) {
	_, err := ParseHello([]byte(`{"type":"hello","protocol":"9.9","parser_id":"p","parser_version":"1"}`))
	require.Error(t, err)

	h, err := ParseHello([]byte(`{"type":"hello","protocol":"0.1","parser_id":"p","parser_version":"1","capabilities":{"multi_output":true}}`))
	require.NoError(t, err)
	require.Equal(t, "p", h.ParserID)
	require.True(t, h.Capabilities["multi_output"])
}

func buildTestRecord(t *testing.T, rows []int32) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{{Name: "n", Type: arrow.PrimitiveTypes.Int32}}, nil)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues(rows, nil)
	return b.NewRecord()
}

func writeArrowStream(t *testing.T, rec arrow.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDriverHappyPath(t *testing.T) {
	rec := buildTestRecord(t, []int32{1, 2, 3})
	defer rec.Release()
	data := writeArrowStream(t, rec)

	hash, err := SchemaHash([]byte(`{"fields":["n"]}`))
	require.NoError(t, err)

	control := strings.Join([]string{
		`{"type":"hello","protocol":"0.1","parser_id":"p","parser_version":"1","capabilities":{"multi_output":true}}`,
		`{"type":"output_begin","output":"rows","schema_hash":"` + hash + `","stream_index":0}`,
		`{"type":"output_end","output":"rows","rows_emitted":3,"stream_index":0}`,
	}, "\n")

	d := NewDriver(strings.NewReader(control), bytes.NewReader(data))

	h, err := d.ReadHello()
	require.NoError(t, err)
	require.Equal(t, "p", h.ParserID)

	var seen int64
	result, err := d.ReadOutput(func(output string) (string, error) { return hash, nil }, func(output string, rec arrow.Record) error {
		seen += rec.NumRows()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "rows", result.Output)
	require.Equal(t, int64(3), result.RowsEmitted)
	require.Equal(t, int64(3), seen)
}

func TestDriverDetectsSchemaHashMismatch(t *testing.T) {
	rec := buildTestRecord(t, []int32{1})
	defer rec.Release()
	data := writeArrowStream(t, rec)

	control := strings.Join([]string{
		`{"type":"output_begin","output":"rows","schema_hash":"deadbeef","stream_index":0}`,
		`{"type":"output_end","output":"rows","rows_emitted":1,"stream_index":0}`,
	}, "\n")

	d := NewDriver(strings.NewReader(control), bytes.NewReader(data))
	_, err := d.ReadOutput(func(output string) (string, error) { return "cafef00d", nil }, nil)
	require.Error(t, err)
	var hf *HardFailure
	require.ErrorAs(t, err, &hf)
}

func TestDriverDetectsMissingOutputEnd(t *testing.T) {
	rec := buildTestRecord(t, []int32{1})
	defer rec.Release()
	data := writeArrowStream(t, rec)

	hash, err := SchemaHash([]byte(`{}`))
	require.NoError(t, err)
	control := `{"type":"output_begin","output":"rows","schema_hash":"` + hash + `","stream_index":0}`

	d := NewDriver(strings.NewReader(control), bytes.NewReader(data))
	_, err = d.ReadOutput(func(output string) (string, error) { return hash, nil }, nil)
	require.Error(t, err)
	var hf *HardFailure
	require.ErrorAs(t, err, &hf)
}

func TestDriverDetectsRowCountMismatch(t *testing.T) {
	rec := buildTestRecord(t, []int32{1, 2})
	defer rec.Release()
	data := writeArrowStream(t, rec)

	hash, err := SchemaHash([]byte(`{}`))
	require.NoError(t, err)
	control := strings.Join([]string{
		`{"type":"output_begin","output":"rows","schema_hash":"` + hash + `","stream_index":0}`,
		`{"type":"output_end","output":"rows","rows_emitted":999,"stream_index":0}`,
	}, "\n")

	d := NewDriver(strings.NewReader(control), bytes.NewReader(data))
	_, err = d.ReadOutput(func(output string) (string, error) { return hash, nil }, nil)
	require.Error(t, err)
}

func TestClassifyCompletion(t *testing.T) {
	require.Equal(t, queue.CompletionSuccess, ClassifyCompletion(false, 0))
	require.Equal(t, queue.CompletionCompletedWithWarnings, ClassifyCompletion(false, 2))
	require.Equal(t, queue.CompletionPartialSuccess, ClassifyCompletion(true, 0))
}
