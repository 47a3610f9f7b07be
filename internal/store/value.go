// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"fmt"
	"time"
)

// DbValue is a column value exchanged with a Backend. The concrete
// dynamic type is always one of: nil, int64, float64, string, bool,
// []byte or time.Time — the same small set both backend variants agree
// to produce and accept, so DAO code never has to branch on which
// backend it is talking to.
type DbValue = any

// DbRow is an ordered set of named column values, as returned by
// QueryAll/QueryOne/QueryOptional. Ordered (rather than a bare map) so
// RETURNING * and SELECT * preserve column order for callers that care.
type DbRow struct {
	Columns []string
	Values  []DbValue
}

// Get returns the value of the named column and whether it was present.
func (r DbRow) Get(col string) (DbValue, bool) {
	for i, c := range r.Columns {
		if c == col {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MustGet returns the value of a named column, panicking if it is
// absent. Reserved for code paths that just built or validated the row.
func (r DbRow) MustGet(col string) DbValue {
	v, ok := r.Get(col)
	if !ok {
		panic(fmt.Sprintf("store: column %q not present in row", col))
	}
	return v
}

// FromDbValue converts a DbValue to T, covering the narrow set of
// conversions the schema actually needs (numeric widening between the
// row-store's INTEGER and the columnar variant's BIGINT, nullable
// strings/times). It returns ErrTypeConversion rather than panicking so
// callers can treat it like any other escalated query-shape error.
func FromDbValue[T any](v DbValue) (T, error) {
	var zero T
	if v == nil {
		return zero, fmt.Errorf("%w: nil value for %T", ErrTypeConversion, zero)
	}

	switch p := any(&zero).(type) {
	case *int64:
		n, err := toInt64(v)
		if err != nil {
			return zero, err
		}
		*p = n
		return zero, nil
	case *int:
		n, err := toInt64(v)
		if err != nil {
			return zero, err
		}
		*p = int(n)
		return zero, nil
	case *float64:
		f, err := toFloat64(v)
		if err != nil {
			return zero, err
		}
		*p = f
		return zero, nil
	case *string:
		s, err := toString(v)
		if err != nil {
			return zero, err
		}
		*p = s
		return zero, nil
	case *bool:
		b, err := toBool(v)
		if err != nil {
			return zero, err
		}
		*p = b
		return zero, nil
	case *[]byte:
		b, ok := v.([]byte)
		if !ok {
			return zero, fmt.Errorf("%w: expected []byte, got %T", ErrTypeConversion, v)
		}
		*p = b
		return zero, nil
	case *time.Time:
		t, err := toTime(v)
		if err != nil {
			return zero, err
		}
		*p = t
		return zero, nil
	default:
		if tv, ok := v.(T); ok {
			return tv, nil
		}
		return zero, fmt.Errorf("%w: no conversion to %T from %T", ErrTypeConversion, zero, v)
	}
}

// OptionalFromDbValue is FromDbValue for nullable columns: a nil value
// yields (nil, nil) instead of an error.
func OptionalFromDbValue[T any](v DbValue) (*T, error) {
	if v == nil {
		return nil, nil
	}
	t, err := FromDbValue[T](v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toInt64(v DbValue) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		var out int64
		if _, err := fmt.Sscanf(string(n), "%d", &out); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTypeConversion, err)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", ErrTypeConversion, v)
	}
}

func toFloat64(v DbValue) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected float, got %T", ErrTypeConversion, v)
	}
}

func toString(v DbValue) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("%w: expected string, got %T", ErrTypeConversion, v)
	}
}

func toBool(v DbValue) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	default:
		return false, fmt.Errorf("%w: expected bool, got %T", ErrTypeConversion, v)
	}
}

func toTime(v DbValue) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTypeConversion, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("%w: expected time, got %T", ErrTypeConversion, v)
	}
}
