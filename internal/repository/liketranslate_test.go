// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import "testing"

func TestGlobToLike(t *testing.T) {
	cases := map[string]string{
		"*.csv":          "%.csv",
		"data_*.csv":     "data\\_%.csv",
		"report_?.csv":   "report\\__.csv",
		"**/*.csv":       "%.csv",
		"data/*.csv":     "data/%.csv",
	}
	for pattern, want := range cases {
		if got := globToLike(pattern); got != want {
			t.Errorf("globToLike(%q) = %q, want %q", pattern, got, want)
		}
	}
}
