// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ruleengine implements the rule-builder engine: custom
// glob parsing with named captures, true-glob re-validation of the
// store's LIKE-prefiltered candidates, exclusion evaluation, backtest
// scoring, and expr-lang-driven conditional tagging.
package ruleengine

import (
	"fmt"
	"strings"
)

// Field is one named capture declared in a custom pattern — e.g.
// "logs/<year>/<month>/*.log" declares Field{Name: "year", Offset: 5}
// and Field{Name: "month", Offset: 12} (byte offsets into the original
// pattern string, for the UI to highlight).
type Field struct {
	Name   string
	Offset int
}

// ParsedPattern is parse_custom_glob's success result: glob_pattern
// with every "<name>" segment replaced by "*", plus the declared
// fields in left-to-right order.
type ParsedPattern struct {
	Source      string
	GlobPattern string
	Fields      []Field
}

// Diagnostic is parse_custom_glob's failure result — a message and the
// byte offset in the original pattern the problem was found at.
type Diagnostic struct {
	Message  string
	Position int
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s (at byte %d)", d.Message, d.Position)
}

// ParseCustomGlob parses a pattern that may contain angle-bracket named
// captures like "<year>". An empty pattern is rejected. An unterminated
// "<" is a diagnostic at the offset of the unmatched bracket. Two
// fields with the same name is rejected — later extraction would be
// ambiguous about which capture to use.
func ParseCustomGlob(pattern string) (ParsedPattern, *Diagnostic) {
	if pattern == "" {
		return ParsedPattern{}, &Diagnostic{Message: "pattern must not be empty", Position: 0}
	}

	var glob strings.Builder
	var fields []Field
	seen := map[string]bool{}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		if c != '<' {
			glob.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(pattern[i:], '>')
		if end < 0 {
			return ParsedPattern{}, &Diagnostic{Message: "unterminated '<' in named capture", Position: i}
		}
		name := pattern[i+1 : i+end]
		if name == "" {
			return ParsedPattern{}, &Diagnostic{Message: "named capture must not be empty (<>)", Position: i}
		}
		if seen[name] {
			return ParsedPattern{}, &Diagnostic{Message: fmt.Sprintf("duplicate named capture <%s>", name), Position: i}
		}
		seen[name] = true

		fields = append(fields, Field{Name: name, Offset: i})
		glob.WriteString("*")
		i += end + 1
	}

	return ParsedPattern{Source: pattern, GlobPattern: glob.String(), Fields: fields}, nil
}
