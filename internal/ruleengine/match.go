// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ruleengine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is a compiled custom glob ready to test candidate paths. The
// store's LIKE prefilter (repository.GlobToLike) only narrows the SQL
// scan; Rule.Matches is the true-glob re-validation every candidate
// row must still pass, since LIKE's "%"/"_" wildcards are a coarser
// approximation of "*"/"**" glob semantics.
type Rule struct {
	Pattern    ParsedPattern
	Exclusions []string

	capture *regexp.Regexp
}

// NewRule compiles pattern's capture regex once so Matches and
// ExtractFields don't re-derive it per call.
func NewRule(pattern ParsedPattern, exclusions []string) (*Rule, error) {
	re, err := captureRegexp(pattern.Source)
	if err != nil {
		return nil, err
	}
	return &Rule{Pattern: pattern, Exclusions: exclusions, capture: re}, nil
}

// Matches reports whether relPath satisfies the rule's glob pattern
// and none of its exclusions. Exclusions are themselves full glob
// patterns (e.g. "tmp/**" or a literal leaf name) evaluated against
// the same relative path.
func (r *Rule) Matches(relPath string) (bool, error) {
	ok, err := doublestar.Match(r.Pattern.GlobPattern, relPath)
	if err != nil {
		return false, fmt.Errorf("invalid glob pattern %q: %w", r.Pattern.GlobPattern, err)
	}
	if !ok {
		return false, nil
	}
	for _, excl := range r.Exclusions {
		excluded, err := doublestar.Match(excl, relPath)
		if err != nil {
			return false, fmt.Errorf("invalid exclusion pattern %q: %w", excl, err)
		}
		if excluded {
			return false, nil
		}
	}
	return true, nil
}

// ExtractFields recovers each declared field's captured substring from
// relPath, or nil if relPath doesn't match the pattern's capture
// regex. doublestar has no notion of named captures, so field
// extraction is done with a regexp built directly from the pattern's
// original (un-flattened) source by captureRegexp.
func (r *Rule) ExtractFields(relPath string) map[string]string {
	m := r.capture.FindStringSubmatch(relPath)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(r.Pattern.Fields))
	for i, name := range r.capture.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out
}

// captureRegexp translates a custom glob pattern (angle-bracket named
// captures, "**", "*", "?", literal runs) into an equivalent anchored
// regexp with one named group per field. "**" spans directory
// separators, "*" and "?" don't.
func captureRegexp(pattern string) (*regexp.Regexp, error) {
	var out strings.Builder
	out.WriteString("^")

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch {
		case c == '<':
			end := strings.IndexByte(pattern[i:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated '<' in pattern %q", pattern)
			}
			name := pattern[i+1 : i+end]
			out.WriteString(fmt.Sprintf("(?P<%s>[^/]*)", name))
			i += end + 1
		case c == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			out.WriteString("(?:.*)")
			i += 2
		case c == '*':
			out.WriteString("[^/]*")
			i++
		case c == '?':
			out.WriteString("[^/]")
			i++
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	out.WriteString("$")
	return regexp.Compile(out.String())
}
