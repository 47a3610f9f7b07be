// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import "strings"

// globToLike translates a glob pattern into a SQL LIKE pattern that is
// a prefilter. For a pattern with no "**/" after its start, any path
// matched by the glob is also matched by the translation; a "**/" is
// dropped wherever it stands, so "logs/**/x.csv" becomes "logs/x.csv"
// and does not match "logs/a/x.csv". The rule engine (internal/ruleengine)
// re-validates candidates against true glob semantics; this is never
// itself the final match decision.
//
// Rules, applied left to right over the input runes:
//   - "**/"  -> "" (consumed, contributes nothing)
//   - "**"   -> "%"
//   - "*"    -> "%"
//   - "?"    -> "_"
//   - "_"    -> "\\_"  (escape a literal underscore)
//   - "%"    -> "%"    (a literal percent is already what LIKE wants)
//   - "\\x"  -> "x"    (a backslash-escaped glob metachar becomes literal)
// GlobToLike is the exported entry point other packages (the folder
// explorer, the rule engine) use to build a LIKE prefilter from a
// user-typed glob pattern.
func GlobToLike(pattern string) string {
	return globToLike(pattern)
}

func globToLike(pattern string) string {
	var sb strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			}
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				if i+2 < len(runes) && runes[i+2] == '/' {
					i += 2 // consume "**/" entirely
					continue
				}
				i++ // consume "**" -> "%"
				sb.WriteString("%")
				continue
			}
			sb.WriteString("%")
		case '?':
			sb.WriteString("_")
		case '_':
			sb.WriteString("\\_")
		default:
			sb.WriteRune(runes[i])
		}
	}
	return sb.String()
}
