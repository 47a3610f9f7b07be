// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ruleengine

// BacktestResult is one candidate path's outcome against a Rule: it
// matched the glob, and every declared field either captured a
// non-empty value (Pass) or at least one field came back empty
// (Fail) — e.g. "<year>/<month>/*.log" matching "2024//x.log" leaves
// month empty.
type BacktestResult struct {
	Path   string
	Fields map[string]string
	Pass   bool
}

// Backtest evaluates rule against every candidate path, returning one
// BacktestResult per path that matches the glob (non-matching paths
// are dropped, not scored). This is the rule-builder's "try it
// against real data" preview run over the store's
// LIKE-prefiltered candidate set before a rule is saved.
func Backtest(rule *Rule, candidates []string) ([]BacktestResult, error) {
	out := make([]BacktestResult, 0, len(candidates))
	for _, path := range candidates {
		ok, err := rule.Matches(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		fields := rule.ExtractFields(path)
		out = append(out, BacktestResult{Path: path, Fields: fields, Pass: allFieldsNonEmpty(rule.Pattern.Fields, fields)})
	}
	return out, nil
}

func allFieldsNonEmpty(declared []Field, fields map[string]string) bool {
	for _, f := range declared {
		if fields[f.Name] == "" {
			return false
		}
	}
	return true
}

// ResultFilter selects which half of a backtest's results to show —
// the rule-builder UI's "All / Pass only / Fail only" toggle.
type ResultFilter int

const (
	All ResultFilter = iota
	PassOnly
	FailOnly
)

// FilterResults applies the result filter, preserving order.
func FilterResults(results []BacktestResult, filter ResultFilter) []BacktestResult {
	if filter == All {
		return results
	}
	out := make([]BacktestResult, 0, len(results))
	for _, r := range results {
		if (filter == PassOnly) == r.Pass {
			out = append(out, r)
		}
	}
	return out
}

// DefaultPageSize is the backtest preview's scroll window, chosen to
// match the folder explorer's preview cap so the UI's viewport
// behaves consistently across both scroll surfaces.
const DefaultPageSize = 100

// Page is one scrolled window over a filtered result list: the
// visible slice itself, the indices (into the filtered list) each
// visible row corresponds to, and the scroll offset the window
// started at — the UI needs VisibleIndices to keep a stable selection
// cursor across re-filters without re-deriving it from ScrollOffset
// and len(Results).
type Page struct {
	Results        []BacktestResult
	VisibleIndices []int
	ScrollOffset   int
}

// Paginate windows results starting at scrollOffset (clamped into
// range) for up to pageSize rows.
func Paginate(results []BacktestResult, scrollOffset, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if scrollOffset > len(results) {
		scrollOffset = len(results)
	}
	end := scrollOffset + pageSize
	if end > len(results) {
		end = len(results)
	}

	visible := make([]int, 0, end-scrollOffset)
	for i := scrollOffset; i < end; i++ {
		visible = append(visible, i)
	}
	return Page{Results: results[scrollOffset:end], VisibleIndices: visible, ScrollOffset: scrollOffset}
}
