// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCustomGlobExtractsFields(t *testing.T) {
	p, diag := ParseCustomGlob("logs/<year>/<month>/*.log")
	require.Nil(t, diag)
	require.Equal(t, "logs/*/*/*.log", p.GlobPattern)
	require.Len(t, p.Fields, 2)
	require.Equal(t, "year", p.Fields[0].Name)
	require.Equal(t, 5, p.Fields[0].Offset)
	require.Equal(t, "month", p.Fields[1].Name)
	require.Equal(t, 12, p.Fields[1].Offset)
}

func TestParseCustomGlobRejectsEmpty(t *testing.T) {
	_, diag := ParseCustomGlob("")
	require.NotNil(t, diag)
	require.Equal(t, 0, diag.Position)
}

func TestParseCustomGlobRejectsUnterminatedCapture(t *testing.T) {
	_, diag := ParseCustomGlob("logs/<year/*.log")
	require.NotNil(t, diag)
	require.Equal(t, 5, diag.Position)
}

func TestParseCustomGlobRejectsDuplicateField(t *testing.T) {
	_, diag := ParseCustomGlob("<x>/<x>.log")
	require.NotNil(t, diag)
}

func TestRuleMatchesAndExtracts(t *testing.T) {
	p, diag := ParseCustomGlob("logs/<year>/<month>/*.log")
	require.Nil(t, diag)
	rule, err := NewRule(p, nil)
	require.NoError(t, err)

	ok, err := rule.Matches("logs/2024/03/run.log")
	require.NoError(t, err)
	require.True(t, ok)

	fields := rule.ExtractFields("logs/2024/03/run.log")
	require.Equal(t, "2024", fields["year"])
	require.Equal(t, "03", fields["month"])

	ok, err = rule.Matches("other/2024/03/run.log")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRuleExclusions(t *testing.T) {
	p, diag := ParseCustomGlob("<env>/**/*.csv")
	require.Nil(t, diag)
	rule, err := NewRule(p, []string{"**/tmp/**"})
	require.NoError(t, err)

	ok, err := rule.Matches("prod/region/data.csv")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rule.Matches("prod/tmp/data.csv")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBacktestPartitionsPassFail(t *testing.T) {
	p, diag := ParseCustomGlob("logs/<year>/<month>/*.log")
	require.Nil(t, diag)
	rule, err := NewRule(p, nil)
	require.NoError(t, err)

	candidates := []string{
		"logs/2024/03/run.log",
		"logs/2024//run.log",
		"other/ignored.log",
	}
	results, err := Backtest(rule, candidates)
	require.NoError(t, err)
	require.Len(t, results, 2)

	passes := FilterResults(results, PassOnly)
	require.Len(t, passes, 1)
	require.Equal(t, "logs/2024/03/run.log", passes[0].Path)

	fails := FilterResults(results, FailOnly)
	require.Len(t, fails, 1)
	require.Equal(t, "logs/2024//run.log", fails[0].Path)
}

func TestPaginateVisibleIndicesAndOffset(t *testing.T) {
	results := make([]BacktestResult, 10)
	for i := range results {
		results[i] = BacktestResult{Path: string(rune('a' + i))}
	}

	page := Paginate(results, 3, 4)
	require.Equal(t, 3, page.ScrollOffset)
	require.Equal(t, []int{3, 4, 5, 6}, page.VisibleIndices)
	require.Len(t, page.Results, 4)
	require.Equal(t, results[3], page.Results[0])

	tail := Paginate(results, 8, 4)
	require.Equal(t, []int{8, 9}, tail.VisibleIndices)
	require.Len(t, tail.Results, 2)
}

func TestEvaluateTagConditions(t *testing.T) {
	conds := []TagCondition{
		{Expression: `year >= "2023"`, Tag: "recent"},
		{Expression: `env == "prod"`, Tag: "production"},
		{Expression: `this is not valid expr`, Tag: "broken"},
	}
	fields := map[string]string{"year": "2024", "env": "prod"}

	tags := EvaluateTagConditions(conds, fields)
	require.ElementsMatch(t, []string{"recent", "production"}, tags)
}

func TestParseTagConditionsRoundTrip(t *testing.T) {
	conds, err := ParseTagConditions(`[{"expression":"year >= \"2023\"","tag":"recent"}]`)
	require.NoError(t, err)
	require.Len(t, conds, 1)
	require.Equal(t, "recent", conds[0].Tag)

	empty, err := ParseTagConditions("")
	require.NoError(t, err)
	require.Nil(t, empty)
}
