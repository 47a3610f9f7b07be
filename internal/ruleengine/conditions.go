// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ruleengine

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
)

// TagCondition is one extraction rule's conditional tag assignment:
// when Expression evaluates truthy against the rule's extracted
// fields, Tag is applied to the file. Expression is a boolean
// expr-lang expression over the field names — e.g. `year >= "2020"`
// or `env == "prod" && region != ""`.
type TagCondition struct {
	Expression string `json:"expression"`
	Tag        string `json:"tag"`
}

// ParseTagConditions decodes an ExtractionRule.TagConditionsJSON blob.
func ParseTagConditions(tagConditionsJSON string) ([]TagCondition, error) {
	if tagConditionsJSON == "" {
		return nil, nil
	}
	var conds []TagCondition
	if err := json.Unmarshal([]byte(tagConditionsJSON), &conds); err != nil {
		return nil, fmt.Errorf("decoding tag conditions: %w", err)
	}
	return conds, nil
}

// EvaluateTagConditions compiles and runs each condition's expression
// against fields (a rule's extracted capture values, all strings),
// returning the tags of every condition that evaluated true. A
// condition whose expression doesn't compile or doesn't evaluate to a
// bool is skipped rather than aborting the rest — one malformed
// condition shouldn't block every other condition on the same rule
// from applying.
func EvaluateTagConditions(conditions []TagCondition, fields map[string]string) []string {
	env := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		env[k] = v
	}

	var tags []string
	for _, c := range conditions {
		program, err := expr.Compile(c.Expression, expr.Env(env), expr.AsBool())
		if err != nil {
			continue
		}
		result, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			tags = append(tags, c.Tag)
		}
	}
	return tags
}
