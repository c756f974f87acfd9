/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scorer

import (
	"fmt"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MetricHelp is a help message used by the metric flag in main
const MetricHelp = `When composing a custom -metric formula, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  error (list of signed estimation errors, in ns)
  abserror (list of absolute estimation errors, in ns)
  estimate (list of offset estimates, in ns)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values) - mean of a list of values
  variance(values) - variance of a list of values
  stddev(values) - standard deviation of a list of values
  p99(values) - 99th percentile of a list of values
  max(values) - maximum of a list of values`

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

func p99(input []float64) float64 {
	sorted := make([]float64, len(input))
	copy(sorted, input)
	sort.Float64s(sorted)
	p1 := len(sorted) / 100 * 1
	return sorted[len(sorted)-1-p1]
}

var supportedVariables = []string{
	"error",
	"abserror",
	"estimate",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val := args[0].(float64)
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("mean: wrong number of arguments: want 1, got %d", len(args))
		}
		vals := args[0].([]float64)
		return mean(vals), nil
	},
	"variance": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("variance: wrong number of arguments: want 1, got %d", len(args))
		}
		vals := args[0].([]float64)
		return variance(vals), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("stddev: wrong number of arguments: want 1, got %d", len(args))
		}
		vals := args[0].([]float64)
		return stddev(vals), nil
	},
	"p99": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("p99: wrong number of arguments: want 1, got %d", len(args))
		}
		vals := args[0].([]float64)
		if len(vals) == 0 {
			return nil, fmt.Errorf("p99: no values")
		}
		return p99(vals), nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("max: wrong number of arguments: want 1, got %d", len(args))
		}
		vals := args[0].([]float64)
		if len(vals) == 0 {
			return nil, fmt.Errorf("max: no values")
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	},
}

// Metric is a user-supplied expression evaluated per algorithm over its
// error series, in both string and parsed forms.
type Metric struct {
	Formula string
	expr    *govaluate.EvaluableExpression
}

// NewMetric parses the formula and rejects unknown variables up front so a
// bad formula fails at startup, not after a long analysis run.
func NewMetric(formula string) (*Metric, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(formula, functions)
	if err != nil {
		return nil, fmt.Errorf("evaluating metric formula: %w", err)
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return &Metric{Formula: formula, expr: expr}, nil
}

// Evaluate computes the metric over one algorithm's scored result.
func (m *Metric) Evaluate(res *Result, estimates []float64) (float64, error) {
	errs := make([]float64, len(res.Errors))
	absErrs := make([]float64, len(res.Errors))
	for i, e := range res.Errors {
		errs[i] = e.Error
		absErrs[i] = math.Abs(e.Error)
	}
	params := map[string]interface{}{
		"error":    errs,
		"abserror": absErrs,
		"estimate": estimates,
	}
	v, err := m.expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("metric %q did not evaluate to a number", m.Formula)
	}
	return f, nil
}
