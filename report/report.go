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

// Package report merges per-algorithm scoring results and sample accounting
// into one comparative structure for rendering and export.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ptplab/ptpest/estimator"
	"github.com/ptplab/ptpest/scorer"
)

// AlgoResult is everything the pipeline produced for one algorithm.
type AlgoResult struct {
	Summary   scorer.Summary        `json:"summary"`
	Counters  estimator.Counters    `json:"counters"`
	Metric    *float64              `json:"metric,omitempty"` // custom metric value, when configured
	Estimates []*estimator.Estimate `json:"estimates"`
	Errors    []scorer.ErrorRecord  `json:"errors"`
}

// Report is the final comparative structure keyed by algorithm identifier.
type Report struct {
	TotalRecords   int                    `json:"total_records"`
	InvalidRecords uint64                 `json:"invalid_records"`
	MetricFormula  string                 `json:"metric_formula,omitempty"`
	Algos          map[string]*AlgoResult `json:"algos"`
}

// Aggregate builds the report from per-algorithm results. Pure merging, no
// numerical work beyond what the inputs carry.
func Aggregate(totalRecords int, invalidRecords uint64) *Report {
	return &Report{
		TotalRecords:   totalRecords,
		InvalidRecords: invalidRecords,
		Algos:          map[string]*AlgoResult{},
	}
}

// Add attaches one algorithm's results to the report.
func (r *Report) Add(algo string, res *scorer.Result, counters estimator.Counters, estimates []*estimator.Estimate) {
	r.Algos[algo] = &AlgoResult{
		Summary:   res.Summary,
		Counters:  counters,
		Estimates: estimates,
		Errors:    res.Errors,
	}
}

// sortedAlgos returns algorithm ids in stable output order.
func (r *Report) sortedAlgos() []string {
	algos := make([]string, 0, len(r.Algos))
	for algo := range r.Algos {
		algos = append(algos, algo)
	}
	sort.Strings(algos)
	return algos
}

// best returns the algorithm with the lowest max|error| among those that
// produced estimates, or "" when none did.
func (r *Report) best() string {
	best := ""
	bestVal := math.Inf(1)
	for _, algo := range r.sortedAlgos() {
		res := r.Algos[algo]
		if res.Summary.NoEstimates {
			continue
		}
		if res.Summary.MaxAbs < bestVal {
			bestVal = res.Summary.MaxAbs
			best = algo
		}
	}
	return best
}

// WriteJSON marshals the whole report, including the estimate and error
// time series, for external rendering and plotting.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderTable prints the comparative summary. The algorithm with the lowest
// max|error| is highlighted; algorithms with no estimates are flagged.
func (r *Report) RenderTable(w io.Writer) error {
	fmt.Fprintf(w, "%d records, %d invalid\n", r.TotalRecords, r.InvalidRecords)
	table := tablewriter.NewWriter(w)
	header := []string{"algo", "estimates", "mean(ns)", "stddev(ns)", "max|e|(ns)", "p50(ns)", "p99(ns)", "freq(ppb)", "skipped"}
	if r.MetricFormula != "" {
		header = append(header, r.MetricFormula)
	}
	table.Header(header)
	best := r.best()
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	for _, algo := range r.sortedAlgos() {
		res := r.Algos[algo]
		name := algo
		if algo == best {
			name = color.GreenString(algo)
		}
		if res.Summary.NoEstimates {
			row := []string{name, color.YellowString("no estimates"), "", "", "", "", "", "", ""}
			if r.MetricFormula != "" {
				row = append(row, "")
			}
			if err := table.Append(row); err != nil {
				return err
			}
			continue
		}
		freq := ""
		if res.Summary.FreqPPB != nil {
			freq = f(*res.Summary.FreqPPB)
		}
		skipped := res.Counters.SkippedWindows + res.Counters.SkippedUpdates
		row := []string{
			name,
			strconv.Itoa(res.Summary.Count),
			f(res.Summary.Mean),
			f(res.Summary.Stddev),
			f(res.Summary.MaxAbs),
			f(res.Summary.P50),
			f(res.Summary.P99),
			freq,
			strconv.FormatUint(skipped, 10),
		}
		if r.MetricFormula != "" {
			if res.Metric != nil {
				row = append(row, f(*res.Metric))
			} else {
				row = append(row, "")
			}
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteEstimatesCSV exports all algorithms' estimate series as CSV for
// plotting collaborators, full precision preserved.
func (r *Report) WriteEstimatesCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"idx", "algo", "offset", "error"}); err != nil {
		return err
	}
	for _, algo := range r.sortedAlgos() {
		res := r.Algos[algo]
		errByIndex := make(map[uint64]float64, len(res.Errors))
		for _, e := range res.Errors {
			errByIndex[e.Index] = e.Error
		}
		for _, est := range res.Estimates {
			row := []string{
				strconv.FormatUint(est.Index, 10),
				algo,
				strconv.FormatFloat(est.Offset, 'f', -1, 64),
				strconv.FormatFloat(errByIndex[est.Index], 'f', -1, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
