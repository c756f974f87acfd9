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

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ptplab/ptpest/exchange"
)

// SweepPoint is one window length's outcome for one algorithm.
type SweepPoint struct {
	WindowLength int      `json:"window_length"`
	MaxAbs       float64  `json:"max_abs"`
	Metric       *float64 `json:"metric,omitempty"`
	NoEstimates  bool     `json:"no_estimates"`
}

// Sweep holds per-algorithm curves of estimation quality versus window
// length, plus the best length found for each algorithm.
type Sweep struct {
	MetricFormula string                  `json:"metric_formula,omitempty"`
	Algos         map[string][]SweepPoint `json:"algos"`
	Best          map[string]int          `json:"best"`
}

// objective is what the sweep minimizes: the custom metric when one is
// configured, max|error| otherwise.
func (p *SweepPoint) objective() float64 {
	if p.Metric != nil {
		return *p.Metric
	}
	return p.MaxAbs
}

// RunSweep replays the dataset once per window length and records each
// algorithm's estimation quality. selection_k is clamped to the window
// length so short windows stay valid; ties on the objective keep the
// shortest window.
func RunSweep(ctx context.Context, recs []*exchange.Record, cfg *PipelineConfig, lengths []int) (*Sweep, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("no window lengths to sweep")
	}
	sw := &Sweep{
		MetricFormula: metricFormula(cfg.Metric),
		Algos:         map[string][]SweepPoint{},
		Best:          map[string]int{},
	}
	bestVal := map[string]float64{}
	for _, length := range lengths {
		estCfg := *cfg.Estimator
		estCfg.WindowLength = length
		if estCfg.SelectionK > length {
			estCfg.SelectionK = length
		}
		runCfg := *cfg
		runCfg.Estimator = &estCfg
		rep, err := Run(ctx, recs, &runCfg)
		if err != nil {
			return nil, fmt.Errorf("window length %d: %w", length, err)
		}
		for algo, res := range rep.Algos {
			point := SweepPoint{WindowLength: length, NoEstimates: res.Summary.NoEstimates}
			if !point.NoEstimates {
				point.MaxAbs = res.Summary.MaxAbs
				point.Metric = res.Metric
			}
			sw.Algos[algo] = append(sw.Algos[algo], point)
			if point.NoEstimates {
				continue
			}
			if v, seen := bestVal[algo]; !seen || point.objective() < v {
				bestVal[algo] = point.objective()
				sw.Best[algo] = length
			}
		}
	}
	return sw, nil
}

// WriteJSON marshals the whole sweep for external plotting.
func (s *Sweep) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// RenderTable prints one row per window length with the objective value per
// algorithm, the best length per algorithm highlighted.
func (s *Sweep) RenderTable(w io.Writer) error {
	algos := sortedKeys(s.Algos)
	if len(algos) == 0 {
		return nil
	}
	obj := "max|e|(ns)"
	if s.MetricFormula != "" {
		obj = s.MetricFormula
	}
	table := tablewriter.NewWriter(w)
	header := []string{"window"}
	for _, algo := range algos {
		header = append(header, fmt.Sprintf("%s %s", algo, obj))
	}
	table.Header(header)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	for i := range s.Algos[algos[0]] {
		row := []string{strconv.Itoa(s.Algos[algos[0]][i].WindowLength)}
		for _, algo := range algos {
			p := s.Algos[algo][i]
			if p.NoEstimates {
				row = append(row, color.YellowString("no estimates"))
				continue
			}
			cell := f(p.objective())
			if s.Best[algo] == p.WindowLength {
				cell = color.GreenString(cell)
			}
			row = append(row, cell)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func sortedKeys(m map[string][]SweepPoint) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
