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
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ptplab/ptpest/estimator"
	"github.com/ptplab/ptpest/exchange"
	"github.com/ptplab/ptpest/scorer"
)

// PipelineConfig bundles everything one analysis run needs.
type PipelineConfig struct {
	Estimator *estimator.Config
	Algos     []string // empty means all
	Metric    *scorer.Metric
	PDVWindow int
}

type algoOutput struct {
	algo      string
	estimates []*estimator.Estimate
	counters  estimator.Counters
	err       error
}

// Run executes the full pipeline over an immutable dataset: one calculator
// pass, then an independent read-only pass per algorithm, then scoring and
// aggregation. Estimators run one goroutine each; they share nothing but
// the metrics slice, which nobody writes after the calculator pass.
func Run(ctx context.Context, recs []*exchange.Record, cfg *PipelineConfig) (*Report, error) {
	if err := cfg.Estimator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator config: %w", err)
	}
	algos := cfg.Algos
	if len(algos) == 0 {
		algos = estimator.Algos()
	}
	pdvWindow := cfg.PDVWindow
	if pdvWindow == 0 {
		pdvWindow = exchange.DefaultPDVWindow
	}

	calc := exchange.NewCalculator(pdvWindow)
	metrics := calc.ComputeAll(recs)
	log.Debugf("computed delay metrics for %d records, %d invalid", len(recs), calc.Invalid())

	outputs := make([]algoOutput, len(algos))
	var wg sync.WaitGroup
	for i, algo := range algos {
		est, err := estimator.New(algo, cfg.Estimator)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(out *algoOutput, est estimator.Estimator) {
			defer wg.Done()
			out.algo = est.Algo()
			out.err = runEstimator(ctx, est, metrics, out)
			out.counters = est.Counters()
		}(&outputs[i], est)
	}
	wg.Wait()

	rep := Aggregate(len(recs), calc.Invalid())
	rep.MetricFormula = metricFormula(cfg.Metric)
	for i := range outputs {
		out := &outputs[i]
		if out.err != nil {
			return nil, fmt.Errorf("%s: %w", out.algo, out.err)
		}
		res, err := scorer.Score(out.algo, out.estimates, recs)
		if err != nil {
			return nil, err
		}
		rep.Add(out.algo, res, out.counters, out.estimates)
		if cfg.Metric != nil && !res.Summary.NoEstimates {
			offsets := make([]float64, len(out.estimates))
			for j, e := range out.estimates {
				offsets[j] = e.Offset
			}
			v, err := cfg.Metric.Evaluate(res, offsets)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", out.algo, err)
			}
			rep.Algos[out.algo].Metric = &v
		}
	}
	return rep, nil
}

// runEstimator feeds the metrics stream through one estimator. Cancellation
// is only observed between exchanges, so estimator state is never left
// partially updated.
func runEstimator(ctx context.Context, est estimator.Estimator, metrics []*exchange.Metrics, out *algoOutput) error {
	for _, m := range metrics {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e := est.Consume(m); e != nil {
			out.estimates = append(out.estimates, e)
		}
	}
	return nil
}

func metricFormula(m *scorer.Metric) string {
	if m == nil {
		return ""
	}
	return m.Formula
}
