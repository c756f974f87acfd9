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

// Package scorer pairs each estimate with the ground-truth offset of the
// same exchange index and condenses the signed errors into per-algorithm
// summary statistics.
package scorer

import (
	"fmt"
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/eclesh/welford"

	"github.com/ptplab/ptpest/estimator"
	"github.com/ptplab/ptpest/exchange"
)

// maxTrackableErrorNS bounds the error-magnitude histogram; larger errors
// are clamped to this value for percentile purposes.
const maxTrackableErrorNS = int64(10 * 1e9)

// ErrorRecord is one signed estimation error: estimate minus truth at the
// same exchange index.
type ErrorRecord struct {
	Index uint64  `json:"index"`
	Algo  string  `json:"algo"`
	Error float64 `json:"error"`
}

// Summary condenses one algorithm's error series. When the algorithm
// produced no estimates only Algo and NoEstimates are meaningful. FreqPPB is
// the mean of the algorithm's frequency-offset estimates, nil for algorithms
// that do not model skew.
type Summary struct {
	Algo        string   `json:"algo"`
	Count       int      `json:"count"`
	Mean        float64  `json:"mean"`
	Stddev      float64  `json:"stddev"`
	MaxAbs      float64  `json:"max_abs"`
	P50         float64  `json:"p50"`
	P99         float64  `json:"p99"`
	FreqPPB     *float64 `json:"freq_ppb,omitempty"`
	NoEstimates bool     `json:"no_estimates"`
}

// Result is one algorithm's scored output: the order-preserving error
// series plus its summary.
type Result struct {
	Errors  []ErrorRecord
	Summary Summary
}

// Score pairs each estimate with the truth offset of the matching index.
// Pairing is strictly by index; an estimate for an index the dataset does
// not contain means the pipeline is misaligned and is reported as an error.
func Score(algo string, estimates []*estimator.Estimate, recs []*exchange.Record) (*Result, error) {
	if len(estimates) == 0 {
		return &Result{Summary: Summary{Algo: algo, NoEstimates: true}}, nil
	}
	truth := make(map[uint64]float64, len(recs))
	for _, rec := range recs {
		truth[rec.Index] = rec.TruthOffset
	}
	res := &Result{Errors: make([]ErrorRecord, 0, len(estimates))}
	stats := welford.New()
	freqStats := welford.New()
	freqSamples := 0
	hist := hdrhistogram.New(1, maxTrackableErrorNS, 3)
	maxAbs := 0.0
	for _, est := range estimates {
		truthOffset, ok := truth[est.Index]
		if !ok {
			return nil, fmt.Errorf("%s: no truth value for estimate at index %d", algo, est.Index)
		}
		e := est.Offset - truthOffset
		res.Errors = append(res.Errors, ErrorRecord{Index: est.Index, Algo: algo, Error: e})
		stats.Add(e)
		if math.Abs(e) > maxAbs {
			maxAbs = math.Abs(e)
		}
		v := int64(math.Round(math.Abs(e)))
		if v > maxTrackableErrorNS {
			v = maxTrackableErrorNS
		}
		if err := hist.RecordValue(v); err != nil {
			return nil, fmt.Errorf("%s: recording error sample: %w", algo, err)
		}
		if est.Skew != nil {
			freqStats.Add(*est.Skew)
			freqSamples++
		}
	}
	res.Summary = Summary{
		Algo:   algo,
		Count:  len(res.Errors),
		Mean:   stats.Mean(),
		Stddev: stats.Stddev(),
		MaxAbs: maxAbs,
		P50:    float64(hist.ValueAtQuantile(50)),
		P99:    float64(hist.ValueAtQuantile(99)),
	}
	if freqSamples > 0 {
		freq := freqStats.Mean()
		res.Summary.FreqPPB = &freq
	}
	return res, nil
}
