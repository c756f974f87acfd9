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

package estimator

import (
	"math"

	"github.com/ptplab/ptpest/exchange"
)

// LeastSquares fits offset(t) = a + b*t over the window's (t1, two-way
// offset) pairs and reports the fit evaluated at the window's last
// timestamp. The slope doubles as a frequency-offset estimate: the drift of
// the measured offset against master time is the slave's fractional
// frequency error, reported alongside each estimate in ppb.
type LeastSquares struct {
	partial  bool
	win      *slidingWindow
	counters Counters
}

// NewLeastSquares builds the least-squares estimator from cfg.
func NewLeastSquares(cfg *Config) *LeastSquares {
	return &LeastSquares{
		partial: cfg.PartialWindows,
		win:     newSlidingWindow(cfg.WindowLength),
	}
}

// Algo implements the Estimator interface
func (l *LeastSquares) Algo() string {
	return AlgoLeastSquares
}

// Counters implements the Estimator interface
func (l *LeastSquares) Counters() Counters {
	return l.counters
}

// Consume implements the Estimator interface
func (l *LeastSquares) Consume(m *exchange.Metrics) *Estimate {
	if !m.Valid {
		l.counters.InvalidSamples++
	}
	l.win.add(windowSample{
		index:  m.Index,
		t1:     m.T1,
		offset: m.Offset,
		valid:  m.Valid,
	})
	if !l.win.Full() && !l.partial {
		return nil
	}
	offset, slope, ok := l.fit()
	if !ok {
		l.counters.SkippedWindows++
		return nil
	}
	// the fitted slope is the fractional frequency offset in ns/ns
	skew := slope * 1e9
	return &Estimate{Index: m.Index, Algo: AlgoLeastSquares, Offset: offset, Skew: &skew}
}

// fit solves the centered OLS and evaluates the line at the newest valid
// timestamp. Timestamps are referenced to the window's first valid sample
// before accumulating: epoch-scale nanosecond counts have ULPs in the
// hundreds of ns, so sums over raw t1 values lose the window-relative
// precision the fit depends on. Degenerate windows (fewer than 2 valid
// samples, constant timestamps, or a non-finite result) report !ok.
func (l *LeastSquares) fit() (float64, float64, bool) {
	var n int
	var tRef, sumT, sumX float64
	var lastT float64
	first := true
	l.win.do(func(s *windowSample) {
		if !s.valid {
			return
		}
		if first {
			tRef = s.t1
			first = false
		}
		n++
		sumT += s.t1 - tRef
		sumX += s.offset
		lastT = s.t1 - tRef
	})
	if n < 2 {
		return 0, 0, false
	}
	meanT := sumT / float64(n)
	meanX := sumX / float64(n)
	var stt, stx float64
	l.win.do(func(s *windowSample) {
		if !s.valid {
			return
		}
		dt := (s.t1 - tRef) - meanT
		stt += dt * dt
		stx += dt * (s.offset - meanX)
	})
	if stt == 0 {
		return 0, 0, false
	}
	b := stx / stt
	est := meanX + b*(lastT-meanT)
	if math.IsNaN(est) || math.IsInf(est, 0) {
		return 0, 0, false
	}
	return est, b, true
}
