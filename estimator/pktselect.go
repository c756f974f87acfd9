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
	"sort"

	"github.com/ptplab/ptpest/exchange"
)

// PacketSelection estimates the offset from the exchanges in the window
// judged to have the least path delay, on the assumption that minimal-delay
// exchanges suffer the least asymmetry. One estimate per window, tagged with
// the window's last index.
type PacketSelection struct {
	strategy string
	k        int
	partial  bool
	win      *slidingWindow
	counters Counters
}

// NewPacketSelection builds the packet selection estimator from cfg.
func NewPacketSelection(cfg *Config) *PacketSelection {
	return &PacketSelection{
		strategy: cfg.SelectionStrategy,
		k:        cfg.SelectionK,
		partial:  cfg.PartialWindows,
		win:      newSlidingWindow(cfg.WindowLength),
	}
}

// Algo implements the Estimator interface
func (p *PacketSelection) Algo() string {
	return AlgoPacketSelection
}

// Counters implements the Estimator interface
func (p *PacketSelection) Counters() Counters {
	return p.counters
}

// Consume implements the Estimator interface
func (p *PacketSelection) Consume(m *exchange.Metrics) *Estimate {
	if !m.Valid {
		p.counters.InvalidSamples++
	}
	p.win.add(windowSample{
		index:  m.Index,
		t1:     m.T1,
		delay:  m.Delay,
		offset: m.Offset,
		valid:  m.Valid,
	})
	if !p.win.Full() && !p.partial {
		return nil
	}
	offset, ok := p.selectOffset()
	if !ok {
		p.counters.SkippedWindows++
		return nil
	}
	return &Estimate{Index: m.Index, Algo: AlgoPacketSelection, Offset: offset}
}

// selectOffset applies the configured strategy over the valid window samples.
func (p *PacketSelection) selectOffset() (float64, bool) {
	valid := make([]windowSample, 0, p.win.currentSize)
	p.win.do(func(s *windowSample) {
		if s.valid {
			valid = append(valid, *s)
		}
	})
	if len(valid) == 0 {
		return 0, false
	}
	switch p.strategy {
	case StrategyMinDelay:
		best := valid[0]
		for _, s := range valid[1:] {
			// strictly-less keeps the earliest of tied minima
			if s.delay < best.delay {
				best = s
			}
		}
		return best.offset, true
	case StrategyAvgKLowest:
		sortByDelay(valid)
		k := p.k
		if k > len(valid) {
			k = len(valid)
		}
		sum := 0.0
		for _, s := range valid[:k] {
			sum += s.offset
		}
		return sum / float64(k), true
	case StrategyMedian:
		offsets := make([]float64, len(valid))
		for i, s := range valid {
			offsets[i] = s.offset
		}
		sort.Float64s(offsets)
		l := len(offsets)
		if l%2 == 0 {
			return (offsets[l/2-1] + offsets[l/2]) / 2, true
		}
		return offsets[l/2], true
	}
	return 0, false
}

// sortByDelay orders samples by delay, breaking ties by lowest exchange
// index so that selection stays deterministic.
func sortByDelay(s []windowSample) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].delay != s[j].delay {
			return s[i].delay < s[j].delay
		}
		return s[i].index < s[j].index
	})
}
