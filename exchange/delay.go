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

package exchange

import (
	"math"
)

// Metrics is everything derived from a single exchange's four timestamps.
// Offset here is the raw two-way measurement, which carries half the path
// asymmetry as error; that is the dominant noise source for all estimators.
type Metrics struct {
	Index    uint64
	T1       float64 // master time base carried through for regression/kalman
	FwdDelay float64 // t2 - t1, includes the clock offset
	BwdDelay float64 // t4 - t3, includes the negated clock offset
	RTT      float64 // (t2 - t1) + (t4 - t3), offset cancels
	Delay    float64 // ((t2 − t1) + (t4 − t3)) / 2, symmetric-path one-way delay
	Offset   float64 // ((t2 − t1) − (t4 − t3)) / 2, two-way offset measurement
	PDV      float64 // deviation of Delay from the trailing-window minimum
	Valid    bool
}

// Calculator derives Metrics from Records. The only cross-record state is
// the trailing delay window used as the PDV reference.
type Calculator struct {
	delays  []float64 // trailing valid delays, circular
	head    int
	count   int
	invalid uint64
}

// DefaultPDVWindow is the trailing window used for the PDV minimum-delay
// reference unless configured otherwise.
const DefaultPDVWindow = 64

// NewCalculator returns a Calculator with a trailing PDV reference window
// of the given length.
func NewCalculator(pdvWindow int) *Calculator {
	if pdvWindow < 1 {
		pdvWindow = 1
	}
	return &Calculator{delays: make([]float64, pdvWindow)}
}

func (c *Calculator) push(delay float64) {
	c.delays[c.head] = delay
	c.head = (c.head + 1) % len(c.delays)
	if c.count < len(c.delays) {
		c.count++
	}
}

func (c *Calculator) minDelay() float64 {
	m := math.Inf(1)
	for i := 0; i < c.count; i++ {
		if c.delays[i] < m {
			m = c.delays[i]
		}
	}
	return m
}

func valid(rec *Record) bool {
	for _, t := range []float64{rec.T1, rec.T2, rec.T3, rec.T4} {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return false
		}
	}
	// t1 < t4 and t2 < t3 hold within one clock's domain regardless of offset
	return rec.T4 >= rec.T1 && rec.T3 >= rec.T2
}

// Compute produces the Metrics for one record. Invalid records are marked
// and counted, never fatal; they do not update the PDV reference.
func (c *Calculator) Compute(rec *Record) *Metrics {
	m := &Metrics{Index: rec.Index, T1: rec.T1}
	if !valid(rec) {
		c.invalid++
		m.PDV = math.NaN()
		return m
	}
	m.Valid = true
	m.FwdDelay = rec.T2 - rec.T1
	m.BwdDelay = rec.T4 - rec.T3
	m.RTT = m.FwdDelay + m.BwdDelay
	m.Delay = m.RTT / 2
	m.Offset = (m.FwdDelay - m.BwdDelay) / 2
	if c.count > 0 {
		m.PDV = m.Delay - c.minDelay()
	}
	c.push(m.Delay)
	return m
}

// ComputeAll runs the calculator over a whole dataset in order.
func (c *Calculator) ComputeAll(recs []*Record) []*Metrics {
	out := make([]*Metrics, len(recs))
	for i, rec := range recs {
		out[i] = c.Compute(rec)
	}
	return out
}

// Invalid returns how many records were excluded so far.
func (c *Calculator) Invalid() uint64 {
	return c.invalid
}
