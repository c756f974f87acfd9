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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSymmetricExchange(t *testing.T) {
	// master and slave agree (offset 0), both paths take 1000ns
	c := NewCalculator(DefaultPDVWindow)
	m := c.Compute(&Record{
		Index: 0,
		T1:    0,
		T2:    1000,
		T3:    101000,
		T4:    102000,
	})
	require.True(t, m.Valid)
	require.Equal(t, 1000.0, m.FwdDelay)
	require.Equal(t, 1000.0, m.BwdDelay)
	require.Equal(t, 2000.0, m.RTT)
	require.Equal(t, 1000.0, m.Delay)
	require.Equal(t, 0.0, m.Offset)
}

func TestComputeOffsetExchange(t *testing.T) {
	// slave runs 500ns ahead, symmetric 1000ns paths: t2/t3 shift by +500
	c := NewCalculator(DefaultPDVWindow)
	m := c.Compute(&Record{
		Index: 0,
		T1:    0,
		T2:    1500,
		T3:    101500,
		T4:    102000,
	})
	require.True(t, m.Valid)
	require.Equal(t, 1000.0, m.Delay)
	require.Equal(t, 500.0, m.Offset)
}

func TestComputeDelayNonNegativeWithZeroAsymmetry(t *testing.T) {
	// under the symmetric-path assumption delay stays non-negative for any
	// offset as long as t1 < t4 within the master's domain
	c := NewCalculator(DefaultPDVWindow)
	for _, offset := range []float64{-1e6, -500, 0, 500, 1e6} {
		m := c.Compute(&Record{
			T1: 0,
			T2: 1000 + offset,
			T3: 101000 + offset,
			T4: 102000,
		})
		require.True(t, m.Valid)
		require.GreaterOrEqual(t, m.Delay, 0.0)
	}
}

func TestComputeInvalidRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"t4 before t1", Record{T1: 1000, T2: 2000, T3: 3000, T4: 500}},
		{"t3 before t2", Record{T1: 0, T2: 2000, T3: 1000, T4: 3000}},
		{"NaN timestamp", Record{T1: 0, T2: math.NaN(), T3: 1000, T4: 2000}},
		{"infinite timestamp", Record{T1: 0, T2: 1000, T3: math.Inf(1), T4: 2000}},
	}
	c := NewCalculator(DefaultPDVWindow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := c.Compute(&tt.rec)
			require.False(t, m.Valid)
		})
	}
	require.Equal(t, uint64(len(tests)), c.Invalid())
}

func TestPDVAgainstTrailingMinimum(t *testing.T) {
	c := NewCalculator(4)
	// symmetric paths of the given delay with a 1000ns turnaround, so that
	// every sample satisfies t2 <= t3 and t1 <= t4 whatever the delay
	mk := func(idx uint64, delay float64) *Record {
		return &Record{Index: idx, T1: 0, T2: delay, T3: delay + 1000, T4: 2*delay + 1000}
	}
	m := c.Compute(mk(0, 1000))
	require.Equal(t, 0.0, m.PDV) // no reference yet

	m = c.Compute(mk(1, 1500))
	require.True(t, m.Valid) // delay larger than the turnaround is still a legal exchange
	require.Equal(t, 500.0, m.PDV)

	m = c.Compute(mk(2, 800))
	require.Equal(t, -200.0, m.PDV) // below the trailing minimum

	m = c.Compute(mk(3, 900))
	require.Equal(t, 100.0, m.PDV) // reference is now 800
}
