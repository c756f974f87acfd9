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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireCovarianceSane(t *testing.T, k *Kalman) {
	t.Helper()
	p := k.p
	require.Equal(t, p[0][1], p[1][0], "covariance must stay symmetric")
	require.GreaterOrEqual(t, p[0][0], 0.0)
	require.GreaterOrEqual(t, p[1][1], 0.0)
	// positive semi-definite 2x2: non-negative diagonal and determinant
	det := p[0][0]*p[1][1] - p[0][1]*p[1][0]
	require.GreaterOrEqual(t, det, -1e-9*math.Abs(p[0][0]*p[1][1]))
}

func TestKalmanSeedsOnFirstValidMeasurement(t *testing.T) {
	k := NewKalman(DefaultConfig())
	require.Equal(t, kalmanUninitialized, k.state)

	require.Nil(t, k.Consume(invalidMetrics(0, 0)))
	require.Equal(t, kalmanUninitialized, k.state)

	est := k.Consume(metricsFromExchange(1, 1e9, 100, 735))
	require.NotNil(t, est)
	require.Equal(t, kalmanTracking, k.state)
	require.Equal(t, 735.0, est.Offset)
	require.Equal(t, uint64(1), k.Counters().InvalidSamples)
}

func TestKalmanConvergesToConstantOffset(t *testing.T) {
	// noiseless measurements of a constant offset with tiny process noise:
	// the filter must stay within 1 ns after a handful of steps
	for _, dim := range []string{StateOffsetOnly, StateOffsetSkew} {
		t.Run(dim, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.StateDimension = dim
			cfg.ProcessNoise = 1e-9
			k := NewKalman(cfg)
			var est *Estimate
			for i := 0; i < 20; i++ {
				est = k.Consume(metricsFromExchange(uint64(i), float64(i)*62.5e6, 1000, 500))
			}
			require.NotNil(t, est)
			require.InDelta(t, 500.0, est.Offset, 1)
		})
	}
}

func TestKalmanTracksDriftingClock(t *testing.T) {
	// 2-D filter locks onto a 100 ppb drift
	cfg := DefaultConfig()
	cfg.ProcessNoise = 1e-3
	cfg.MeasurementNoise = 100
	k := NewKalman(cfg)
	const ppb = 100.0 // ns per second
	var est *Estimate
	for i := 0; i < 2000; i++ {
		tNS := float64(i) * 62.5e6
		offset := 500 + ppb*tNS/1e9
		est = k.Consume(metricsFromExchange(uint64(i), tNS, 1000, offset))
	}
	require.NotNil(t, est)
	lastOffset := 500 + ppb*float64(1999)*62.5e6/1e9
	require.InDelta(t, lastOffset, est.Offset, 1)
	require.InDelta(t, ppb, k.x[1], 5)
	// the skew state is reported with each estimate
	require.NotNil(t, est.Skew)
	require.InDelta(t, ppb, *est.Skew, 5)
}

func TestKalmanCovarianceStaysPSD(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKalman(cfg)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		offset := 500 + r.NormFloat64()*100
		k.Consume(metricsFromExchange(uint64(i), float64(i)*62.5e6, 1000, offset))
		requireCovarianceSane(t, k)
	}
	require.Equal(t, uint64(0), k.Counters().SkippedUpdates)
}

func TestKalmanElapsedTimeSpansInvalidGaps(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKalman(cfg)
	require.NotNil(t, k.Consume(metricsFromExchange(0, 0, 1000, 500)))
	require.Equal(t, 0.0, k.lastT1)

	// a run of invalid exchanges must not advance the filter
	for i := 1; i <= 5; i++ {
		require.Nil(t, k.Consume(invalidMetrics(uint64(i), float64(i)*1e9)))
	}
	require.Equal(t, 0.0, k.lastT1)

	// the next valid update sees the full 6s gap
	est := k.Consume(metricsFromExchange(6, 6e9, 1000, 500))
	require.NotNil(t, est)
	require.Equal(t, 6e9, k.lastT1)
}

func TestKalmanSkipsNonIncreasingTimestamp(t *testing.T) {
	k := NewKalman(DefaultConfig())
	require.NotNil(t, k.Consume(metricsFromExchange(0, 1e9, 1000, 500)))
	require.Nil(t, k.Consume(metricsFromExchange(1, 1e9, 1000, 501)))
	require.Equal(t, uint64(1), k.Counters().SkippedUpdates)
	// state preserved from the prior step
	require.Equal(t, 500.0, k.x[0])
}
