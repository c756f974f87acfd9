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

	log "github.com/sirupsen/logrus"

	"github.com/ptplab/ptpest/exchange"
)

const (
	// initialSkewVar seeds the skew variance on the first measurement,
	// allowing for oscillators up to ~1000 ppb off nominal.
	initialSkewVar = 1e6
	// minInnovationVar guards the gain computation against division by a
	// near-zero innovation covariance.
	minInnovationVar = 1e-12
)

type kalmanState uint8

const (
	kalmanUninitialized kalmanState = iota
	kalmanTracking
)

// Kalman models the slave clock offset (and optionally skew, in ns per
// second of master time) as a linear system observed through the noisy
// two-way offset measurement. Unlike the windowed estimators it emits one
// estimate per valid exchange with no lag.
//
// Units: offsets in ns, elapsed time in seconds, skew in ns/s (1 ns/s is
// 1 ppb). ProcessNoise is the skew random-walk intensity for the 2-D model
// and the offset random-walk intensity for the 1-D model; MeasurementNoise
// is the two-way offset measurement variance in ns^2.
type Kalman struct {
	dim      int
	q        float64
	r        float64
	state    kalmanState
	x        [2]float64    // offset, skew
	p        [2][2]float64 // error covariance
	lastT1   float64       // master time of the last valid update, ns
	counters Counters
}

// NewKalman builds the Kalman filter estimator from cfg.
func NewKalman(cfg *Config) *Kalman {
	dim := 1
	if cfg.StateDimension == StateOffsetSkew {
		dim = 2
	}
	return &Kalman{
		dim: dim,
		q:   cfg.ProcessNoise,
		r:   cfg.MeasurementNoise,
	}
}

// Algo implements the Estimator interface
func (k *Kalman) Algo() string {
	return AlgoKalman
}

// Counters implements the Estimator interface
func (k *Kalman) Counters() Counters {
	return k.counters
}

// Consume implements the Estimator interface. Invalid exchanges are skipped
// without advancing the filter; the elapsed-time term of the next prediction
// still covers the true gap since the last valid update because lastT1 only
// moves on successful updates.
func (k *Kalman) Consume(m *exchange.Metrics) *Estimate {
	if !m.Valid {
		k.counters.InvalidSamples++
		return nil
	}
	if k.state == kalmanUninitialized {
		k.x[0] = m.Offset
		k.x[1] = 0
		k.p = [2][2]float64{{k.r, 0}, {0, initialSkewVar}}
		k.lastT1 = m.T1
		k.state = kalmanTracking
		return &Estimate{Index: m.Index, Algo: AlgoKalman, Offset: k.x[0]}
	}
	dt := (m.T1 - k.lastT1) / 1e9
	if dt <= 0 {
		log.Warningf("kalman: non-increasing master timestamp at index %d, update skipped", m.Index)
		k.counters.SkippedUpdates++
		return nil
	}
	x, p, ok := k.step(dt, m.Offset)
	if !ok {
		log.Warningf("kalman: unstable update at index %d, filter state preserved", m.Index)
		k.counters.SkippedUpdates++
		return nil
	}
	k.x, k.p = x, p
	k.lastT1 = m.T1
	est := &Estimate{Index: m.Index, Algo: AlgoKalman, Offset: k.x[0]}
	if k.dim == 2 {
		skew := k.x[1] // ns/s is ppb
		est.Skew = &skew
	}
	return est
}

// step runs one predict+update cycle on copies of the state so that an
// unstable update can be dropped without corrupting the filter.
func (k *Kalman) step(dt, z float64) ([2]float64, [2][2]float64, bool) {
	x := k.x
	p := k.p

	// predict
	if k.dim == 1 {
		p[0][0] += k.q * dt
	} else {
		x[0] += x[1] * dt
		// P = F P F^T + Q, F = [[1, dt], [0, 1]]
		p00 := p[0][0] + dt*(p[1][0]+p[0][1]) + dt*dt*p[1][1]
		p01 := p[0][1] + dt*p[1][1]
		p10 := p[1][0] + dt*p[1][1]
		p = [2][2]float64{
			{p00 + k.q*dt*dt*dt/3, p01 + k.q*dt*dt/2},
			{p10 + k.q*dt*dt/2, p[1][1] + k.q*dt},
		}
	}

	// update
	innovation := z - x[0]
	s := p[0][0] + k.r
	if s < minInnovationVar || math.IsNaN(s) || math.IsInf(s, 0) {
		return x, p, false
	}
	k0 := p[0][0] / s
	k1 := 0.0
	if k.dim == 2 {
		k1 = p[1][0] / s
	}
	x[0] += k0 * innovation
	x[1] += k1 * innovation

	// Joseph form: P = (I-KH) P (I-KH)^T + K R K^T, H = [1, 0].
	// Keeps the covariance symmetric positive semi-definite.
	a00 := 1 - k0
	p00 := a00*a00*p[0][0] + k0*k0*k.r
	p01 := a00*(p[0][1]-k1*p[0][0]) + k0*k1*k.r
	p11 := p[1][1] - k1*p[1][0] - k1*(p[0][1]-k1*p[0][0]) + k1*k1*k.r
	p = [2][2]float64{{p00, p01}, {p01, p11}}

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.IsNaN(p[i][j]) || math.IsInf(p[i][j], 0) {
				return x, p, false
			}
		}
	}
	if math.IsNaN(x[0]) || math.IsInf(x[0], 0) || math.IsNaN(x[1]) || math.IsInf(x[1], 0) {
		return x, p, false
	}
	return x, p, true
}
