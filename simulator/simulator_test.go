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

package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ptplab/ptpest/exchange"
)

func TestRunNoiseless(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 100
	cfg.InitialOffset = 500
	cfg.DelayShape = 0 // fixed delays
	cfg.DelayScale = 1000
	recs, err := Run(cfg)
	require.NoError(t, err)
	require.Len(t, recs, 100)

	c := exchange.NewCalculator(exchange.DefaultPDVWindow)
	for _, rec := range recs {
		m := c.Compute(rec)
		require.True(t, m.Valid)
		// symmetric fixed paths: the two-way measurement recovers the
		// exact offset and delay
		require.InDelta(t, 500.0, m.Offset, 1e-9)
		require.InDelta(t, 1000.0, m.Delay, 1e-9)
		require.InDelta(t, rec.TruthOffset, m.Offset, 1e-9)
	}
}

func TestRunReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 50
	a, err := Run(cfg)
	require.NoError(t, err)
	b, err := Run(cfg)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestRunAsymmetryBiasesOffset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 200
	cfg.DelayShape = 0
	cfg.DelayScale = 1000
	cfg.Asymmetry = 600
	recs, err := Run(cfg)
	require.NoError(t, err)

	c := exchange.NewCalculator(exchange.DefaultPDVWindow)
	m := c.Compute(recs[0])
	// half the asymmetry shows up as offset measurement error
	require.InDelta(t, 300.0, m.Offset-recs[0].TruthOffset, 1e-9)
}

func TestRunDrift(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 17
	cfg.FreqOffsetPPB = 1000
	cfg.SyncInterval = 1.0 / 16
	recs, err := Run(cfg)
	require.NoError(t, err)
	// after one second of master time the truth offset drifted by 1000 ppb
	require.InDelta(t, 1000.0*1e9/1e9, recs[16].TruthOffset-recs[0].TruthOffset, 1e-6)
}

func TestCorrupt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 100
	recs, err := Run(cfg)
	require.NoError(t, err)
	Corrupt(recs, 20)

	c := exchange.NewCalculator(exchange.DefaultPDVWindow)
	c.ComputeAll(recs)
	require.Equal(t, uint64(5), c.Invalid())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Count = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DelayScale = -1
	require.Error(t, cfg.Validate())
}
