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
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ptplab/ptpest/estimator"
	"github.com/ptplab/ptpest/simulator"
)

func TestSweepOverWindowLengths(t *testing.T) {
	simCfg := simulator.DefaultConfig()
	simCfg.Count = 400
	simCfg.InitialOffset = 500
	recs, err := simulator.Run(simCfg)
	require.NoError(t, err)

	lengths := []int{2, 8, 32}
	cfg := &PipelineConfig{
		Estimator: estimator.DefaultConfig(),
		Algos:     []string{estimator.AlgoPacketSelection, estimator.AlgoLeastSquares},
	}
	// length 2 is below the default selection_k; the sweep must clamp it
	// rather than fail validation
	sw, err := RunSweep(context.Background(), recs, cfg, lengths)
	require.NoError(t, err)
	require.Len(t, sw.Algos, 2)
	for algo, points := range sw.Algos {
		require.Len(t, points, len(lengths), algo)
		for i, p := range points {
			require.Equal(t, lengths[i], p.WindowLength, algo)
			require.False(t, p.NoEstimates, algo)
		}
		require.Contains(t, lengths, sw.Best[algo], algo)
	}
}

func TestSweepPrefersLongerWindowUnderNoise(t *testing.T) {
	// gamma path-delay noise: the packet selection min-delay max|error|
	// at window 64 must beat window 1, and the sweep must notice
	simCfg := simulator.DefaultConfig()
	simCfg.Count = 1000
	simCfg.InitialOffset = 500
	recs, err := simulator.Run(simCfg)
	require.NoError(t, err)

	cfg := &PipelineConfig{
		Estimator: estimator.DefaultConfig(),
		Algos:     []string{estimator.AlgoPacketSelection},
	}
	sw, err := RunSweep(context.Background(), recs, cfg, []int{1, 64})
	require.NoError(t, err)
	points := sw.Algos[estimator.AlgoPacketSelection]
	require.Len(t, points, 2)
	require.Less(t, points[1].MaxAbs, points[0].MaxAbs)
	require.Equal(t, 64, sw.Best[estimator.AlgoPacketSelection])
}

func TestSweepNoLengths(t *testing.T) {
	_, err := RunSweep(context.Background(), nil, &PipelineConfig{Estimator: estimator.DefaultConfig()}, nil)
	require.Error(t, err)
}

func TestSweepRenderTable(t *testing.T) {
	simCfg := simulator.DefaultConfig()
	simCfg.Count = 200
	recs, err := simulator.Run(simCfg)
	require.NoError(t, err)

	cfg := &PipelineConfig{
		Estimator: estimator.DefaultConfig(),
		Algos:     []string{estimator.AlgoLeastSquares},
	}
	lengths := []int{8, 16}
	sw, err := RunSweep(context.Background(), recs, cfg, lengths)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, sw.RenderTable(&buf))
	for _, l := range lengths {
		require.Contains(t, buf.String(), strconv.Itoa(l))
	}
}
