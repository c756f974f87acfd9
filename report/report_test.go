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
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ptplab/ptpest/estimator"
	"github.com/ptplab/ptpest/scorer"
)

func sampleReport() *Report {
	freq := 100.25
	rep := Aggregate(100, 3)
	rep.Add("kalman",
		&scorer.Result{
			Errors: []scorer.ErrorRecord{
				{Index: 0, Algo: "kalman", Error: 1},
				{Index: 1, Algo: "kalman", Error: -2},
			},
			Summary: scorer.Summary{Algo: "kalman", Count: 2, Mean: -0.5, Stddev: 1.5, MaxAbs: 2, P99: 2, FreqPPB: &freq},
		},
		estimator.Counters{InvalidSamples: 3},
		[]*estimator.Estimate{
			{Index: 0, Algo: "kalman", Offset: 501},
			{Index: 1, Algo: "kalman", Offset: 498},
		})
	rep.Add("linreg",
		&scorer.Result{Summary: scorer.Summary{Algo: "linreg", NoEstimates: true}},
		estimator.Counters{InvalidSamples: 3, SkippedWindows: 97},
		nil)
	return rep
}

func TestReportBest(t *testing.T) {
	rep := sampleReport()
	require.Equal(t, "kalman", rep.best())

	empty := Aggregate(0, 0)
	require.Equal(t, "", empty.best())
}

func TestReportJSONRoundTrip(t *testing.T) {
	rep := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, rep.TotalRecords, got.TotalRecords)
	require.Equal(t, rep.InvalidRecords, got.InvalidRecords)
	require.Len(t, got.Algos, 2)
	require.True(t, got.Algos["linreg"].Summary.NoEstimates)
	require.Equal(t, 501.0, got.Algos["kalman"].Estimates[0].Offset)
	require.NotNil(t, got.Algos["kalman"].Summary.FreqPPB)
	require.Equal(t, 100.25, *got.Algos["kalman"].Summary.FreqPPB)
}

func TestReportRenderTable(t *testing.T) {
	rep := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, rep.RenderTable(&buf))
	out := buf.String()
	require.Contains(t, out, "100 records, 3 invalid")
	require.Contains(t, out, "kalman")
	require.Contains(t, out, "no estimates")
	require.Contains(t, out, "100.250") // frequency estimate column
}

func TestWriteEstimatesCSV(t *testing.T) {
	rep := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, rep.WriteEstimatesCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "idx,algo,offset,error", lines[0])
	require.Len(t, lines, 3) // header + two kalman estimates
	require.Contains(t, lines[1], "kalman")
}
