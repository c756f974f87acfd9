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

// Package exchange holds the two-way exchange data model: raw timestamp
// records as captured (or simulated), plus the per-exchange delay and offset
// metrics derived from them.
package exchange

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Record is a single two-way PTP exchange as recorded in a dataset.
// All timestamps are in nanoseconds. TruthDelay and TruthOffset come from
// the capture/simulation reference clock and are only available to the
// scorer, never to estimators.
type Record struct {
	Index       uint64
	T1          float64 // departure time of Sync from the master
	T2          float64 // arrival time of Sync on the slave
	T3          float64 // departure time of DelayReq from the slave
	T4          float64 // arrival time of DelayReq on the master
	TruthDelay  float64 // true m-to-s one-way delay at this exchange
	TruthOffset float64 // true slave-to-master offset, sampled at t1
}

var datasetHeader = []string{"idx", "t1", "t2", "t3", "t4", "truth_delay", "truth_offset"}

// parseFloat converts one CSV field, mapping anything unparseable to NaN so
// that the record flows through the normal invalid-marking path instead of
// aborting the whole dataset.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadDataset reads an ordered sequence of exchange records from CSV.
// The first row must be the dataset header. Records with unparseable
// timestamp fields are kept with NaN values and excluded later by the
// calculator; structural CSV problems are errors.
func ReadDataset(r io.Reader) ([]*Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(datasetHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset has no header row")
	}
	for i, want := range datasetHeader {
		if rows[0][i] != want {
			return nil, fmt.Errorf("unexpected dataset header %v, want %v", rows[0], datasetHeader)
		}
	}
	recs := make([]*Record, 0, len(rows)-1)
	var lastIndex uint64
	for n, row := range rows[1:] {
		idx, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad index %q: %w", n+1, row[0], err)
		}
		if len(recs) > 0 && idx <= lastIndex {
			return nil, fmt.Errorf("row %d: index %d is not increasing (last %d)", n+1, idx, lastIndex)
		}
		lastIndex = idx
		recs = append(recs, &Record{
			Index:       idx,
			T1:          parseFloat(row[1]),
			T2:          parseFloat(row[2]),
			T3:          parseFloat(row[3]),
			T4:          parseFloat(row[4]),
			TruthDelay:  parseFloat(row[5]),
			TruthOffset: parseFloat(row[6]),
		})
	}
	return recs, nil
}

// WriteDataset writes records as CSV, preserving full float64 precision.
func WriteDataset(w io.Writer, recs []*Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(datasetHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, rec := range recs {
		row := []string{
			strconv.FormatUint(rec.Index, 10),
			f(rec.T1), f(rec.T2), f(rec.T3), f(rec.T4),
			f(rec.TruthDelay), f(rec.TruthOffset),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
