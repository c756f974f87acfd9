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

// Package estimator implements the clock offset estimators that consume
// per-exchange delay metrics and produce offset estimates: packet selection
// over a sliding window, windowed least-squares regression, and a recursive
// Kalman filter.
package estimator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ptplab/ptpest/exchange"
)

// Algorithm identifiers used to tag estimates throughout the pipeline.
const (
	AlgoPacketSelection = "pktselect"
	AlgoLeastSquares    = "linreg"
	AlgoKalman          = "kalman"
)

// Supported packet selection strategies
const (
	StrategyMinDelay   = "min-delay"
	StrategyAvgKLowest = "avg-of-k-lowest"
	StrategyMedian     = "median"
)

// Kalman state dimensions
const (
	StateOffsetOnly = "offset"
	StateOffsetSkew = "offset+skew"
)

// Estimate is a single offset estimate emitted by an estimator for a given
// exchange index. Windowed estimators tag the window's last index. Algorithms
// that model the slave's frequency error also report it as Skew, in ppb
// (1 ppb is 1 ns of drift per second of master time); nil otherwise.
type Estimate struct {
	Index  uint64   `json:"index"`
	Algo   string   `json:"algo"`
	Offset float64  `json:"offset"` // estimated offset in ns
	Skew   *float64 `json:"skew,omitempty"`
}

// Counters tracks the per-estimator sample accounting that ends up in the
// final report next to the error statistics.
type Counters struct {
	InvalidSamples uint64 `json:"invalid_samples"` // exchanges excluded by the calculator
	SkippedWindows uint64 `json:"skipped_windows"` // degenerate or all-invalid windows
	SkippedUpdates uint64 `json:"skipped_updates"` // numerically unstable filter updates
}

// Estimator is the shape all algorithm families share: consume one exchange
// worth of metrics, possibly emit an estimate. Implementations own their
// state exclusively and are not safe for concurrent use; run one instance
// per goroutine.
type Estimator interface {
	Algo() string
	// Consume processes the next exchange in index order. The returned
	// estimate is nil when the algorithm has nothing to emit for this index.
	Consume(m *exchange.Metrics) *Estimate
	Counters() Counters
}

// Config holds every estimator knob. A single struct keeps the YAML surface
// flat; each estimator reads only its own fields.
type Config struct {
	WindowLength      int     `yaml:"window_length"`
	SelectionStrategy string  `yaml:"selection_strategy"`
	SelectionK        int     `yaml:"selection_k"`
	PartialWindows    bool    `yaml:"partial_windows_allowed"`
	ProcessNoise      float64 `yaml:"process_noise"`     // ns^2 per second
	MeasurementNoise  float64 `yaml:"measurement_noise"` // ns^2
	StateDimension    string  `yaml:"state_dimension"`
}

// DefaultConfig returns a Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		WindowLength:      64,
		SelectionStrategy: StrategyMinDelay,
		SelectionK:        4,
		ProcessNoise:      1e-2,
		MeasurementNoise:  1e4,
		StateDimension:    StateOffsetSkew,
	}
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, &c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.WindowLength <= 0 {
		return fmt.Errorf("window_length must be positive")
	}
	switch c.SelectionStrategy {
	case StrategyMinDelay, StrategyAvgKLowest, StrategyMedian:
	default:
		return fmt.Errorf("selection_strategy must be either %q, %q or %q",
			StrategyMinDelay, StrategyAvgKLowest, StrategyMedian)
	}
	if c.SelectionK <= 0 || c.SelectionK > c.WindowLength {
		return fmt.Errorf("selection_k must be in [1, window_length]")
	}
	if c.ProcessNoise <= 0 {
		return fmt.Errorf("process_noise must be positive")
	}
	if c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive")
	}
	if c.StateDimension != StateOffsetOnly && c.StateDimension != StateOffsetSkew {
		return fmt.Errorf("state_dimension must be either %q or %q", StateOffsetOnly, StateOffsetSkew)
	}
	return nil
}

// New builds an estimator by algorithm identifier.
func New(algo string, cfg *Config) (Estimator, error) {
	switch algo {
	case AlgoPacketSelection:
		return NewPacketSelection(cfg), nil
	case AlgoLeastSquares:
		return NewLeastSquares(cfg), nil
	case AlgoKalman:
		return NewKalman(cfg), nil
	}
	return nil, fmt.Errorf("unknown algorithm %q", algo)
}

// Algos lists all supported algorithm identifiers.
func Algos() []string {
	return []string{AlgoPacketSelection, AlgoLeastSquares, AlgoKalman}
}
