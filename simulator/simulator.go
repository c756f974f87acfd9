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

// Package simulator synthesizes two-way exchange datasets with known ground
// truth: a master clock, a slave clock with configurable initial offset and
// frequency offset, and Gamma-distributed one-way path delays with optional
// constant asymmetry.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ptplab/ptpest/exchange"
)

// Config describes one synthetic dataset.
type Config struct {
	Count         int     `yaml:"count"`
	SyncInterval  float64 `yaml:"sync_interval"`  // seconds between exchanges
	InitialOffset float64 `yaml:"initial_offset"` // slave-master offset at t=0, ns
	FreqOffsetPPB float64 `yaml:"freq_offset_ppb"`
	DelayShape    int     `yaml:"delay_shape"` // Gamma shape (integer, Erlang)
	DelayScale    float64 `yaml:"delay_scale"` // Gamma scale, ns
	Asymmetry     float64 `yaml:"asymmetry"`   // extra m-to-s delay, ns
	Turnaround    float64 `yaml:"turnaround"`  // slave processing time t3-t2, ns
	Seed          int64   `yaml:"seed"`
}

// DefaultConfig returns a Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Count:        1000,
		SyncInterval: 1.0 / 16,
		DelayShape:   2,
		DelayScale:   1000,
		Turnaround:   100e3,
		Seed:         1,
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
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	if c.DelayShape < 0 {
		return fmt.Errorf("delay_shape must be 0 or positive")
	}
	if c.DelayShape > 0 && c.DelayScale <= 0 {
		return fmt.Errorf("delay_scale must be positive")
	}
	if c.Turnaround < 0 {
		return fmt.Errorf("turnaround must be 0 or positive")
	}
	return nil
}

// gammaNS draws an Erlang(shape, scale) path delay as a sum of exponentials.
// shape 0 means a fixed delay of scale ns (useful for noiseless datasets).
func gammaNS(r *rand.Rand, shape int, scale float64) float64 {
	if shape == 0 {
		return scale
	}
	sum := 0.0
	for i := 0; i < shape; i++ {
		sum += -math.Log(1 - r.Float64())
	}
	return sum * scale
}

// offsetAt returns the true slave-master offset at master time tNS.
func (c *Config) offsetAt(tNS float64) float64 {
	return c.InitialOffset + c.FreqOffsetPPB*tNS/1e9
}

// Run generates the dataset. Timestamps follow the exchange convention:
// t1/t4 are master clock readings, t2/t3 slave clock readings, with
// slave = master + offset. Truth offset is sampled at t1, matching the
// instant the Sync departs.
func Run(cfg *Config) ([]*exchange.Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	recs := make([]*exchange.Record, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		t1 := float64(i) * cfg.SyncInterval * 1e9
		dFwd := gammaNS(r, cfg.DelayShape, cfg.DelayScale) + cfg.Asymmetry
		dBwd := gammaNS(r, cfg.DelayShape, cfg.DelayScale)

		// walk the exchange forward in master time, reading the slave
		// clock through the offset model wherever the slave timestamps
		t2Master := t1 + dFwd
		t2 := t2Master + cfg.offsetAt(t2Master)
		t3Master := t2Master + cfg.Turnaround
		t3 := t3Master + cfg.offsetAt(t3Master)
		t4 := t3Master + dBwd

		recs[i] = &exchange.Record{
			Index:       uint64(i),
			T1:          t1,
			T2:          t2,
			T3:          t3,
			T4:          t4,
			TruthDelay:  dFwd,
			TruthOffset: cfg.offsetAt(t1),
		}
	}
	return recs, nil
}

// Corrupt overwrites every n-th record's t4 with a timestamp earlier than
// t1, producing records the calculator must reject. Used to exercise the
// invalid-record accounting end to end.
func Corrupt(recs []*exchange.Record, everyNth int) {
	if everyNth <= 0 {
		return
	}
	for i := everyNth - 1; i < len(recs); i += everyNth {
		recs[i].T4 = recs[i].T1 - 1
	}
}
