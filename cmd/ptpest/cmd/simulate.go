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

package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ptplab/ptpest/exchange"
	"github.com/ptplab/ptpest/simulator"
)

// flags
var (
	simulateConfigFlag  string
	simulateOutFlag     string
	simulateCorruptFlag int

	simulateCountFlag      int
	simulateIntervalFlag   float64
	simulateOffsetFlag     float64
	simulateFreqFlag       float64
	simulateShapeFlag      int
	simulateScaleFlag      float64
	simulateAsymmetryFlag  float64
	simulateTurnaroundFlag float64
	simulateSeedFlag       int64
)

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simulateConfigFlag, "config", "c", "", "path to simulator config file")
	simulateCmd.Flags().StringVarP(&simulateOutFlag, "out", "o", "-", "where to write the dataset CSV, '-' means stdout")
	simulateCmd.Flags().IntVar(&simulateCorruptFlag, "corrupt-every", 0, "corrupt every Nth exchange, 0 disables")

	defaults := simulator.DefaultConfig()
	simulateCmd.Flags().IntVarP(&simulateCountFlag, "count", "n", defaults.Count, "number of exchanges to generate")
	simulateCmd.Flags().Float64VarP(&simulateIntervalFlag, "interval", "i", defaults.SyncInterval, "seconds between exchanges")
	simulateCmd.Flags().Float64Var(&simulateOffsetFlag, "offset", defaults.InitialOffset, "initial slave-master offset, ns")
	simulateCmd.Flags().Float64Var(&simulateFreqFlag, "freq-ppb", defaults.FreqOffsetPPB, "slave frequency offset, ppb")
	simulateCmd.Flags().IntVar(&simulateShapeFlag, "delay-shape", defaults.DelayShape, "Gamma shape of path delays, 0 means fixed delay")
	simulateCmd.Flags().Float64Var(&simulateScaleFlag, "delay-scale", defaults.DelayScale, "Gamma scale of path delays, ns")
	simulateCmd.Flags().Float64Var(&simulateAsymmetryFlag, "asymmetry", defaults.Asymmetry, "extra master-to-slave delay, ns")
	simulateCmd.Flags().Float64Var(&simulateTurnaroundFlag, "turnaround", defaults.Turnaround, "slave t3-t2 processing time, ns")
	simulateCmd.Flags().Int64Var(&simulateSeedFlag, "seed", defaults.Seed, "PRNG seed, same seed reproduces the dataset")
}

func simulateConfig(c *cobra.Command) (*simulator.Config, error) {
	cfg := simulator.DefaultConfig()
	if simulateConfigFlag != "" {
		var err error
		cfg, err = simulator.ReadConfig(simulateConfigFlag)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", simulateConfigFlag, err)
		}
	}
	if c.Flags().Changed("count") {
		cfg.Count = simulateCountFlag
	}
	if c.Flags().Changed("interval") {
		cfg.SyncInterval = simulateIntervalFlag
	}
	if c.Flags().Changed("offset") {
		cfg.InitialOffset = simulateOffsetFlag
	}
	if c.Flags().Changed("freq-ppb") {
		cfg.FreqOffsetPPB = simulateFreqFlag
	}
	if c.Flags().Changed("delay-shape") {
		cfg.DelayShape = simulateShapeFlag
	}
	if c.Flags().Changed("delay-scale") {
		cfg.DelayScale = simulateScaleFlag
	}
	if c.Flags().Changed("asymmetry") {
		cfg.Asymmetry = simulateAsymmetryFlag
	}
	if c.Flags().Changed("turnaround") {
		cfg.Turnaround = simulateTurnaroundFlag
	}
	if c.Flags().Changed("seed") {
		cfg.Seed = simulateSeedFlag
	}
	return cfg, nil
}

func simulateRun(c *cobra.Command) error {
	cfg, err := simulateConfig(c)
	if err != nil {
		return err
	}
	recs, err := simulator.Run(cfg)
	if err != nil {
		return err
	}
	if simulateCorruptFlag > 0 {
		simulator.Corrupt(recs, simulateCorruptFlag)
	}
	log.Debugf("generated %d exchanges", len(recs))

	var w io.Writer = os.Stdout
	if simulateOutFlag != "" && simulateOutFlag != "-" {
		f, err := os.Create(simulateOutFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return exchange.WriteDataset(w, recs)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic two-way exchange dataset with known ground truth",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := simulateRun(c); err != nil {
			log.Fatal(err)
		}
	},
}
