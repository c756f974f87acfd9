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
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ptplab/ptpest/estimator"
	"github.com/ptplab/ptpest/exchange"
	"github.com/ptplab/ptpest/report"
	"github.com/ptplab/ptpest/scorer"
)

// flags
var (
	optimizeFileFlag      string
	optimizeConfigFlag    string
	optimizeAlgosFlag     []string
	optimizeMetricFlag    string
	optimizePDVWindowFlag int
	optimizeWindowsFlag   []int
	optimizeJSONFlag      string
)

func init() {
	RootCmd.AddCommand(optimizeCmd)
	optimizeCmd.Flags().StringVarP(&optimizeFileFlag, "file", "f", "", "dataset CSV to analyze, '-' means stdin")
	optimizeCmd.Flags().StringVarP(&optimizeConfigFlag, "config", "c", "", "path to estimator config file")
	optimizeCmd.Flags().StringSliceVarP(&optimizeAlgosFlag, "algo", "a",
		[]string{estimator.AlgoPacketSelection, estimator.AlgoLeastSquares},
		"windowed algorithms to sweep")
	optimizeCmd.Flags().StringVarP(&optimizeMetricFlag, "metric", "m", "", "objective formula to minimize instead of max|error|")
	optimizeCmd.Flags().IntVar(&optimizePDVWindowFlag, "pdv-window", exchange.DefaultPDVWindow, "trailing window for PDV baseline")
	optimizeCmd.Flags().IntSliceVarP(&optimizeWindowsFlag, "windows", "w",
		[]int{2, 4, 8, 16, 32, 64, 128, 256},
		"window lengths to evaluate")
	optimizeCmd.Flags().StringVar(&optimizeJSONFlag, "json", "", "write full JSON sweep to this file, '-' means stdout")
}

func optimizeRun() error {
	cfg := estimator.DefaultConfig()
	if optimizeConfigFlag != "" {
		var err error
		cfg, err = estimator.ReadConfig(optimizeConfigFlag)
		if err != nil {
			return fmt.Errorf("reading config %q: %w", optimizeConfigFlag, err)
		}
	}
	recs, err := analyzeReadDataset(optimizeFileFlag)
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}
	log.Debugf("loaded %d exchanges, sweeping %d window lengths", len(recs), len(optimizeWindowsFlag))

	pcfg := &report.PipelineConfig{
		Estimator: cfg,
		Algos:     optimizeAlgosFlag,
		PDVWindow: optimizePDVWindowFlag,
	}
	if optimizeMetricFlag != "" {
		m, err := scorer.NewMetric(optimizeMetricFlag)
		if err != nil {
			return fmt.Errorf("bad metric formula: %w", err)
		}
		pcfg.Metric = m
	}

	sw, err := report.RunSweep(context.Background(), recs, pcfg, optimizeWindowsFlag)
	if err != nil {
		return err
	}
	if err := sw.RenderTable(os.Stdout); err != nil {
		return fmt.Errorf("rendering sweep: %w", err)
	}
	for _, algo := range optimizeAlgosFlag {
		if best, ok := sw.Best[algo]; ok {
			fmt.Printf("%s: best window %d\n", algo, best)
		}
	}
	if optimizeJSONFlag != "" {
		if err := analyzeWriteOutput(optimizeJSONFlag, sw.WriteJSON); err != nil {
			return fmt.Errorf("writing JSON sweep: %w", err)
		}
	}
	return nil
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Sweep window lengths and report each estimator's best",
	Long: "Sweep window lengths over a dataset and report max|error| (or a custom " +
		"objective) per algorithm and window, picking the best length for each.",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := optimizeRun(); err != nil {
			log.Fatal(err)
		}
	},
}
