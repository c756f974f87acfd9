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
	"io"
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
	analyzeFileFlag      string
	analyzeConfigFlag    string
	analyzeAlgosFlag     []string
	analyzeMetricFlag    string
	analyzePDVWindowFlag int
	analyzeJSONFlag      string
	analyzeCSVFlag       string

	analyzeWindowFlag   int
	analyzeStrategyFlag string
	analyzeKFlag        int
	analyzePartialFlag  bool
	analyzeQFlag        float64
	analyzeRFlag        float64
	analyzeStateFlag    string
)

func init() {
	RootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeFileFlag, "file", "f", "", "dataset CSV to analyze, '-' means stdin")
	analyzeCmd.Flags().StringVarP(&analyzeConfigFlag, "config", "c", "", "path to estimator config file")
	analyzeCmd.Flags().StringSliceVarP(&analyzeAlgosFlag, "algo", "a", nil, "algorithms to run, empty means all")
	analyzeCmd.Flags().StringVarP(&analyzeMetricFlag, "metric", "m", "", "custom score formula, ex: 'mean(abserror) + stddev(error)'")
	analyzeCmd.Flags().IntVar(&analyzePDVWindowFlag, "pdv-window", exchange.DefaultPDVWindow, "trailing window for PDV baseline")
	analyzeCmd.Flags().StringVar(&analyzeJSONFlag, "json", "", "write full JSON report to this file, '-' means stdout")
	analyzeCmd.Flags().StringVar(&analyzeCSVFlag, "csv", "", "write per-estimate CSV to this file, '-' means stdout")

	defaults := estimator.DefaultConfig()
	analyzeCmd.Flags().IntVarP(&analyzeWindowFlag, "window", "w", defaults.WindowLength, "sliding window length for windowed estimators")
	analyzeCmd.Flags().StringVarP(&analyzeStrategyFlag, "strategy", "s", defaults.SelectionStrategy, "packet selection strategy")
	analyzeCmd.Flags().IntVarP(&analyzeKFlag, "selection-k", "k", defaults.SelectionK, "sample count for the avg-of-k-lowest strategy")
	analyzeCmd.Flags().BoolVar(&analyzePartialFlag, "partial-windows", defaults.PartialWindows, "emit estimates before the first window fills up")
	analyzeCmd.Flags().Float64VarP(&analyzeQFlag, "process-noise", "q", defaults.ProcessNoise, "Kalman process noise, ns^2 per second")
	analyzeCmd.Flags().Float64VarP(&analyzeRFlag, "measurement-noise", "r", defaults.MeasurementNoise, "Kalman measurement noise, ns^2")
	analyzeCmd.Flags().StringVar(&analyzeStateFlag, "state", defaults.StateDimension, "Kalman state dimension")
}

// analyzeConfig merges the optional config file with whatever estimator flags
// were explicitly set on the command line. Flags win over the file.
func analyzeConfig(c *cobra.Command) (*estimator.Config, error) {
	cfg := estimator.DefaultConfig()
	if analyzeConfigFlag != "" {
		var err error
		cfg, err = estimator.ReadConfig(analyzeConfigFlag)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", analyzeConfigFlag, err)
		}
	}
	if c.Flags().Changed("window") {
		cfg.WindowLength = analyzeWindowFlag
	}
	if c.Flags().Changed("strategy") {
		cfg.SelectionStrategy = analyzeStrategyFlag
	}
	if c.Flags().Changed("selection-k") {
		cfg.SelectionK = analyzeKFlag
	}
	if c.Flags().Changed("partial-windows") {
		cfg.PartialWindows = analyzePartialFlag
	}
	if c.Flags().Changed("process-noise") {
		cfg.ProcessNoise = analyzeQFlag
	}
	if c.Flags().Changed("measurement-noise") {
		cfg.MeasurementNoise = analyzeRFlag
	}
	if c.Flags().Changed("state") {
		cfg.StateDimension = analyzeStateFlag
	}
	return cfg, nil
}

func analyzeReadDataset(path string) ([]*exchange.Record, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return exchange.ReadDataset(r)
}

func analyzeWriteOutput(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

func analyzeRun(c *cobra.Command) error {
	cfg, err := analyzeConfig(c)
	if err != nil {
		return err
	}
	recs, err := analyzeReadDataset(analyzeFileFlag)
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}
	log.Debugf("loaded %d exchanges", len(recs))

	pcfg := &report.PipelineConfig{
		Estimator: cfg,
		Algos:     analyzeAlgosFlag,
		PDVWindow: analyzePDVWindowFlag,
	}
	if analyzeMetricFlag != "" {
		m, err := scorer.NewMetric(analyzeMetricFlag)
		if err != nil {
			return fmt.Errorf("bad metric formula: %w", err)
		}
		pcfg.Metric = m
	}

	rep, err := report.Run(context.Background(), recs, pcfg)
	if err != nil {
		return err
	}

	if err := rep.RenderTable(os.Stdout); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	if analyzeJSONFlag != "" {
		if err := analyzeWriteOutput(analyzeJSONFlag, rep.WriteJSON); err != nil {
			return fmt.Errorf("writing JSON report: %w", err)
		}
	}
	if analyzeCSVFlag != "" {
		if err := analyzeWriteOutput(analyzeCSVFlag, rep.WriteEstimatesCSV); err != nil {
			return fmt.Errorf("writing estimates CSV: %w", err)
		}
	}
	return nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run offset estimators over a dataset and score them against ground truth",
	Long:  "Run offset estimators over a dataset and score them against ground truth.\n\n" + scorer.MetricHelp,
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := analyzeRun(c); err != nil {
			log.Fatal(err)
		}
	},
}
