package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hierbayes/hierfit/internal/simulate"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Sample a synthetic dataset from a scenario file",
		Long: `Build a simulation skeleton from a YAML scenario, draw one dataset
from the configured generative model, and write it as CSV.

Example:
  hierfit simulate --scenario trial.yaml --out trial.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			outPath, _ := cmd.Flags().GetString("out")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			scenario, err := simulate.LoadScenario(scenarioPath)
			if err != nil {
				return fmt.Errorf("loading scenario: %w", err)
			}
			sk, err := scenario.Build()
			if err != nil {
				return fmt.Errorf("building skeleton: %w", err)
			}
			logger.Debug("skeleton built",
				"state", sk.State().String(),
				"observations", sk.Data.N,
				"groups", sk.Data.Groups,
				"clusters", sk.Data.Clusters,
				"units", sk.Data.Units)

			if err := sk.SampleObservations(); err != nil {
				return fmt.Errorf("sampling observations: %w", err)
			}

			if err := writeExposureCSV(outPath, sk.Data); err != nil {
				return err
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":       "sampled",
					"observations": sk.Data.N,
					"groups":       sk.Data.Groups,
					"clusters":     sk.Data.Clusters,
					"units":        sk.Data.Units,
					"out":          outPath,
				})
			} else {
				fmt.Printf("Sampled %d observations (%d groups, %d units) to %s\n",
					sk.Data.N, sk.Data.Groups, sk.Data.Units, outPath)
			}
			return nil
		},
	}

	cmd.Flags().String("scenario", "", "Scenario YAML file (required)")
	cmd.Flags().String("out", "", "Output CSV file (required)")
	cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagRequired("out")

	return cmd
}
