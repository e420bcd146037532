package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hierbayes/hierfit/internal/logging"
	"github.com/hierbayes/hierfit/internal/sampler"
	"github.com/hierbayes/hierfit/internal/store"
)

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a model to a dataset and archive the draws",
		Long: `Flatten a CSV dataset, invoke the configured external sampler, and
store the resulting draws in the local archive under --name.

Example:
  hierfit fit --data trial.csv --model exposure --name trial-a`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataPath, _ := cmd.Flags().GetString("data")
			model, _ := cmd.Flags().GetString("model")
			name, _ := cmd.Flags().GetString("name")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			if cfg.Sampler.Command == "" {
				return fmt.Errorf("no sampler command configured (set sampler.command or HIERFIT_SAMPLER_COMMAND)")
			}

			var flat sampler.FlatData
			switch model {
			case "exposure":
				d, err := readExposureCSV(dataPath)
				if err != nil {
					return err
				}
				if d, err = d.WithPriors(cfg.Priors); err != nil {
					return err
				}
				flat = sampler.FlattenExposure(d)
			case "outcome":
				d, err := readOutcomeCSV(dataPath)
				if err != nil {
					return err
				}
				if d, err = d.WithPriors(cfg.Priors); err != nil {
					return err
				}
				flat = sampler.FlattenOutcome(d)
			default:
				return fmt.Errorf("unknown model %q (valid: exposure, outcome)", model)
			}

			ctl := sampler.Control{
				Iter:         cfg.Sampler.Iter,
				Warmup:       cfg.Sampler.Warmup,
				Chains:       cfg.Sampler.Chains,
				AdaptDelta:   cfg.Sampler.AdaptDelta,
				MaxTreedepth: cfg.Sampler.MaxTreedepth,
			}

			runLog := logging.NewRunLogger(filepath.Dir(cfg.Store.Path), cfg.Logging.Level)
			defer runLog.Close()
			runLog.Log(map[string]any{
				"event":        "fit",
				"name":         name,
				"model":        model,
				"observations": flat.NumObs(),
				"chains":       ctl.Chains,
			})

			s := &sampler.CommandSampler{Path: cfg.Sampler.Command, Logger: logger}
			draws, err := s.Sample(cmd.Context(), flat, ctl)
			if err != nil {
				return err
			}

			archive, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer archive.Close()
			if err := archive.SaveFit(cmd.Context(), name, model, ctl, draws); err != nil {
				return err
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":     "fitted",
					"name":       name,
					"model":      model,
					"parameters": draws.Names(),
				})
			} else {
				fmt.Printf("Fit %q archived (%d parameters)\n", name, len(draws.Names()))
			}
			return nil
		},
	}

	cmd.Flags().String("data", "", "Dataset CSV file (required)")
	cmd.Flags().String("model", "exposure", "Model variant: exposure or outcome")
	cmd.Flags().String("name", "", "Archive name for the fit (required)")
	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newFitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fits",
		Short: "List archived fits",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			archive, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer archive.Close()

			fits, err := archive.ListFits(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]any{
					"fits":  fits,
					"count": len(fits),
				})
				return nil
			}
			if len(fits) == 0 {
				fmt.Println("No fits archived yet. Run 'hierfit fit' first.")
				return nil
			}
			fmt.Printf("Archived fits (%d):\n\n", len(fits))
			for i, f := range fits {
				fmt.Printf("%d. %s [%s]\n", i+1, f.Name, f.Model)
				fmt.Printf("   Created: %s\n", f.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("   Chains: %d, Iter: %d, Warmup: %d\n",
					f.Control.Chains, f.Control.Iter, f.Control.Warmup)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an archived fit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			archive, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer archive.Close()
			if err := archive.DeleteFit(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted fit %q\n", args[0])
			return nil
		},
	})

	return cmd
}
