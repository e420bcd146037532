package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hierbayes/hierfit/internal/compose"
	"github.com/hierbayes/hierfit/internal/standata"
	"github.com/hierbayes/hierfit/internal/store"
)

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose fitted quantities from archived draws",
	}
	cmd.AddCommand(
		newComposeMeansCmd(),
		newComposeCurveCmd(),
		newComposeOddsCmd(),
		newComposePoolingCmd(),
	)
	return cmd
}

// loadParams opens the archive and wraps a named fit's draws in a
// ParameterSet.
func loadParams(cmd *cobra.Command, fitName string) (*compose.ParameterSet, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	archive, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	draws, err := archive.LoadFit(cmd.Context(), fitName)
	if err != nil {
		return nil, err
	}

	ps := compose.NewParameterSet()
	for _, name := range draws.Names() {
		m, err := draws.Matrix(name)
		if err != nil {
			return nil, err
		}
		ps.SetDraws(name, m)
	}
	return ps, nil
}

func newComposeMeansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "means",
		Short: "Fitted mean per observation of a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			fitName, _ := cmd.Flags().GetString("fit")
			dataPath, _ := cmd.Flags().GetString("data")
			model, _ := cmd.Flags().GetString("model")
			includeCluster, _ := cmd.Flags().GetBool("cluster")
			includeUnit, _ := cmd.Flags().GetBool("unit")
			includeTime, _ := cmd.Flags().GetBool("time")
			expOut, _ := cmd.Flags().GetBool("exp")
			jsonOut, _ := cmd.Flags().GetBool("json")

			ps, err := loadParams(cmd, fitName)
			if err != nil {
				return err
			}

			var d standata.View
			meanParam := ""
			switch model {
			case "exposure":
				d, err = readExposureCSV(dataPath)
			case "outcome":
				d, err = readOutcomeCSV(dataPath)
				meanParam = compose.ParamIntercept
			default:
				return fmt.Errorf("unknown model %q (valid: exposure, outcome)", model)
			}
			if err != nil {
				return err
			}

			opts := compose.Options{
				IncludeCluster: includeCluster,
				IncludeUnit:    includeUnit,
				IncludeTime:    includeTime,
				MeanParam:      meanParam,
			}
			if expOut {
				opts.Transform = compose.TransformExp
			}
			means, err := compose.FittedMeans(d, ps, opts)
			if err != nil {
				return err
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]any{
					"fit":   fitName,
					"means": means,
				})
				return nil
			}
			for o, m := range means {
				fmt.Printf("%d\t%g\n", o+1, m)
			}
			return nil
		},
	}

	cmd.Flags().String("fit", "", "Archived fit name (required)")
	cmd.Flags().String("data", "", "Dataset CSV file (required)")
	cmd.Flags().String("model", "exposure", "Model variant: exposure or outcome")
	cmd.Flags().Bool("cluster", false, "Include the cluster random effect")
	cmd.Flags().Bool("unit", false, "Include the unit random effect")
	cmd.Flags().Bool("time", false, "Include the temporal basis term")
	cmd.Flags().Bool("exp", false, "Report on the exponentiated scale")
	cmd.MarkFlagRequired("fit")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newComposeCurveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Exposure-response curve with credible intervals",
		RunE: func(cmd *cobra.Command, args []string) error {
			fitName, _ := cmd.Flags().GetString("fit")
			from, _ := cmd.Flags().GetFloat64("from")
			to, _ := cmd.Flags().GetFloat64("to")
			points, _ := cmd.Flags().GetInt("points")
			group, _ := cmd.Flags().GetInt("group")
			prob, _ := cmd.Flags().GetFloat64("prob")
			expOut, _ := cmd.Flags().GetBool("exp")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if points < 2 {
				return fmt.Errorf("--points must be at least 2, got %d", points)
			}
			if to <= from {
				return fmt.Errorf("--to (%g) must exceed --from (%g)", to, from)
			}

			ps, err := loadParams(cmd, fitName)
			if err != nil {
				return err
			}

			xs := make([]float64, points)
			step := (to - from) / float64(points-1)
			for i := range xs {
				xs[i] = from + float64(i)*step
			}

			opts := compose.CurveOptions{Group: group, Prob: prob}
			if expOut {
				opts.Transform = compose.TransformExp
			}
			var basis compose.BasisFunc
			if ps.Has(compose.ParamSplineCoef) {
				basis = compose.LinearBasis
			}
			curve, err := compose.ExposureCurve(ps, xs, basis, opts)
			if err != nil {
				return err
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]any{
					"fit":   fitName,
					"curve": curve,
				})
				return nil
			}
			fmt.Println("x\tmean\tlower\tupper")
			for _, p := range curve {
				fmt.Printf("%g\t%g\t%g\t%g\n", p.X, p.Mean, p.Lower, p.Upper)
			}
			return nil
		},
	}

	cmd.Flags().String("fit", "", "Archived fit name (required)")
	cmd.Flags().Float64("from", 0, "Lowest exposure value")
	cmd.Flags().Float64("to", 1, "Highest exposure value")
	cmd.Flags().Int("points", 50, "Number of evaluation points")
	cmd.Flags().Int("group", 1, "Group whose mean anchors the curve (1-based)")
	cmd.Flags().Float64("prob", 0.95, "Credible interval mass")
	cmd.Flags().Bool("exp", false, "Report on the exponentiated scale")
	cmd.MarkFlagRequired("fit")

	return cmd
}

func newComposeOddsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "odds",
		Short: "Odds ratio between two exposure values",
		RunE: func(cmd *cobra.Command, args []string) error {
			fitName, _ := cmd.Flags().GetString("fit")
			target, _ := cmd.Flags().GetFloat64("target")
			ref, _ := cmd.Flags().GetFloat64("ref")
			prob, _ := cmd.Flags().GetFloat64("prob")
			jsonOut, _ := cmd.Flags().GetBool("json")

			ps, err := loadParams(cmd, fitName)
			if err != nil {
				return err
			}
			var basis compose.BasisFunc
			if ps.Has(compose.ParamSplineCoef) {
				basis = compose.LinearBasis
			}
			or, err := compose.OddsRatio(ps, target, ref, basis, prob)
			if err != nil {
				return err
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]any{
					"fit":  fitName,
					"odds": or,
				})
				return nil
			}
			fmt.Printf("OR(%g vs %g) = %g [%g, %g]\n", or.Target, or.Ref, or.Point, or.Lower, or.Upper)
			return nil
		},
	}

	cmd.Flags().String("fit", "", "Archived fit name (required)")
	cmd.Flags().Float64("target", 0, "Target exposure value")
	cmd.Flags().Float64("ref", 0, "Reference exposure value")
	cmd.Flags().Float64("prob", 0.95, "Credible interval mass")
	cmd.MarkFlagRequired("fit")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("ref")

	return cmd
}

func newComposePoolingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pooling",
		Short: "Pooling factor and variance share diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			fitName, _ := cmd.Flags().GetString("fit")
			param, _ := cmd.Flags().GetString("param")
			shareParam, _ := cmd.Flags().GetString("share")
			jsonOut, _ := cmd.Flags().GetBool("json")

			ps, err := loadParams(cmd, fitName)
			if err != nil {
				return err
			}

			out := map[string]any{"fit": fitName}
			if param != "" {
				lambda, err := compose.PoolingFactor(ps, param)
				if err != nil {
					return err
				}
				out["param"] = param
				out["pooling_factor"] = lambda
			}
			if shareParam != "" {
				share, err := compose.VarianceShare(ps, shareParam)
				if err != nil {
					return err
				}
				out["share_param"] = shareParam
				out["variance_share"] = share
			}
			if param == "" && shareParam == "" {
				return fmt.Errorf("nothing requested: pass --param and/or --share")
			}

			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(out)
				return nil
			}
			if v, ok := out["pooling_factor"]; ok {
				fmt.Printf("Pooling factor for %s: %g\n", param, v)
			}
			if v, ok := out["variance_share"]; ok {
				fmt.Printf("Variance share of %s: %g\n", shareParam, v)
			}
			return nil
		},
	}

	cmd.Flags().String("fit", "", "Archived fit name (required)")
	cmd.Flags().String("param", "", "Random-effect parameter for the pooling factor (e.g. unit_re)")
	cmd.Flags().String("share", "", "Scale parameter for the variance share (e.g. unit_sd)")
	cmd.MarkFlagRequired("fit")

	return cmd
}
