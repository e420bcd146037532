package simulate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// Scenario is a declarative description of an exposure simulation: a trial
// topology plus the generative parameter values to apply to it. Scenarios
// load from YAML for the CLI and are built directly in test code.
type Scenario struct {
	Name   string `yaml:"name"`
	Design string `yaml:"design"` // "parallel" or "crossover"
	Seed   uint64 `yaml:"seed"`

	// Parallel-arm topology.
	Groups           int `yaml:"groups"`
	UnitsPerGroup    int `yaml:"units_per_group"`
	ObsPerUnit       int `yaml:"obs_per_unit"`
	ClustersPerGroup int `yaml:"clusters_per_group"`

	// Crossover topology.
	Units   int `yaml:"units"`
	Periods int `yaml:"periods"`

	// Generative parameters. Pointers distinguish "not given" from zero.
	GroupMeans []float64 `yaml:"group_means"`
	ClusterSD  *float64  `yaml:"cluster_sd"`
	UnitSD     *float64  `yaml:"unit_sd"`
	ObsSD      *float64  `yaml:"obs_sd"`

	// TimeSlope configures a linear temporal trend; when absent the
	// scenario has no time effect.
	TimeSlope *float64 `yaml:"time_slope"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	return &sc, nil
}

// Build constructs the skeleton for the scenario's topology and applies
// every given parameter. The result may still be short of Configured if the
// scenario omits prerequisites; the caller sees that on SampleObservations.
func (sc *Scenario) Build() (*ExposureSkeleton, error) {
	seed := sc.Seed
	if seed == 0 {
		seed = 1
	}

	var (
		sk  *ExposureSkeleton
		err error
	)
	switch sc.Design {
	case "parallel", "":
		opts := []Option{WithSeed(seed)}
		if sc.ClustersPerGroup > 0 {
			opts = append(opts, WithClusters(sc.ClustersPerGroup))
		}
		sk, err = NewParallelArms(sc.Groups, sc.UnitsPerGroup, sc.ObsPerUnit, opts...)
	case "crossover":
		sk, err = NewCrossover(sc.Units, sc.Periods, WithSeed(seed))
	default:
		return nil, hierr.Validationf("design", "unknown design %q (valid: parallel, crossover)", sc.Design)
	}
	if err != nil {
		return nil, err
	}

	if sc.GroupMeans != nil {
		if err := sk.Set(LevelGroup, ParamMean, Vector(sc.GroupMeans)); err != nil {
			return nil, err
		}
	}
	if sc.ClusterSD != nil {
		if err := sk.Set(LevelCluster, ParamSD, Scalar(*sc.ClusterSD)); err != nil {
			return nil, err
		}
	}
	if sc.UnitSD != nil {
		if err := sk.Set(LevelUnit, ParamSD, Scalar(*sc.UnitSD)); err != nil {
			return nil, err
		}
	}
	if sc.ObsSD != nil {
		if err := sk.Set(LevelObservation, ParamSD, Scalar(*sc.ObsSD)); err != nil {
			return nil, err
		}
	}

	tv := ZeroFn()
	if sc.TimeSlope != nil {
		slope := *sc.TimeSlope
		tv = Fn(func(t float64) float64 { return slope * t })
	}
	if err := sk.Set(LevelObservation, ParamTimeFn, tv); err != nil {
		return nil, err
	}

	return sk, nil
}
