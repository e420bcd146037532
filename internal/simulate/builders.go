package simulate

import (
	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/standata"
)

// Option adjusts skeleton construction.
type Option func(*buildOptions)

type buildOptions struct {
	seed             uint64
	clustersPerGroup int
	times            func(rep int) float64
	exposures        []float64
	studyExposures   []float64
}

// WithSeed fixes the skeleton's random seed. The default seed is 1; all
// builders are deterministic unless reseeded.
func WithSeed(seed uint64) Option {
	return func(o *buildOptions) { o.seed = seed }
}

// WithClusters activates the cluster level with the given number of clusters
// per group; units are assigned to clusters round-robin within their group.
func WithClusters(perGroup int) Option {
	return func(o *buildOptions) { o.clustersPerGroup = perGroup }
}

// WithTimes sets the observation time for the rep-th repeated measurement of
// a unit (rep starts at 0). The default is the rep index itself.
func WithTimes(fn func(rep int) float64) Option {
	return func(o *buildOptions) { o.times = fn }
}

// WithExposures sets the per-observation exposure vector for outcome-trial
// skeletons.
func WithExposures(values []float64) Option {
	return func(o *buildOptions) { o.exposures = values }
}

// WithStudyExposures sets one exposure value per study arm, applied to every
// observation in that arm.
func WithStudyExposures(values []float64) Option {
	return func(o *buildOptions) { o.studyExposures = values }
}

func applyOptions(opts []Option) buildOptions {
	o := buildOptions{seed: 1, times: func(rep int) float64 { return float64(rep) }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewParallelArms builds an unconfigured exposure skeleton for a
// parallel-arm design: each unit belongs to exactly one group and is
// measured obsPerUnit times.
func NewParallelArms(groups, unitsPerGroup, obsPerUnit int, opts ...Option) (*ExposureSkeleton, error) {
	if groups < 1 || unitsPerGroup < 1 || obsPerUnit < 1 {
		return nil, hierr.Validationf("design", "parallel arms needs at least one group, unit, and observation (got %d/%d/%d)", groups, unitsPerGroup, obsPerUnit)
	}
	o := applyOptions(opts)
	if o.clustersPerGroup > unitsPerGroup {
		return nil, hierr.Validationf("design", "clusters per group %d exceeds units per group %d", o.clustersPerGroup, unitsPerGroup)
	}

	n := groups * unitsPerGroup * obsPerUnit
	groupIDs := make([]int, 0, n)
	unitIDs := make([]int, 0, n)
	times := make([]float64, 0, n)
	var clusterIDs []int
	if o.clustersPerGroup > 0 {
		clusterIDs = make([]int, 0, n)
	}

	for g := 1; g <= groups; g++ {
		for u := 1; u <= unitsPerGroup; u++ {
			unit := (g-1)*unitsPerGroup + u
			cluster := 0
			if o.clustersPerGroup > 0 {
				cluster = (g-1)*o.clustersPerGroup + (u-1)%o.clustersPerGroup + 1
			}
			for rep := 0; rep < obsPerUnit; rep++ {
				groupIDs = append(groupIDs, g)
				unitIDs = append(unitIDs, unit)
				if clusterIDs != nil {
					clusterIDs = append(clusterIDs, cluster)
				}
				times = append(times, o.times(rep))
			}
		}
	}

	data, err := standata.NewExposure(groupIDs, clusterIDs, unitIDs, nil, times)
	if err != nil {
		return nil, err
	}
	return NewExposureSkeleton(data, o.seed), nil
}

// NewCrossover builds an unconfigured exposure skeleton for a crossover
// design: every unit is observed once under every group (arm), one arm per
// period, with arm order rotated across units. Observation time is the
// period index.
func NewCrossover(units, periods int, opts ...Option) (*ExposureSkeleton, error) {
	if units < 1 || periods < 2 {
		return nil, hierr.Validationf("design", "crossover needs at least one unit and two periods (got %d/%d)", units, periods)
	}
	o := applyOptions(opts)

	n := units * periods
	groupIDs := make([]int, 0, n)
	unitIDs := make([]int, 0, n)
	times := make([]float64, 0, n)

	for u := 1; u <= units; u++ {
		for p := 0; p < periods; p++ {
			arm := (u-1+p)%periods + 1
			groupIDs = append(groupIDs, arm)
			unitIDs = append(unitIDs, u)
			times = append(times, o.times(p))
		}
	}

	data, err := standata.NewExposure(groupIDs, nil, unitIDs, nil, times)
	if err != nil {
		return nil, err
	}
	return NewExposureSkeleton(data, o.seed), nil
}

// NewOutcomeTrial builds an unconfigured outcome skeleton: each unit belongs
// to one study arm and contributes obsPerUnit binary observations. Exposure
// values come from WithExposures or WithStudyExposures and default to zero.
func NewOutcomeTrial(studies, unitsPerStudy, obsPerUnit int, opts ...Option) (*OutcomeSkeleton, error) {
	if studies < 1 || unitsPerStudy < 1 || obsPerUnit < 1 {
		return nil, hierr.Validationf("design", "outcome trial needs at least one study, unit, and observation (got %d/%d/%d)", studies, unitsPerStudy, obsPerUnit)
	}
	o := applyOptions(opts)

	n := studies * unitsPerStudy * obsPerUnit
	if o.exposures != nil && len(o.exposures) != n {
		return nil, hierr.Validationf("exposure", "length %d does not match observation count %d", len(o.exposures), n)
	}
	if o.studyExposures != nil && len(o.studyExposures) != studies {
		return nil, hierr.Validationf("exposure", "study exposure length %d does not match study count %d", len(o.studyExposures), studies)
	}

	studyIDs := make([]int, 0, n)
	unitIDs := make([]int, 0, n)
	exposure := make([]float64, 0, n)

	i := 0
	for st := 1; st <= studies; st++ {
		for u := 1; u <= unitsPerStudy; u++ {
			unit := (st-1)*unitsPerStudy + u
			for rep := 0; rep < obsPerUnit; rep++ {
				studyIDs = append(studyIDs, st)
				unitIDs = append(unitIDs, unit)
				switch {
				case o.exposures != nil:
					exposure = append(exposure, o.exposures[i])
				case o.studyExposures != nil:
					exposure = append(exposure, o.studyExposures[st-1])
				default:
					exposure = append(exposure, 0)
				}
				i++
			}
		}
	}

	data, err := standata.NewOutcome(studyIDs, unitIDs, nil, exposure, nil)
	if err != nil {
		return nil, err
	}
	return NewOutcomeSkeleton(data, o.seed), nil
}
