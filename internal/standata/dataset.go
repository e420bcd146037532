// Package standata builds the canonical, validated, sampler-ready data
// objects for hierarchical regression. Two variants exist: ExposureData
// (continuous concentration outcome over group/cluster/unit levels) and
// OutcomeData (binary response over study/unit levels). Both expose the same
// index-array and basis-matrix capability, so composition code downstream is
// shared rather than dispatched on a type tag.
//
// The core of a dataset is immutable once constructed; spline and prior
// attachments are non-destructive overlays that return a new dataset value
// without aliasing the original.
package standata

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierarchy"
	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/priors"
)

// View is the capability shared by both dataset variants: the per-observation
// index arrays and the attached basis matrix. A nil basis means no temporal
// or exposure basis is attached and contributes exactly zero downstream.
// An all-zero index array marks that level inactive.
type View interface {
	NumObs() int
	GroupIndex() []int
	ClusterIndex() []int
	UnitIndex() []int
	BasisMatrix() *mat.Dense
}

// ExposureData is the sampler-ready dataset for the exposure (concentration)
// model: N observations over G groups, K optional clusters, and n units.
type ExposureData struct {
	N        int
	Groups   int
	Clusters int
	Units    int

	GroupOfObs   []int
	ClusterOfObs []int
	UnitOfObs    []int

	// Conc is the (log-)concentration outcome. It is nil for datasets built
	// for simulation, and filled in by the simulation skeleton.
	Conc []float64
	Time []float64

	// Basis is the spline basis over Time, nil when unused. BasisDF is its
	// column count (zero when Basis is nil).
	Basis   *mat.Dense
	BasisDF int

	Priors priors.Config
}

// NewExposure constructs an ExposureData from raw identifier and value
// vectors. Cluster identifiers are optional (nil or all zero values marks the
// level inactive). conc may be nil for a dataset destined for simulation;
// times may be nil, in which case all observation times are zero. Any vector
// whose length differs from the observation count aborts construction.
func NewExposure[T comparable](groupIDs, clusterIDs, unitIDs []T, conc, times []float64) (*ExposureData, error) {
	n := len(groupIDs)
	if n == 0 {
		return nil, hierr.Validationf("group ids", "no observations supplied")
	}
	codes, err := hierarchy.Build(groupIDs, clusterIDs, unitIDs, n)
	if err != nil {
		return nil, err
	}
	if conc != nil && len(conc) != n {
		return nil, hierr.Validationf("concentration", "length %d does not match observation count %d", len(conc), n)
	}
	if times != nil && len(times) != n {
		return nil, hierr.Validationf("time", "length %d does not match observation count %d", len(times), n)
	}
	if times == nil {
		times = make([]float64, n)
	}

	return &ExposureData{
		N:            n,
		Groups:       codes.Groups,
		Clusters:     codes.Clusters,
		Units:        codes.Units,
		GroupOfObs:   codes.GroupOfObs,
		ClusterOfObs: codes.ClusterOfObs,
		UnitOfObs:    codes.UnitOfObs,
		Conc:         slices.Clone(conc),
		Time:         slices.Clone(times),
		Priors:       priors.Defaults(),
	}, nil
}

func (d *ExposureData) NumObs() int             { return d.N }
func (d *ExposureData) GroupIndex() []int       { return d.GroupOfObs }
func (d *ExposureData) ClusterIndex() []int     { return d.ClusterOfObs }
func (d *ExposureData) UnitIndex() []int        { return d.UnitOfObs }
func (d *ExposureData) BasisMatrix() *mat.Dense { return d.Basis }

// clone returns a deep copy so overlay attachments never alias the original.
func (d *ExposureData) clone() *ExposureData {
	out := *d
	out.GroupOfObs = slices.Clone(d.GroupOfObs)
	out.ClusterOfObs = slices.Clone(d.ClusterOfObs)
	out.UnitOfObs = slices.Clone(d.UnitOfObs)
	out.Conc = slices.Clone(d.Conc)
	out.Time = slices.Clone(d.Time)
	if d.Basis != nil {
		out.Basis = mat.DenseCopyOf(d.Basis)
	}
	out.Priors, _ = d.Priors.Merge(nil)
	return &out
}

// OutcomeData is the sampler-ready dataset for the binary outcome model:
// N observations over S study arms and an optional unit level.
type OutcomeData struct {
	N       int
	Studies int
	Units   int

	StudyOfObs []int
	UnitOfObs  []int

	// Y is the binary response (0/1). Nil for datasets built for simulation.
	Y []int
	// Exposure is the per-observation exposure value fed to the
	// exposure-response function.
	Exposure []float64
	// AtRisk is the at-risk time offset per observation, entering the linear
	// predictor as log(AtRisk). Defaults to 1 everywhere.
	AtRisk []float64

	Basis   *mat.Dense
	BasisDF int

	Priors priors.Config
}

// NewOutcome constructs an OutcomeData from raw vectors. Unit identifiers
// are optional (nil marks the unit level inactive); y may be nil for a
// dataset destined for simulation; atRisk may be nil, defaulting to 1.
func NewOutcome[T comparable](studyIDs, unitIDs []T, y []int, exposure, atRisk []float64) (*OutcomeData, error) {
	n := len(studyIDs)
	if n == 0 {
		return nil, hierr.Validationf("study ids", "no observations supplied")
	}
	if len(exposure) != n {
		return nil, hierr.Validationf("exposure", "length %d does not match observation count %d", len(exposure), n)
	}
	if y != nil && len(y) != n {
		return nil, hierr.Validationf("response", "length %d does not match observation count %d", len(y), n)
	}
	if atRisk != nil && len(atRisk) != n {
		return nil, hierr.Validationf("at-risk time", "length %d does not match observation count %d", len(atRisk), n)
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, hierr.Validationf("response", "observation %d: value %d is not binary", i, v)
		}
	}

	studyCodes, studies := hierarchy.Dense(studyIDs)

	var unitCodes []int
	units := 0
	if unitIDs == nil {
		unitCodes = make([]int, n)
	} else {
		if len(unitIDs) != n {
			return nil, hierr.Validationf("unit ids", "length %d does not match observation count %d", len(unitIDs), n)
		}
		unitCodes, units = hierarchy.Dense(unitIDs)
	}

	if atRisk == nil {
		atRisk = make([]float64, n)
		for i := range atRisk {
			atRisk[i] = 1
		}
	}

	return &OutcomeData{
		N:          n,
		Studies:    studies,
		Units:      units,
		StudyOfObs: studyCodes,
		UnitOfObs:  unitCodes,
		Y:          slices.Clone(y),
		Exposure:   slices.Clone(exposure),
		AtRisk:     slices.Clone(atRisk),
		Priors:     priors.Defaults(),
	}, nil
}

func (d *OutcomeData) NumObs() int       { return d.N }
func (d *OutcomeData) GroupIndex() []int { return d.StudyOfObs }

// ClusterIndex returns nil: the outcome model has no cluster level.
func (d *OutcomeData) ClusterIndex() []int     { return nil }
func (d *OutcomeData) UnitIndex() []int        { return d.UnitOfObs }
func (d *OutcomeData) BasisMatrix() *mat.Dense { return d.Basis }

func (d *OutcomeData) clone() *OutcomeData {
	out := *d
	out.StudyOfObs = slices.Clone(d.StudyOfObs)
	out.UnitOfObs = slices.Clone(d.UnitOfObs)
	out.Y = slices.Clone(d.Y)
	out.Exposure = slices.Clone(d.Exposure)
	out.AtRisk = slices.Clone(d.AtRisk)
	if d.Basis != nil {
		out.Basis = mat.DenseCopyOf(d.Basis)
	}
	out.Priors, _ = d.Priors.Merge(nil)
	return &out
}
