package compose

import (
	"math"

	"github.com/hierbayes/hierfit/internal/hierarchy"
	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/standata"
)

// Transform is an optional monotone transform applied after summation.
type Transform int

const (
	// TransformNone reports the linear predictor itself.
	TransformNone Transform = iota
	// TransformExp exponentiates, for concentration-scale or odds-scale
	// reporting.
	TransformExp
)

// Options selects which hierarchical terms enter the composition. The
// top-level mean term is always included; cluster, unit, and temporal terms
// are independently toggleable. A toggled-on term whose parameter is absent
// from the ParameterSet is an error, never a silent zero — but a level the
// dataset itself marks inactive (all-zero indices) contributes zero without
// error.
type Options struct {
	IncludeCluster bool
	IncludeUnit    bool
	IncludeTime    bool

	Transform Transform

	// MeanParam names the top-level mean parameter. Empty means
	// ParamGroupMean; outcome-model callers pass ParamIntercept.
	MeanParam string
}

// FittedMeans composes the linear predictor per observation from the
// dataset's own index arrays and the parameter set, summing the active-level
// contributions:
//
//	eta[o] = mean[group(o)] + clusterRE[cluster(o)] + unitRE[unit(o)] + basis[o]·coef
func FittedMeans(d standata.View, ps *ParameterSet, opts Options) ([]float64, error) {
	n := d.NumObs()
	meanParam := opts.MeanParam
	if meanParam == "" {
		meanParam = ParamGroupMean
	}

	groupIdx := d.GroupIndex()
	if groupIdx == nil || !hierarchy.Active(groupIdx) {
		return nil, hierr.Validationf("group index", "dataset has no active top level")
	}
	mean, err := levelValues(ps, meanParam, groupIdx)
	if err != nil {
		return nil, err
	}

	var clusterRE []float64
	clusterIdx := d.ClusterIndex()
	if opts.IncludeCluster && hierarchy.Active(clusterIdx) {
		clusterRE, err = levelValues(ps, ParamClusterRE, clusterIdx)
		if err != nil {
			return nil, err
		}
	}

	var unitRE []float64
	unitIdx := d.UnitIndex()
	if opts.IncludeUnit && hierarchy.Active(unitIdx) {
		unitRE, err = levelValues(ps, ParamUnitRE, unitIdx)
		if err != nil {
			return nil, err
		}
	}

	var coef []float64
	basis := d.BasisMatrix()
	if opts.IncludeTime && basis != nil {
		_, cols := basis.Dims()
		if cols > 0 {
			coef, err = ps.Point(ParamSplineCoef)
			if err != nil {
				return nil, err
			}
			if len(coef) != cols {
				return nil, hierr.Validationf("spline_coef", "length %d does not match basis column count %d", len(coef), cols)
			}
		}
	}

	eta := make([]float64, n)
	for o := 0; o < n; o++ {
		g := groupIdx[o]
		if g == 0 {
			return nil, hierr.Validationf("group index", "observation %d has no group code", o)
		}
		e := mean[g-1]
		if clusterRE != nil {
			if c := clusterIdx[o]; c > 0 {
				e += clusterRE[c-1]
			}
		}
		if unitRE != nil {
			if u := unitIdx[o]; u > 0 {
				e += unitRE[u-1]
			}
		}
		if coef != nil {
			for j := range coef {
				e += basis.At(o, j) * coef[j]
			}
		}
		if opts.Transform == TransformExp {
			e = math.Exp(e)
		}
		eta[o] = e
	}
	return eta, nil
}

// levelValues fetches the point estimate for a level parameter and validates
// it against the level's index array.
func levelValues(ps *ParameterSet, name string, index []int) ([]float64, error) {
	vals, err := ps.Point(name)
	if err != nil {
		return nil, err
	}
	count := hierarchy.Count(index)
	if len(vals) != count {
		return nil, hierr.Validationf(name, "length %d does not match level count %d", len(vals), count)
	}
	return vals, nil
}
