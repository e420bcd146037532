// Package compose turns parameter values — posterior draws or fixed points —
// and a dataset's index arrays into interpretable derived quantities: fitted
// means per observation, exposure-response curves, odds ratios, and pooling
// diagnostics. It never talks to the sampler; it only consumes what the
// sampler (or the caller) produced.
package compose

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// Canonical parameter names shared with the sampler boundary.
const (
	ParamGroupMean  = "group_mean"
	ParamClusterRE  = "cluster_re"
	ParamUnitRE     = "unit_re"
	ParamSplineCoef = "spline_coef"
	ParamIntercept  = "intercept"

	ParamClusterSD = "cluster_sd"
	ParamUnitSD    = "unit_sd"
	ParamObsSD     = "obs_sd"

	ParamExposureCoef = "exposure_coef"
)

// ParameterSet maps parameter names to values from one of two sources: a
// draws-by-unit posterior matrix, or a fixed point vector. Presence is
// explicit; composition queries it before including any term and errors on a
// requested term whose parameter is absent.
type ParameterSet struct {
	entries map[string]entry
}

type entry struct {
	draws *mat.Dense
	point []float64
}

// NewParameterSet returns an empty parameter set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{entries: make(map[string]entry)}
}

// SetDraws stores a draws-by-unit posterior matrix (one row per draw, one
// column per unit of the parameter) under name, replacing any prior value.
func (p *ParameterSet) SetDraws(name string, draws *mat.Dense) {
	p.entries[name] = entry{draws: draws}
}

// SetPoint stores a fixed point vector under name, replacing any prior value.
func (p *ParameterSet) SetPoint(name string, point []float64) {
	p.entries[name] = entry{point: slices.Clone(point)}
}

// Has reports whether name is present.
func (p *ParameterSet) Has(name string) bool {
	_, ok := p.entries[name]
	return ok
}

// Names returns the present parameter names in sorted order.
func (p *ParameterSet) Names() []string {
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Point returns the per-unit point estimate for name: the stored vector in
// the fixed case, or the column means of the draws matrix in the posterior
// case. Absent names fail with a StateError.
func (p *ParameterSet) Point(name string) ([]float64, error) {
	e, ok := p.entries[name]
	if !ok {
		return nil, hierr.Absent(name)
	}
	if e.point != nil {
		return slices.Clone(e.point), nil
	}
	rows, cols := e.draws.Dims()
	out := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, e.draws)
		out[j] = stat.Mean(col, nil)
	}
	return out, nil
}

// Draws returns the stored draws matrix for name, or false when name is
// absent or holds only a point value.
func (p *ParameterSet) Draws(name string) (*mat.Dense, bool) {
	e, ok := p.entries[name]
	if !ok || e.draws == nil {
		return nil, false
	}
	return e.draws, true
}

// NumDraws returns the draw count shared by the named parameters, treating
// point-only parameters as compatible with any count. Mismatched draw counts
// fail with a ValidationError.
func (p *ParameterSet) NumDraws(names ...string) (int, error) {
	n := 0
	for _, name := range names {
		d, ok := p.Draws(name)
		if !ok {
			continue
		}
		rows, _ := d.Dims()
		if n == 0 {
			n = rows
		} else if rows != n {
			return 0, hierr.Validationf("draws", "%s has %d draws, other parameters have %d", name, rows, n)
		}
	}
	return n, nil
}

// valueAt returns parameter name's unit j value at draw s, falling back to
// the point value for point-only parameters.
func (p *ParameterSet) valueAt(name string, s, j int) float64 {
	e := p.entries[name]
	if e.draws != nil {
		return e.draws.At(s, j)
	}
	return e.point[j]
}
