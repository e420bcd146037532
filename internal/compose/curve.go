package compose

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// BasisFunc evaluates a spline basis at a sequence of exposure or time
// values, one row per value. The basis mathematics lives with the caller;
// compose only consumes the resulting matrix. A nil BasisFunc or a nil
// returned matrix means no basis contribution.
type BasisFunc func(x []float64) (*mat.Dense, error)

// LinearBasis is the single-column identity basis: the value itself. It is
// the degenerate spline every other basis generalizes.
func LinearBasis(x []float64) (*mat.Dense, error) {
	b := mat.NewDense(len(x), 1, nil)
	for i, v := range x {
		b.Set(i, 0, v)
	}
	return b, nil
}

// CurveOptions configures an exposure-response curve evaluation.
type CurveOptions struct {
	// Group selects which top-level mean anchors the curve (1-based).
	Group int
	// Prob is the credible-interval mass when draws are available.
	// Zero means 0.95.
	Prob float64
	// Transform is applied to each evaluated predictor.
	Transform Transform
	// MeanParam names the top-level mean parameter; empty means
	// ParamGroupMean.
	MeanParam string
}

// CurvePoint is one evaluated point of an exposure-response curve. Lower and
// Upper hold the credible interval when posterior draws back the evaluation,
// and equal Mean otherwise.
type CurvePoint struct {
	X     float64
	Mean  float64
	Lower float64
	Upper float64
}

// ExposureCurve evaluates the composed predictor across a caller-supplied
// exposure sequence, substituting a fresh basis evaluation at those values
// and holding the anchoring mean at its posterior/point value. One point per
// sequence value; when draws are available for the mean or the spline
// coefficients, each point carries a credible interval over the draws.
func ExposureCurve(ps *ParameterSet, xs []float64, basis BasisFunc, opts CurveOptions) ([]CurvePoint, error) {
	if len(xs) == 0 {
		return nil, hierr.Validationf("exposure sequence", "no values supplied")
	}
	group := opts.Group
	if group == 0 {
		group = 1
	}
	prob := opts.Prob
	if prob == 0 {
		prob = 0.95
	}
	if prob <= 0 || prob >= 1 {
		return nil, hierr.Validationf("interval probability", "%g outside (0, 1)", prob)
	}
	meanParam := opts.MeanParam
	if meanParam == "" {
		meanParam = ParamGroupMean
	}

	b, cols, err := evalBasis(basis, xs)
	if err != nil {
		return nil, err
	}

	mean, err := ps.Point(meanParam)
	if err != nil {
		return nil, err
	}
	if group < 1 || group > len(mean) {
		return nil, hierr.Validationf("group", "%d outside [1, %d]", group, len(mean))
	}

	var coef []float64
	if cols > 0 {
		coef, err = ps.Point(ParamSplineCoef)
		if err != nil {
			return nil, err
		}
		if len(coef) != cols {
			return nil, hierr.Validationf("spline_coef", "length %d does not match basis column count %d", len(coef), cols)
		}
	}

	points := make([]CurvePoint, len(xs))
	for i, x := range xs {
		e := mean[group-1]
		for j := 0; j < cols; j++ {
			e += b.At(i, j) * coef[j]
		}
		e = applyTransform(e, opts.Transform)
		points[i] = CurvePoint{X: x, Mean: e, Lower: e, Upper: e}
	}

	// Credible intervals from the draws, when any involved parameter
	// carries them.
	names := []string{meanParam}
	if cols > 0 {
		names = append(names, ParamSplineCoef)
	}
	nDraws, err := ps.NumDraws(names...)
	if err != nil {
		return nil, err
	}
	if nDraws == 0 {
		return points, nil
	}

	lo := (1 - prob) / 2
	hi := 1 - lo
	sample := make([]float64, nDraws)
	for i := range xs {
		for s := 0; s < nDraws; s++ {
			e := paramAt(ps, meanParam, s, group-1)
			for j := 0; j < cols; j++ {
				e += b.At(i, j) * paramAt(ps, ParamSplineCoef, s, j)
			}
			sample[s] = applyTransform(e, opts.Transform)
		}
		sort.Float64s(sample)
		points[i].Lower = stat.Quantile(lo, stat.Empirical, sample, nil)
		points[i].Upper = stat.Quantile(hi, stat.Empirical, sample, nil)
	}
	return points, nil
}

// evalBasis evaluates the basis function over xs and validates its shape.
// A nil function or nil matrix is the zero-column state.
func evalBasis(basis BasisFunc, xs []float64) (*mat.Dense, int, error) {
	if basis == nil {
		return nil, 0, nil
	}
	b, err := basis(xs)
	if err != nil {
		return nil, 0, err
	}
	if b == nil {
		return nil, 0, nil
	}
	rows, cols := b.Dims()
	if rows != len(xs) {
		return nil, 0, hierr.Validationf("basis matrix", "row count %d does not match sequence length %d", rows, len(xs))
	}
	return b, cols, nil
}

func applyTransform(e float64, tr Transform) float64 {
	if tr == TransformExp {
		return math.Exp(e)
	}
	return e
}

// paramAt returns parameter name's value for unit j at draw s, falling back
// to the point estimate for point-only parameters.
func paramAt(ps *ParameterSet, name string, s, j int) float64 {
	if _, ok := ps.Draws(name); ok {
		return ps.valueAt(name, s, j)
	}
	return ps.valueAt(name, 0, j)
}
