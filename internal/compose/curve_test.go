package compose

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

func TestExposureCurvePoint(t *testing.T) {
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1, 3})
	ps.SetPoint(ParamSplineCoef, []float64{0.5})

	xs := []float64{0, 2, 4}
	points, err := ExposureCurve(ps, xs, LinearBasis, CurveOptions{Group: 2})
	if err != nil {
		t.Fatalf("ExposureCurve: %v", err)
	}
	want := []float64{3, 4, 5}
	for i := range want {
		if points[i].X != xs[i] {
			t.Errorf("points[%d].X = %g, want %g", i, points[i].X, xs[i])
		}
		if math.Abs(points[i].Mean-want[i]) > 1e-12 {
			t.Errorf("points[%d].Mean = %g, want %g", i, points[i].Mean, want[i])
		}
		if points[i].Lower != points[i].Mean || points[i].Upper != points[i].Mean {
			t.Errorf("points[%d]: interval without draws should collapse to the mean", i)
		}
	}
}

func TestExposureCurveBasisRowMismatch(t *testing.T) {
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1})
	ps.SetPoint(ParamSplineCoef, []float64{1})

	bad := func(x []float64) (*mat.Dense, error) {
		return mat.NewDense(len(x)+1, 1, nil), nil
	}
	_, err := ExposureCurve(ps, []float64{1, 2}, bad, CurveOptions{})
	if err == nil {
		t.Fatal("ExposureCurve accepted a basis with the wrong row count")
	}
	var verr *hierr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want *hierr.ValidationError", err)
	}
}

func TestExposureCurveMissingCoef(t *testing.T) {
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1})
	_, err := ExposureCurve(ps, []float64{1, 2}, LinearBasis, CurveOptions{})
	if err == nil {
		t.Fatal("ExposureCurve accepted a basis contribution with no spline_coef")
	}
}

func TestExposureCurveIntervalFromDraws(t *testing.T) {
	// Mean draws spread the curve; the interval must bracket the point
	// estimate and be ordered.
	meanDraws := mat.NewDense(101, 1, nil)
	for s := 0; s <= 100; s++ {
		meanDraws.Set(s, 0, float64(s)/50) // 0 .. 2, mean 1
	}
	ps := NewParameterSet()
	ps.SetDraws(ParamGroupMean, meanDraws)
	ps.SetPoint(ParamSplineCoef, []float64{1})

	points, err := ExposureCurve(ps, []float64{0, 5}, LinearBasis, CurveOptions{Prob: 0.9})
	if err != nil {
		t.Fatalf("ExposureCurve: %v", err)
	}
	for i, p := range points {
		if !(p.Lower < p.Mean && p.Mean < p.Upper) {
			t.Errorf("points[%d]: interval [%g, %g] does not bracket mean %g", i, p.Lower, p.Upper, p.Mean)
		}
	}
	// The spline term shifts both curve points by the same draws-free
	// amount, so interval width is constant.
	w0 := points[0].Upper - points[0].Lower
	w1 := points[1].Upper - points[1].Lower
	if math.Abs(w0-w1) > 1e-12 {
		t.Errorf("interval widths differ: %g vs %g", w0, w1)
	}
}

func TestExposureCurveGroupOutOfRange(t *testing.T) {
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1, 2})
	ps.SetPoint(ParamSplineCoef, []float64{1})
	if _, err := ExposureCurve(ps, []float64{1}, LinearBasis, CurveOptions{Group: 3}); err == nil {
		t.Fatal("ExposureCurve accepted an out-of-range group")
	}
}
