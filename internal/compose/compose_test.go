package compose

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/standata"
)

// fixture builds a 6-observation dataset: 2 groups, 2 clusters, 3 units.
func fixture(t *testing.T) *standata.ExposureData {
	t.Helper()
	groups := []string{"a", "a", "a", "b", "b", "b"}
	clusters := []string{"c1", "c1", "c2", "c2", "c1", "c1"}
	units := []string{"u1", "u1", "u2", "u2", "u3", "u3"}
	times := []float64{0, 1, 0, 1, 0, 1}
	d, err := standata.NewExposure(groups, clusters, units, nil, times)
	if err != nil {
		t.Fatalf("NewExposure: %v", err)
	}
	return d
}

func fullParams() *ParameterSet {
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1, 2})
	ps.SetPoint(ParamClusterRE, []float64{0.5, -0.5})
	ps.SetPoint(ParamUnitRE, []float64{0.1, 0.2, 0.3})
	return ps
}

func TestFittedMeansAllLevels(t *testing.T) {
	d := fixture(t)
	got, err := FittedMeans(d, fullParams(), Options{IncludeCluster: true, IncludeUnit: true})
	if err != nil {
		t.Fatalf("FittedMeans: %v", err)
	}
	want := []float64{
		1 + 0.5 + 0.1, // obs 0: group a, cluster c1, unit u1
		1 + 0.5 + 0.1,
		1 - 0.5 + 0.2,
		2 - 0.5 + 0.2,
		2 + 0.5 + 0.3,
		2 + 0.5 + 0.3,
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("eta[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestFittedMeansMissingUnitRE(t *testing.T) {
	// Requesting the unit term with no unit_re in the set must error,
	// never silently compose as zero.
	d := fixture(t)
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1, 2})

	_, err := FittedMeans(d, ps, Options{IncludeUnit: true})
	if err == nil {
		t.Fatal("FittedMeans composed a missing unit_re as zero")
	}
	var serr *hierr.StateError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %T, want *hierr.StateError", err)
	}
	if serr.Item != ParamUnitRE {
		t.Errorf("StateError item = %q, want %q", serr.Item, ParamUnitRE)
	}
}

func TestFittedMeansInactiveClusterIsZero(t *testing.T) {
	// A level legitimately inactive in the dataset contributes zero
	// without error, even when its inclusion is requested.
	groups := []string{"a", "b"}
	units := []string{"u1", "u2"}
	d, err := standata.NewExposure(groups, nil, units, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ps := NewParameterSet()
	ps.SetPoint(ParamGroupMean, []float64{1, 2})
	ps.SetPoint(ParamUnitRE, []float64{0, 0})

	got, err := FittedMeans(d, ps, Options{IncludeCluster: true, IncludeUnit: true})
	if err != nil {
		t.Fatalf("FittedMeans with inactive cluster: %v", err)
	}
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("eta = %v, want [1 2]", got)
	}
}

func TestFittedMeansZeroColumnBasisEquivalence(t *testing.T) {
	// Composing with the temporal term toggled on over a zero-column
	// (nil) basis must equal composing with it toggled off.
	d := fixture(t)
	ps := fullParams()

	withTime, err := FittedMeans(d, ps, Options{IncludeCluster: true, IncludeUnit: true, IncludeTime: true})
	if err != nil {
		t.Fatalf("FittedMeans include-time: %v", err)
	}
	withoutTime, err := FittedMeans(d, ps, Options{IncludeCluster: true, IncludeUnit: true})
	if err != nil {
		t.Fatalf("FittedMeans exclude-time: %v", err)
	}
	for i := range withTime {
		if withTime[i] != withoutTime[i] {
			t.Errorf("eta[%d]: include-time %g != exclude-time %g", i, withTime[i], withoutTime[i])
		}
	}
}

func TestFittedMeansSplineContribution(t *testing.T) {
	d := fixture(t)
	basis := mat.NewDense(6, 2, nil)
	for o := 0; o < 6; o++ {
		tt := d.Time[o]
		basis.Set(o, 0, tt)
		basis.Set(o, 1, tt*tt)
	}
	dWith, err := d.WithBasis(basis)
	if err != nil {
		t.Fatal(err)
	}
	ps := fullParams()
	ps.SetPoint(ParamSplineCoef, []float64{2, 1})

	got, err := FittedMeans(dWith, ps, Options{IncludeCluster: true, IncludeUnit: true, IncludeTime: true})
	if err != nil {
		t.Fatalf("FittedMeans: %v", err)
	}
	base, err := FittedMeans(dWith, ps, Options{IncludeCluster: true, IncludeUnit: true})
	if err != nil {
		t.Fatal(err)
	}
	for o := 0; o < 6; o++ {
		want := base[o] + 2*d.Time[o] + d.Time[o]*d.Time[o]
		if math.Abs(got[o]-want) > 1e-12 {
			t.Errorf("eta[%d] = %g, want %g", o, got[o], want)
		}
	}

	// Coefficient length must match the basis column count.
	ps.SetPoint(ParamSplineCoef, []float64{2})
	if _, err := FittedMeans(dWith, ps, Options{IncludeTime: true}); err == nil {
		t.Error("FittedMeans accepted a short coefficient vector")
	}
}

func TestFittedMeansExpTransform(t *testing.T) {
	d := fixture(t)
	ps := fullParams()
	linear, err := FittedMeans(d, ps, Options{IncludeCluster: true, IncludeUnit: true})
	if err != nil {
		t.Fatal(err)
	}
	expd, err := FittedMeans(d, ps, Options{IncludeCluster: true, IncludeUnit: true, Transform: TransformExp})
	if err != nil {
		t.Fatal(err)
	}
	for i := range linear {
		if math.Abs(expd[i]-math.Exp(linear[i])) > 1e-12 {
			t.Errorf("exp(eta[%d]) mismatch: %g vs %g", i, expd[i], math.Exp(linear[i]))
		}
	}
}

func TestPointFromDraws(t *testing.T) {
	// 3 draws x 2 units; point estimate is the column mean.
	draws := mat.NewDense(3, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
	ps := NewParameterSet()
	ps.SetDraws(ParamGroupMean, draws)
	got, err := ps.Point(ParamGroupMean)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 2 || got[1] != 20 {
		t.Errorf("Point = %v, want [2 20]", got)
	}
}
