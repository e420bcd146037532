package standata

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierarchy"
	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/priors"
)

func buildExposure(t *testing.T) *ExposureData {
	t.Helper()
	groups := []string{"low", "low", "high", "high", "high"}
	clusters := []string{"c1", "c2", "c1", "c2", "c2"}
	units := []string{"u1", "u2", "u3", "u4", "u4"}
	conc := []float64{1.2, 0.8, 2.5, 3.1, 2.9}
	times := []float64{0, 0, 0, 1, 2}
	d, err := NewExposure(groups, clusters, units, conc, times)
	if err != nil {
		t.Fatalf("NewExposure: %v", err)
	}
	return d
}

func TestNewExposureCounts(t *testing.T) {
	d := buildExposure(t)
	if d.N != 5 {
		t.Errorf("N = %d, want 5", d.N)
	}
	if d.Groups != 2 || d.Clusters != 2 || d.Units != 4 {
		t.Errorf("counts = (%d, %d, %d), want (2, 2, 4)", d.Groups, d.Clusters, d.Units)
	}
}

func TestRoundTripCounts(t *testing.T) {
	// Extracting the index arrays and re-deriving counts must match the
	// originally stored G/K/n.
	d := buildExposure(t)
	if got := hierarchy.Count(d.GroupIndex()); got != d.Groups {
		t.Errorf("re-derived group count = %d, want %d", got, d.Groups)
	}
	if got := hierarchy.Count(d.ClusterIndex()); got != d.Clusters {
		t.Errorf("re-derived cluster count = %d, want %d", got, d.Clusters)
	}
	if got := hierarchy.Count(d.UnitIndex()); got != d.Units {
		t.Errorf("re-derived unit count = %d, want %d", got, d.Units)
	}
}

func TestNewExposureLengthMismatch(t *testing.T) {
	_, err := NewExposure([]string{"a", "b"}, nil, []string{"u1", "u2"}, []float64{1}, nil)
	if err == nil {
		t.Fatal("NewExposure accepted a short concentration vector")
	}
	var verr *hierr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want *hierr.ValidationError", err)
	}
}

func TestWithBasis(t *testing.T) {
	d := buildExposure(t)

	t.Run("row mismatch", func(t *testing.T) {
		b := mat.NewDense(3, 2, nil)
		if _, err := d.WithBasis(b); err == nil {
			t.Fatal("WithBasis accepted a basis with the wrong row count")
		}
	})

	t.Run("attach", func(t *testing.T) {
		b := mat.NewDense(5, 3, nil)
		b.Set(0, 0, 1.5)
		out, err := d.WithBasis(b)
		if err != nil {
			t.Fatalf("WithBasis: %v", err)
		}
		if out.BasisDF != 3 {
			t.Errorf("BasisDF = %d, want 3", out.BasisDF)
		}
		if d.Basis != nil {
			t.Error("WithBasis modified the original dataset")
		}
		// The attachment must not alias the caller's matrix.
		b.Set(0, 0, 99)
		if out.Basis.At(0, 0) != 1.5 {
			t.Error("attached basis aliases the caller's matrix")
		}
	})

	t.Run("nil is the no-effect state", func(t *testing.T) {
		out, err := d.WithBasis(nil)
		if err != nil {
			t.Fatalf("WithBasis(nil): %v", err)
		}
		if out.Basis != nil || out.BasisDF != 0 {
			t.Error("nil basis should attach the zero-column state")
		}
	})
}

func TestWithPriors(t *testing.T) {
	d := buildExposure(t)

	out, err := d.WithPriors(map[string]priors.Bound{priors.UnitSD: {Lower: 0, Upper: 2}})
	if err != nil {
		t.Fatalf("WithPriors: %v", err)
	}
	if out.Priors[priors.UnitSD].Upper != 2 {
		t.Errorf("overlaid unit_sd upper = %g, want 2", out.Priors[priors.UnitSD].Upper)
	}
	if d.Priors[priors.UnitSD].Upper != 5 {
		t.Error("WithPriors modified the original dataset")
	}

	if _, err := d.WithPriors(map[string]priors.Bound{"nope": {}}); err == nil {
		t.Fatal("WithPriors accepted an unknown hyperparameter")
	}
}

func TestNewOutcome(t *testing.T) {
	studies := []string{"s1", "s1", "s2", "s2"}
	units := []string{"h1", "h2", "h3", "h4"}
	y := []int{0, 1, 1, 0}
	exposure := []float64{10, 20, 15, 5}

	d, err := NewOutcome(studies, units, y, exposure, nil)
	if err != nil {
		t.Fatalf("NewOutcome: %v", err)
	}
	if d.Studies != 2 || d.Units != 4 {
		t.Errorf("counts = (%d, %d), want (2, 4)", d.Studies, d.Units)
	}
	for i, v := range d.AtRisk {
		if v != 1 {
			t.Errorf("AtRisk[%d] = %g, want default 1", i, v)
		}
	}
	if d.ClusterIndex() != nil {
		t.Error("outcome dataset should have no cluster level")
	}
}

func TestNewOutcomeRejectsNonBinary(t *testing.T) {
	_, err := NewOutcome([]string{"s1", "s1"}, nil, []int{0, 2}, []float64{1, 2}, nil)
	if err == nil {
		t.Fatal("NewOutcome accepted a non-binary response")
	}
}

func TestNewOutcomeOptionalUnits(t *testing.T) {
	d, err := NewOutcome([]string{"s1", "s2"}, nil, []int{0, 1}, []float64{1, 2}, nil)
	if err != nil {
		t.Fatalf("NewOutcome: %v", err)
	}
	if d.Units != 0 || hierarchy.Active(d.UnitOfObs) {
		t.Error("nil unit ids should mark the unit level inactive")
	}
}
