package priors

import (
	"errors"
	"testing"

	"github.com/hierbayes/hierfit/internal/hierr"
)

func TestDefaultsCoverSchema(t *testing.T) {
	d := Defaults()
	for _, name := range []string{GroupMean, ClusterSD, UnitSD, ObsSD, SplineCoef, Intercept, ExposureCoef, UnitReSD} {
		b, ok := d[name]
		if !ok {
			t.Errorf("Defaults missing %s", name)
			continue
		}
		if b.Lower > b.Upper {
			t.Errorf("%s: default lower %g > upper %g", name, b.Lower, b.Upper)
		}
	}
}

func TestMergeOverride(t *testing.T) {
	base := Defaults()
	merged, err := base.Merge(map[string]Bound{UnitSD: {Lower: 0, Upper: 2}})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged[UnitSD].Upper != 2 {
		t.Errorf("merged unit_sd upper = %g, want 2", merged[UnitSD].Upper)
	}
	// The original must be untouched.
	if base[UnitSD].Upper != 5 {
		t.Errorf("Merge mutated receiver: unit_sd upper = %g", base[UnitSD].Upper)
	}
}

func TestMergeRejectsUnknownName(t *testing.T) {
	_, err := Defaults().Merge(map[string]Bound{"banana_sd": {Lower: 0, Upper: 1}})
	if err == nil {
		t.Fatal("Merge accepted an unknown hyperparameter")
	}
	var verr *hierr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Merge error = %T, want *hierr.ValidationError", err)
	}
}

func TestMergeRejectsInvertedBounds(t *testing.T) {
	_, err := Defaults().Merge(map[string]Bound{ObsSD: {Lower: 3, Upper: 1}})
	if err == nil {
		t.Fatal("Merge accepted inverted bounds")
	}
}
