package simulate

import (
	"errors"
	"math"
	"testing"

	"github.com/hierbayes/hierfit/internal/hierr"
)

func TestOutcomePrerequisites(t *testing.T) {
	sk, err := NewOutcomeTrial(2, 5, 2)
	if err != nil {
		t.Fatalf("NewOutcomeTrial: %v", err)
	}
	if sk.State() != Unconfigured {
		t.Errorf("fresh outcome skeleton state = %v, want unconfigured", sk.State())
	}

	err = sk.SampleObservations()
	var serr *hierr.StateError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %T, want *hierr.StateError", err)
	}
	if serr.Item != "group/mean" {
		t.Errorf("StateError item = %q, want group/mean", serr.Item)
	}

	if err := sk.Set(LevelGroup, ParamMean, Vector([]float64{-1, 0})); err != nil {
		t.Fatal(err)
	}
	err = sk.SampleObservations()
	if !errors.As(err, &serr) || serr.Item != "observation/xfn" {
		t.Fatalf("second missing item = %v, want observation/xfn StateError", err)
	}

	if err := sk.Set(LevelObservation, ParamExposureFn, ZeroFn()); err != nil {
		t.Fatal(err)
	}
	if err := sk.SampleObservations(); err != nil {
		t.Fatalf("SampleObservations: %v", err)
	}
	if sk.State() != Sampled {
		t.Errorf("state = %v, want sampled", sk.State())
	}
	for i, v := range sk.Data.Y {
		if v != 0 && v != 1 {
			t.Errorf("Y[%d] = %d, not binary", i, v)
		}
	}
	if len(sk.EtaW) != sk.Data.N {
		t.Errorf("len(EtaW) = %d, want %d", len(sk.EtaW), sk.Data.N)
	}
}

func TestOutcomeLinearPredictor(t *testing.T) {
	// With a deterministic configuration the logit-scale predictor must
	// equal intercept + xfn(exposure) + log(atRisk) exactly.
	sk, err := NewOutcomeTrial(2, 2, 1, WithStudyExposures([]float64{0, 10}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sk.Set(LevelGroup, ParamMean, Vector([]float64{-2, -1})); err != nil {
		t.Fatal(err)
	}
	if err := sk.Set(LevelObservation, ParamExposureFn, Fn(func(x float64) float64 { return 0.1 * x })); err != nil {
		t.Fatal(err)
	}
	offsets := []float64{1, 2, 1, 2}
	if err := sk.Set(LevelObservation, ParamOffset, Vector(offsets)); err != nil {
		t.Fatal(err)
	}
	if err := sk.SampleObservations(); err != nil {
		t.Fatal(err)
	}
	for o := 0; o < sk.Data.N; o++ {
		want := []float64{-2, -1}[sk.Data.StudyOfObs[o]-1] + 0.1*sk.Data.Exposure[o] + math.Log(offsets[o])
		if math.Abs(sk.EtaW[o]-want) > 1e-12 {
			t.Errorf("EtaW[%d] = %g, want %g", o, sk.EtaW[o], want)
		}
	}
}

func TestOutcomeUnitEffect(t *testing.T) {
	sk, err := NewOutcomeTrial(1, 4, 2, WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	if err := sk.Set(LevelGroup, ParamMean, Vector([]float64{0})); err != nil {
		t.Fatal(err)
	}
	if err := sk.Set(LevelObservation, ParamExposureFn, ZeroFn()); err != nil {
		t.Fatal(err)
	}
	if err := sk.Set(LevelUnit, ParamSD, Scalar(1)); err != nil {
		t.Fatal(err)
	}
	if err := sk.SampleObservations(); err != nil {
		t.Fatal(err)
	}
	// Both observations of a unit share the same drawn effect, so their
	// predictors agree (at-risk defaults to 1 and exposure is constant).
	byUnit := make(map[int]float64)
	for o := 0; o < sk.Data.N; o++ {
		u := sk.Data.UnitOfObs[o]
		if prev, ok := byUnit[u]; ok {
			if prev != sk.EtaW[o] {
				t.Errorf("unit %d: predictors differ across observations: %g vs %g", u, prev, sk.EtaW[o])
			}
		} else {
			byUnit[u] = sk.EtaW[o]
		}
	}
}

func TestOutcomeRejectsBadOffset(t *testing.T) {
	sk, err := NewOutcomeTrial(1, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := sk.Set(LevelObservation, ParamOffset, Vector([]float64{1, 0})); err == nil {
		t.Fatal("Set accepted a non-positive at-risk time")
	}
	if err := sk.Set(LevelCluster, ParamSD, Scalar(1)); err == nil {
		t.Fatal("Set accepted a cluster parameter on the outcome model")
	}
}
