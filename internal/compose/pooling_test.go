package compose

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestPoolingFactorCompletePooling(t *testing.T) {
	// Units whose posterior means coincide are fully pooled: the
	// between-unit variance of the means is zero, so lambda is 1.
	rng := rand.New(rand.NewSource(3))
	draws := mat.NewDense(400, 4, nil)
	for s := 0; s < 400; s++ {
		base := rng.Float64() - 0.5
		for j := 0; j < 4; j++ {
			// Alternate signs so each unit's mean over draws is ~0
			// while every draw has across-unit spread.
			v := base
			if j%2 == 1 {
				v = -base
			}
			draws.Set(s, j, v)
		}
	}

	lambda, err := PoolingFactor(mustDraws(ParamUnitRE, draws), ParamUnitRE)
	if err != nil {
		t.Fatalf("PoolingFactor: %v", err)
	}
	if lambda < 0.99 {
		t.Errorf("lambda = %g, want ~1 for fully pooled units", lambda)
	}
}

func TestPoolingFactorNoPooling(t *testing.T) {
	// Units with far-apart, tightly concentrated posteriors are unpooled:
	// lambda is near 0 (between-unit variance dominates).
	draws := mat.NewDense(200, 3, nil)
	centers := []float64{-10, 0, 10}
	rng := rand.New(rand.NewSource(4))
	for s := 0; s < 200; s++ {
		for j := 0; j < 3; j++ {
			draws.Set(s, j, centers[j]+0.001*(rng.Float64()-0.5))
		}
	}
	lambda, err := PoolingFactor(mustDraws(ParamUnitRE, draws), ParamUnitRE)
	if err != nil {
		t.Fatalf("PoolingFactor: %v", err)
	}
	if math.Abs(lambda) > 0.05 {
		t.Errorf("lambda = %g, want ~0 for unpooled units", lambda)
	}
}

func TestPoolingFactorRequiresDraws(t *testing.T) {
	ps := NewParameterSet()
	ps.SetPoint(ParamUnitRE, []float64{1, 2, 3})
	if _, err := PoolingFactor(ps, ParamUnitRE); err == nil {
		t.Fatal("PoolingFactor accepted a point-only parameter")
	}
	if _, err := PoolingFactor(NewParameterSet(), ParamUnitRE); err == nil {
		t.Fatal("PoolingFactor accepted an absent parameter")
	}
}

func TestVarianceShare(t *testing.T) {
	ps := NewParameterSet()
	ps.SetPoint(ParamClusterSD, []float64{1})
	ps.SetPoint(ParamUnitSD, []float64{2})
	ps.SetPoint(ParamObsSD, []float64{2})

	share, err := VarianceShare(ps, ParamUnitSD)
	if err != nil {
		t.Fatalf("VarianceShare: %v", err)
	}
	want := 4.0 / 9.0
	if math.Abs(share-want) > 1e-12 {
		t.Errorf("share = %g, want %g", share, want)
	}

	if _, err := VarianceShare(ps, ParamExposureCoef); err == nil {
		t.Error("VarianceShare accepted an absent component")
	}
}

func mustDraws(name string, m *mat.Dense) *ParameterSet {
	ps := NewParameterSet()
	ps.SetDraws(name, m)
	return ps
}
