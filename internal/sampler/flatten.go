package sampler

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/priors"
	"github.com/hierbayes/hierfit/internal/standata"
)

// FlatData is a dataset flattened to named values, the shape the external
// sampler consumes: scalar dimensions, per-observation index arrays,
// per-observation value vectors, 2-element prior bound vectors, and the
// basis matrix.
type FlatData struct {
	// Ints holds scalar dimensions (observation and level counts, basis
	// degrees of freedom).
	Ints map[string]int
	// IndexVecs holds the per-observation integer index arrays.
	IndexVecs map[string][]int
	// Vecs holds per-observation value vectors and 2-element prior bounds.
	Vecs map[string][]float64
	// Basis is the attached spline basis, nil when none.
	Basis *mat.Dense
}

// NumObs returns the declared observation count.
func (f FlatData) NumObs() int { return f.Ints["N"] }

// names returns map keys in sorted order, for deterministic encoding.
func names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FlattenExposure flattens an exposure dataset for the sampler.
func FlattenExposure(d *standata.ExposureData) FlatData {
	f := FlatData{
		Ints: map[string]int{
			"N":      d.N,
			"G":      d.Groups,
			"K":      d.Clusters,
			"n_unit": d.Units,
			"df":     d.BasisDF,
		},
		IndexVecs: map[string][]int{
			"group_of_obs":   d.GroupOfObs,
			"cluster_of_obs": d.ClusterOfObs,
			"unit_of_obs":    d.UnitOfObs,
		},
		Vecs: map[string][]float64{
			"time": d.Time,
		},
		Basis: d.Basis,
	}
	if d.Conc != nil {
		f.Vecs["conc"] = d.Conc
	}
	addPriors(f.Vecs, d.Priors)
	return f
}

// FlattenOutcome flattens an outcome dataset for the sampler.
func FlattenOutcome(d *standata.OutcomeData) FlatData {
	f := FlatData{
		Ints: map[string]int{
			"N":      d.N,
			"S":      d.Studies,
			"n_unit": d.Units,
			"df":     d.BasisDF,
		},
		IndexVecs: map[string][]int{
			"study_of_obs": d.StudyOfObs,
			"unit_of_obs":  d.UnitOfObs,
		},
		Vecs: map[string][]float64{
			"exposure": d.Exposure,
			"at_risk":  d.AtRisk,
		},
		Basis: d.Basis,
	}
	if d.Y != nil {
		y := make([]float64, len(d.Y))
		for i, v := range d.Y {
			y[i] = float64(v)
		}
		f.Vecs["y"] = y
	}
	addPriors(f.Vecs, d.Priors)
	return f
}

func addPriors(vecs map[string][]float64, p priors.Config) {
	for name, b := range p {
		vecs["prior_"+name] = []float64{b.Lower, b.Upper}
	}
}
