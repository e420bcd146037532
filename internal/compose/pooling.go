package compose

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// PoolingFactor diagnoses how strongly a hierarchical level's effects are
// pooled toward their common mean, from the level's posterior random-effect
// draws:
//
//	lambda = 1 - Var_j(E_s[e_sj]) / E_s[Var_j(e_sj)]
//
// where s indexes draws and j indexes the level's units. Values near 1 mean
// near-complete pooling (the level explains little beyond its mean); values
// near 0 mean the level's effects are estimated essentially unpooled.
// Requires posterior draws for the level parameter and at least two units.
func PoolingFactor(ps *ParameterSet, level string) (float64, error) {
	draws, ok := ps.Draws(level)
	if !ok {
		if ps.Has(level) {
			return 0, hierr.Validationf(level, "pooling factor needs posterior draws, not a point value")
		}
		return 0, hierr.Absent(level)
	}
	rows, cols := draws.Dims()
	if cols < 2 {
		return 0, hierr.Validationf(level, "pooling factor needs at least two units, got %d", cols)
	}
	if rows < 2 {
		return 0, hierr.Validationf(level, "pooling factor needs at least two draws, got %d", rows)
	}

	// Per-unit posterior means.
	unitMeans := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, draws)
		unitMeans[j] = stat.Mean(col, nil)
	}

	// Per-draw across-unit variance.
	row := make([]float64, cols)
	meanWithin := 0.0
	for s := 0; s < rows; s++ {
		mat.Row(row, s, draws)
		meanWithin += stat.Variance(row, nil)
	}
	meanWithin /= float64(rows)

	if meanWithin == 0 {
		return 0, hierr.Validationf(level, "degenerate draws: no across-unit variance")
	}
	return 1 - stat.Variance(unitMeans, nil)/meanWithin, nil
}

// VarianceShare reports the fraction of total modeled variance attributable
// to one variance component, computed directly from the posterior (or fixed)
// scale parameters without the composition pipeline. The denominator sums
// the squares of every scale parameter present among cluster_sd, unit_sd,
// and obs_sd; the requested component must itself be present.
func VarianceShare(ps *ParameterSet, sdParam string) (float64, error) {
	own, err := scalarPoint(ps, sdParam)
	if err != nil {
		return 0, err
	}

	components := []string{ParamClusterSD, ParamUnitSD, ParamObsSD}
	seen := sdParam == ParamClusterSD || sdParam == ParamUnitSD || sdParam == ParamObsSD
	if !seen {
		components = append(components, sdParam)
	}

	total := 0.0
	for _, name := range components {
		if !ps.Has(name) {
			continue
		}
		v, err := scalarPoint(ps, name)
		if err != nil {
			return 0, err
		}
		total += v * v
	}
	if total == 0 {
		return 0, hierr.Validationf(sdParam, "all variance components are zero")
	}
	return own * own / total, nil
}

func scalarPoint(ps *ParameterSet, name string) (float64, error) {
	v, err := ps.Point(name)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, hierr.Validationf(name, "length %d, want a scalar", len(v))
	}
	return v[0], nil
}
