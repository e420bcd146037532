package standata

import (
	"github.com/hierbayes/hierfit/internal/priors"
)

// WithPriors overlays hyperparameter bound overrides and returns a new
// dataset; the receiver is not modified. Unknown hyperparameter names are
// rejected. The overlay touches nothing but the prior configuration.
func (d *ExposureData) WithPriors(overrides map[string]priors.Bound) (*ExposureData, error) {
	merged, err := d.Priors.Merge(overrides)
	if err != nil {
		return nil, err
	}
	out := d.clone()
	out.Priors = merged
	return out, nil
}

// WithPriors overlays hyperparameter bound overrides and returns a new
// dataset; the receiver is not modified.
func (d *OutcomeData) WithPriors(overrides map[string]priors.Bound) (*OutcomeData, error) {
	merged, err := d.Priors.Merge(overrides)
	if err != nil {
		return nil, err
	}
	out := d.clone()
	out.Priors = merged
	return out, nil
}
