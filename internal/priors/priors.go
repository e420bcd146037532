// Package priors defines the recognized hyperparameter schema for the
// sampler boundary. Every hyperparameter has a documented default bound
// pair; attaching an unrecognized name is a validation error. The schema is
// an explicit enumeration, not an ambient registry.
package priors

import (
	"sort"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// Recognized hyperparameter names.
const (
	GroupMean    = "group_mean"    // top-level mean effect per group
	ClusterSD    = "cluster_sd"    // cluster random-effect scale
	UnitSD       = "unit_sd"       // unit random-effect scale
	ObsSD        = "obs_sd"        // observation noise scale
	SplineCoef   = "spline_coef"   // basis coefficient magnitude
	Intercept    = "intercept"     // outcome-model study intercept
	ExposureCoef = "exposure_coef" // linear exposure slope (logit scale)
	UnitReSD     = "unit_re_sd"    // outcome-model unit random-effect scale
)

// Bound is a lower/upper hyperparameter bound pair.
type Bound struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Config maps hyperparameter names to their bound pairs.
type Config map[string]Bound

// Defaults returns the full schema with documented default bounds.
func Defaults() Config {
	return Config{
		GroupMean:    {Lower: -10, Upper: 10},
		ClusterSD:    {Lower: 0, Upper: 5},
		UnitSD:       {Lower: 0, Upper: 5},
		ObsSD:        {Lower: 0, Upper: 5},
		SplineCoef:   {Lower: -5, Upper: 5},
		Intercept:    {Lower: -10, Upper: 10},
		ExposureCoef: {Lower: -5, Upper: 5},
		UnitReSD:     {Lower: 0, Upper: 5},
	}
}

// Recognized reports whether name is part of the schema.
func Recognized(name string) bool {
	_, ok := Defaults()[name]
	return ok
}

// Names returns the recognized hyperparameter names in sorted order.
func Names() []string {
	d := Defaults()
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge returns a copy of c with the given overrides applied. An override
// for a name outside the schema fails with a ValidationError; c is left
// untouched either way.
func (c Config) Merge(overrides map[string]Bound) (Config, error) {
	for name := range overrides {
		if !Recognized(name) {
			return nil, hierr.Validationf("prior", "unknown hyperparameter %q", name)
		}
	}
	out := make(Config, len(c))
	for name, b := range c {
		out[name] = b
	}
	for name, b := range overrides {
		if b.Lower > b.Upper {
			return nil, hierr.Validationf("prior", "%s: lower bound %g exceeds upper bound %g", name, b.Lower, b.Upper)
		}
		out[name] = b
	}
	return out, nil
}
