// Package sampler is the boundary to the external probabilistic sampler.
// The sampler itself is an opaque collaborator: this package flattens a
// dataset into the named-value structure it consumes, carries the control
// configuration, and decodes the draws it returns. Inference failures are
// surfaced unchanged as ExternalErrors — never interpreted or retried here.
package sampler

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// Control is the per-invocation sampler configuration. Zero values take the
// documented defaults.
type Control struct {
	// Iter is the total iterations per chain (default 2000).
	Iter int
	// Warmup is the warmup iterations per chain (default Iter/2).
	Warmup int
	// Chains is the number of independent chains; they run concurrently
	// inside the external sampler, which joins them before returning
	// (default 4).
	Chains int
	// AdaptDelta is the acceptance-rate target (default 0.9).
	AdaptDelta float64
	// MaxTreedepth bounds the sampler's trajectory depth (default 12).
	MaxTreedepth int
}

// DefaultControl returns the documented defaults.
func DefaultControl() Control {
	return Control{Iter: 2000, Warmup: 1000, Chains: 4, AdaptDelta: 0.9, MaxTreedepth: 12}
}

// withDefaults fills zero fields with their defaults.
func (c Control) withDefaults() Control {
	d := DefaultControl()
	if c.Iter == 0 {
		c.Iter = d.Iter
	}
	if c.Warmup == 0 {
		c.Warmup = c.Iter / 2
	}
	if c.Chains == 0 {
		c.Chains = d.Chains
	}
	if c.AdaptDelta == 0 {
		c.AdaptDelta = d.AdaptDelta
	}
	if c.MaxTreedepth == 0 {
		c.MaxTreedepth = d.MaxTreedepth
	}
	return c
}

// Validate checks the control configuration.
func (c Control) Validate() error {
	c = c.withDefaults()
	if c.AdaptDelta <= 0 || c.AdaptDelta >= 1 {
		return hierr.Validationf("adapt_delta", "%g outside (0, 1)", c.AdaptDelta)
	}
	if c.MaxTreedepth < 1 {
		return hierr.Validationf("max_treedepth", "%d must be at least 1", c.MaxTreedepth)
	}
	if c.Chains < 1 {
		return hierr.Validationf("chains", "%d must be at least 1", c.Chains)
	}
	if c.Warmup >= c.Iter {
		return hierr.Validationf("warmup", "%d must be below iter %d", c.Warmup, c.Iter)
	}
	return nil
}

// Draws is the consolidated output of a sampling run, queryable by parameter
// name. Each parameter holds a draws-by-unit matrix: one row per retained
// iteration across all chains, one column per unit of the parameter.
type Draws struct {
	params map[string]*mat.Dense
}

// NewDraws wraps named draws matrices.
func NewDraws(params map[string]*mat.Dense) *Draws {
	return &Draws{params: params}
}

// Matrix returns the draws for a named parameter. An absent name is a
// StateError, matching composition's treatment of missing parameters.
func (d *Draws) Matrix(name string) (*mat.Dense, error) {
	m, ok := d.params[name]
	if !ok {
		return nil, hierr.Absent(name)
	}
	return m, nil
}

// Names returns the available parameter names in sorted order.
func (d *Draws) Names() []string {
	names := make([]string, 0, len(d.params))
	for name := range d.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sampler runs one inference pass over flattened data. Implementations wrap
// whatever external engine is in use; failures come back as ExternalErrors.
type Sampler interface {
	Sample(ctx context.Context, data FlatData, ctl Control) (*Draws, error)
}
