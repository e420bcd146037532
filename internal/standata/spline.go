package standata

import (
	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// ValidateBasis checks that a basis matrix has one row per element of a
// target sequence of length n. A nil basis is the valid "no effect" state.
// Basis mathematics is out of scope here; the matrix is treated as an opaque
// numeric input.
func ValidateBasis(b *mat.Dense, n int) error {
	if b == nil {
		return nil
	}
	rows, _ := b.Dims()
	if rows != n {
		return hierr.Validationf("basis matrix", "row count %d does not match sequence length %d", rows, n)
	}
	return nil
}

// WithBasis attaches a precomputed spline basis over Time and returns a new
// dataset; the receiver is not modified. A nil basis attaches the degenerate
// "no temporal effect" state, whose contribution downstream is exactly zero.
func (d *ExposureData) WithBasis(b *mat.Dense) (*ExposureData, error) {
	if err := ValidateBasis(b, d.N); err != nil {
		return nil, err
	}
	out := d.clone()
	if b == nil {
		out.Basis = nil
		out.BasisDF = 0
		return out, nil
	}
	out.Basis = mat.DenseCopyOf(b)
	_, out.BasisDF = b.Dims()
	return out, nil
}

// WithBasis attaches a precomputed basis over Exposure and returns a new
// dataset; the receiver is not modified.
func (d *OutcomeData) WithBasis(b *mat.Dense) (*OutcomeData, error) {
	if err := ValidateBasis(b, d.N); err != nil {
		return nil, err
	}
	out := d.clone()
	if b == nil {
		out.Basis = nil
		out.BasisDF = 0
		return out, nil
	}
	out.Basis = mat.DenseCopyOf(b)
	_, out.BasisDF = b.Dims()
	return out, nil
}
