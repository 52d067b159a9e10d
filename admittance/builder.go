// Package admittance assembles the sparse network matrices a power-flow
// solve consumes: the nodal admittance matrix with its branch-end
// companions, the fast-decoupled B matrices and the linearized DC
// matrices. All quantities are per unit on the system base.
package admittance

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/gridflow/cmat"
	"github.com/signalsfoundry/gridflow/model"
)

var (
	// ErrTopology reports a network that cannot be assembled into
	// matrices: bad dimensions, endpoints out of range or degenerate
	// impedances.
	ErrTopology = errors.New("malformed topology")

	// ErrUnknownBuilder reports an unrecognized builder kind.
	ErrUnknownBuilder = errors.New("unknown admittance builder")
)

// Matrices bundles the nodal admittance matrix Ybus (nbus x nbus) with
// the from-end and to-end branch admittance matrices Yf and Yt
// (nbranch x nbus). Branch current injections are I_f = Yf*V and
// I_t = Yt*V.
type Matrices struct {
	Ybus *cmat.Matrix
	Yf   *cmat.Matrix
	Yt   *cmat.Matrix
}

// Builder constructs admittance matrices from a network. The
// implementation is chosen once, at construction, via NewBuilder.
type Builder interface {
	Build(baseMVA float64, buses []model.Bus, branches []model.Branch) (Matrices, error)
}

// NewBuilder returns the builder implementation registered under kind.
// The empty kind selects the standard builder.
func NewBuilder(kind string) (Builder, error) {
	switch kind {
	case "", "standard":
		return StandardBuilder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilder, kind)
	}
}

func validate(baseMVA float64, buses []model.Bus, branches []model.Branch) error {
	if baseMVA <= 0 {
		return fmt.Errorf("%w: baseMVA %v must be positive", ErrTopology, baseMVA)
	}
	if len(buses) == 0 {
		return fmt.Errorf("%w: no buses", ErrTopology)
	}
	nb := len(buses)
	for i := range branches {
		br := &branches[i]
		if br.From < 0 || br.From >= nb || br.To < 0 || br.To >= nb {
			return fmt.Errorf("%w: branch %d endpoints (%d,%d) outside [0,%d)", ErrTopology, i, br.From, br.To, nb)
		}
		if br.InService && br.R == 0 && br.X == 0 {
			return fmt.Errorf("%w: branch %d has zero series impedance", ErrTopology, i)
		}
	}
	return nil
}

func validateReactance(branches []model.Branch) error {
	for i := range branches {
		if branches[i].InService && branches[i].X == 0 {
			return fmt.Errorf("%w: branch %d has zero reactance", ErrTopology, i)
		}
	}
	return nil
}
