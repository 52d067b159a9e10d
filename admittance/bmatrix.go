package admittance

import (
	"fmt"

	"github.com/signalsfoundry/gridflow/cmat"
	"github.com/signalsfoundry/gridflow/model"
)

// FDVariant selects the fast-decoupled flavor, which decides whether
// branch resistance is dropped from B' (XB) or from B'' (BX).
type FDVariant int

const (
	VariantXB FDVariant = iota
	VariantBX
)

func (v FDVariant) String() string {
	switch v {
	case VariantXB:
		return "XB"
	case VariantBX:
		return "BX"
	default:
		return fmt.Sprintf("FDVariant(%d)", int(v))
	}
}

// BMatrices forms the fast-decoupled iteration matrices B' and B''
// (both nbus x nbus, real values carried in the complex storage).
//
// B' comes from a copy of the network with line charging and bus
// shunts removed and tap magnitudes canceled; phase shifts stay. B''
// comes from a copy with phase shifts removed. The variant decides
// which copy also loses its series resistance.
func BMatrices(variant FDVariant, baseMVA float64, buses []model.Bus, branches []model.Branch) (bp, bpp *cmat.Matrix, err error) {
	if variant != VariantXB && variant != VariantBX {
		return nil, nil, fmt.Errorf("%w: bad fast-decoupled variant %d", ErrTopology, int(variant))
	}
	if err := validate(baseMVA, buses, branches); err != nil {
		return nil, nil, err
	}
	if err := validateReactance(branches); err != nil {
		return nil, nil, err
	}

	pBuses := make([]model.Bus, len(buses))
	copy(pBuses, buses)
	for i := range pBuses {
		pBuses[i].Bs = 0
	}
	pBranches := make([]model.Branch, len(branches))
	copy(pBranches, branches)
	for i := range pBranches {
		pBranches[i].B = 0
		pBranches[i].Tap = 0
		if variant == VariantXB {
			pBranches[i].R = 0
		}
	}
	mp, err := StandardBuilder{}.Build(baseMVA, pBuses, pBranches)
	if err != nil {
		return nil, nil, err
	}

	ppBranches := make([]model.Branch, len(branches))
	copy(ppBranches, branches)
	for i := range ppBranches {
		ppBranches[i].Shift = 0
		if variant == VariantBX {
			ppBranches[i].R = 0
		}
	}
	mpp, err := StandardBuilder{}.Build(baseMVA, buses, ppBranches)
	if err != nil {
		return nil, nil, err
	}

	return negImag(mp.Ybus), negImag(mpp.Ybus), nil
}

// negImag maps each stored entry y to complex(-imag(y), 0), keeping
// the sparsity pattern.
func negImag(m *cmat.Matrix) *cmat.Matrix {
	rows, cols := m.Dims()
	out := cmat.NewCOO(rows, cols)
	for i := 0; i < rows; i++ {
		cs, vs := m.Row(i)
		for k, j := range cs {
			out.Add(i, j, complex(-imag(vs[k]), 0))
		}
	}
	return out.Compress()
}
