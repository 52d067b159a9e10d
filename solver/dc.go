package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gridflow/cmat"
)

// ErrSingular reports a DC system that cannot be solved, which means
// the network topology leaves buses without a path to the reference.
var ErrSingular = errors.New("singular DC system")

// DC solves the linear DC power flow Bbus*Va = P for the angles at PV
// and PQ buses, holding the reference angles at their initial values.
// Angles are in radians. Unlike the iterative kernels this either
// succeeds outright or fails on topology, so it returns an error.
func DC(bbus *cmat.Matrix, pbus, va0 []float64, ref, pv, pq []int) ([]float64, error) {
	n := len(va0)
	va := append([]float64(nil), va0...)
	pvpq := concatIndex(pv, pq)
	if len(pvpq) == 0 {
		return va, nil
	}

	isRef := make([]bool, n)
	for _, b := range ref {
		isRef[b] = true
	}

	rhs := make([]float64, len(pvpq))
	for k, b := range pvpq {
		rhs[k] = pbus[b]
		cols, vals := bbus.Row(b)
		for kk, j := range cols {
			if isRef[j] {
				rhs[k] -= real(vals[kk]) * va0[j]
			}
		}
	}

	var lu mat.LU
	lu.Factorize(denseSubmatrix(bbus, pvpq, pvpq))
	x := mat.NewVecDense(len(pvpq), nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(len(pvpq), rhs)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	for k, b := range pvpq {
		va[b] = x.AtVec(k)
	}
	return va, nil
}
