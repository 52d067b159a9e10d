package solver

import (
	"math/cmplx"

	"github.com/signalsfoundry/gridflow/cmat"
)

// GaussSeidel runs a Gauss-Seidel power flow. PQ buses take the
// classical displacement update in sequence, each seeing the voltages
// already updated this sweep. PV buses first refresh their reactive
// injection from the present voltage, apply the same update, then snap
// their magnitude back to the setpoint. Convergence is slow but the
// per-iteration cost is one admittance row per bus.
func GaussSeidel(ybus *cmat.Matrix, sbus, v0 []complex128, ref, pv, pq []int, opt Options) (v []complex128, converged bool, iterations int) {
	n := len(v0)
	v = append([]complex128(nil), v0...)
	s := append([]complex128(nil), sbus...)
	vm := make([]float64, n)
	for i := range v {
		vm[i] = cmplx.Abs(v[i])
	}

	diag := ybus.Diagonal()

	ds := mismatch(ybus, s, v)
	converged = mismatchNorm(ds, pv, pq) < opt.Tolerance
	if converged || len(pv)+len(pq) == 0 {
		return v, true, 0
	}

	for !converged && iterations < opt.MaxIterations {
		iterations++

		for _, k := range pq {
			v[k] += (cmplx.Conj(s[k]/v[k]) - ybus.RowDot(k, v)) / diag[k]
		}

		for _, k := range pv {
			q := imag(v[k] * cmplx.Conj(ybus.RowDot(k, v)))
			s[k] = complex(real(s[k]), q)
			v[k] += (cmplx.Conj(s[k]/v[k]) - ybus.RowDot(k, v)) / diag[k]
			v[k] = complex(vm[k], 0) * v[k] / complex(cmplx.Abs(v[k]), 0)
		}

		ds = mismatch(ybus, s, v)
		converged = mismatchNorm(ds, pv, pq) < opt.Tolerance
	}
	return v, converged, iterations
}
