package solver

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gridflow/cmat"
)

// Newton runs a full Newton-Raphson power flow in polar form. The
// state vector stacks voltage angles at PV and PQ buses over voltage
// magnitudes at PQ buses; each iteration solves the exact Jacobian
// against the power mismatch. A singular Jacobian ends the run as
// non-converged.
func Newton(ybus *cmat.Matrix, sbus, v0 []complex128, ref, pv, pq []int, opt Options) (v []complex128, converged bool, iterations int) {
	n := len(v0)
	v = append([]complex128(nil), v0...)
	va := make([]float64, n)
	vm := make([]float64, n)
	for i := range v {
		va[i] = cmplx.Phase(v[i])
		vm[i] = cmplx.Abs(v[i])
	}

	pvpq := concatIndex(pv, pq)
	npvpq, npq := len(pvpq), len(pq)
	nx := npvpq + npq
	posA := positions(n, pvpq)
	posM := positions(n, pq)

	ds := mismatch(ybus, sbus, v)
	norm := mismatchNorm(ds, pv, pq)
	converged = norm < opt.Tolerance
	if converged || nx == 0 {
		return v, true, 0
	}

	jac := mat.NewDense(nx, nx, nil)
	f := make([]float64, nx)
	dx := mat.NewVecDense(nx, nil)
	for !converged && iterations < opt.MaxIterations {
		iterations++

		buildJacobian(jac, ybus, v, posA, posM, npvpq)
		fillResidual(f, ds, pv, pq, npvpq)

		var lu mat.LU
		lu.Factorize(jac)
		if err := lu.SolveVecTo(dx, false, mat.NewVecDense(nx, f)); err != nil {
			return v, false, iterations
		}

		for k, b := range pvpq {
			va[b] -= dx.AtVec(k)
		}
		for k, b := range pq {
			vm[b] -= dx.AtVec(npvpq + k)
		}
		for i := range v {
			v[i] = cmplx.Rect(vm[i], va[i])
		}

		ds = mismatch(ybus, sbus, v)
		norm = mismatchNorm(ds, pv, pq)
		converged = norm < opt.Tolerance
	}
	return v, converged, iterations
}

// buildJacobian fills jac with the reduced real Jacobian
// [dP/dVa dP/dVm; dQ/dVa dQ/dVm] from the complex power partials.
func buildJacobian(jac *mat.Dense, ybus *cmat.Matrix, v []complex128, posA, posM []int, npvpq int) {
	n := len(v)
	jac.Zero()

	ibus := make([]complex128, n)
	ybus.MulVecTo(ibus, v)
	vnorm := make([]complex128, n)
	for i := range v {
		if a := cmplx.Abs(v[i]); a != 0 {
			vnorm[i] = v[i] / complex(a, 0)
		} else {
			vnorm[i] = 1
		}
	}

	for i := 0; i < n; i++ {
		rowA, rowM := posA[i], posM[i]
		if rowA < 0 && rowM < 0 {
			continue
		}
		cols, vals := ybus.Row(i)
		for k, j := range cols {
			y := vals[k]
			dva := -1i * v[i] * cmplx.Conj(y*v[j])
			dvm := v[i] * cmplx.Conj(y*vnorm[j])
			if j == i {
				dva += 1i * v[i] * cmplx.Conj(ibus[i])
				dvm += cmplx.Conj(ibus[i]) * vnorm[i]
			}
			colA, colM := posA[j], posM[j]
			if rowA >= 0 {
				if colA >= 0 {
					jac.Set(rowA, colA, real(dva))
				}
				if colM >= 0 {
					jac.Set(rowA, npvpq+colM, real(dvm))
				}
			}
			if rowM >= 0 {
				r := npvpq + rowM
				if colA >= 0 {
					jac.Set(r, colA, imag(dva))
				}
				if colM >= 0 {
					jac.Set(r, npvpq+colM, imag(dvm))
				}
			}
		}
	}
}

// fillResidual stacks [Re dS at PV,PQ ; Im dS at PQ] into f.
func fillResidual(f []float64, ds []complex128, pv, pq []int, npvpq int) {
	k := 0
	for _, b := range pv {
		f[k] = real(ds[b])
		k++
	}
	for _, b := range pq {
		f[k] = real(ds[b])
		k++
	}
	for i, b := range pq {
		f[npvpq+i] = imag(ds[b])
	}
}
