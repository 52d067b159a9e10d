package solver

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gridflow/cmat"
)

// FastDecoupled runs the fast-decoupled power flow using the constant
// matrices bp and bpp (full size; the kernel reduces them to the
// active index sets). Each matrix is factorized once and reused for
// every half-iteration: bp drives the angle update from the active
// mismatch, bpp the magnitude update from the reactive mismatch. One
// iteration is a P half followed by a Q half.
func FastDecoupled(ybus, bp, bpp *cmat.Matrix, sbus, v0 []complex128, ref, pv, pq []int, opt Options) (v []complex128, converged bool, iterations int) {
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
	if npvpq == 0 {
		return v, true, 0
	}

	p, q := scaledMismatch(ybus, sbus, v, vm, pvpq, pq)
	converged = normInf(p) < opt.Tolerance && normInf(q) < opt.Tolerance
	if converged {
		return v, true, 0
	}

	var luP mat.LU
	luP.Factorize(denseSubmatrix(bp, pvpq, pvpq))
	dva := mat.NewVecDense(npvpq, nil)

	var luQ mat.LU
	var dvm *mat.VecDense
	if npq > 0 {
		luQ.Factorize(denseSubmatrix(bpp, pq, pq))
		dvm = mat.NewVecDense(npq, nil)
	}

	for iterations < opt.MaxIterations {
		iterations++

		// P half: angle correction from the scaled active mismatch.
		if err := luP.SolveVecTo(dva, false, mat.NewVecDense(npvpq, p)); err != nil {
			return v, false, iterations
		}
		for k, b := range pvpq {
			va[b] -= dva.AtVec(k)
		}
		for i := range v {
			v[i] = cmplx.Rect(vm[i], va[i])
		}
		p, q = scaledMismatch(ybus, sbus, v, vm, pvpq, pq)
		if normInf(p) < opt.Tolerance && normInf(q) < opt.Tolerance {
			return v, true, iterations
		}

		if npq == 0 {
			continue
		}

		// Q half: magnitude correction from the scaled reactive mismatch.
		if err := luQ.SolveVecTo(dvm, false, mat.NewVecDense(npq, q)); err != nil {
			return v, false, iterations
		}
		for k, b := range pq {
			vm[b] -= dvm.AtVec(k)
		}
		for i := range v {
			v[i] = cmplx.Rect(vm[i], va[i])
		}
		p, q = scaledMismatch(ybus, sbus, v, vm, pvpq, pq)
		if normInf(p) < opt.Tolerance && normInf(q) < opt.Tolerance {
			return v, true, iterations
		}
	}
	return v, false, iterations
}

// scaledMismatch returns the mismatch divided through by the voltage
// magnitude: active part over pvpq, reactive part over pq.
func scaledMismatch(ybus *cmat.Matrix, sbus, v []complex128, vm []float64, pvpq, pq []int) (p, q []float64) {
	ds := mismatch(ybus, sbus, v)
	p = make([]float64, len(pvpq))
	for k, b := range pvpq {
		p[k] = real(ds[b]) / vm[b]
	}
	q = make([]float64, len(pq))
	for k, b := range pq {
		q[k] = imag(ds[b]) / vm[b]
	}
	return p, q
}

func normInf(x []float64) float64 {
	var m float64
	for _, a := range x {
		if v := math.Abs(a); v > m {
			m = v
		}
	}
	return m
}
