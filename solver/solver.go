// Package solver holds the iterative power-flow kernels: full Newton,
// fast-decoupled, Gauss-Seidel and the linear DC solve. Kernels work
// on per-unit quantities and index sets prepared by the caller and
// never modify their inputs; each returns the voltage vector it
// reached, whether it converged and how many iterations it spent.
package solver

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gridflow/cmat"
)

// Options carries the shared kernel parameters. The controller fills
// in algorithm-specific defaults before dispatching.
type Options struct {
	Tolerance     float64
	MaxIterations int
}

// mismatch computes dS = V .* conj(Ybus*V) - Sbus.
func mismatch(ybus *cmat.Matrix, sbus, v []complex128) []complex128 {
	ibus := make([]complex128, len(v))
	ybus.MulVecTo(ibus, v)
	ds := make([]complex128, len(v))
	for i := range ds {
		ds[i] = v[i]*cmplx.Conj(ibus[i]) - sbus[i]
	}
	return ds
}

// mismatchNorm is the infinity norm over the active residuals: real
// parts at PV and PQ buses, imaginary parts at PQ buses.
func mismatchNorm(ds []complex128, pv, pq []int) float64 {
	var m float64
	for _, b := range pv {
		if a := math.Abs(real(ds[b])); a > m {
			m = a
		}
	}
	for _, b := range pq {
		if a := math.Abs(real(ds[b])); a > m {
			m = a
		}
		if a := math.Abs(imag(ds[b])); a > m {
			m = a
		}
	}
	return m
}

// concatIndex returns a ++ b as a fresh slice.
func concatIndex(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// positions builds a bus -> position lookup for an index set, with -1
// marking buses outside the set.
func positions(n int, set []int) []int {
	pos := make([]int, n)
	for i := range pos {
		pos[i] = -1
	}
	for k, b := range set {
		pos[b] = k
	}
	return pos
}

// denseSubmatrix extracts the real part of m over the given row and
// column sets into a dense matrix for factorization.
func denseSubmatrix(m *cmat.Matrix, rows, cols []int) *mat.Dense {
	_, nc := m.Dims()
	pos := positions(nc, cols)
	d := mat.NewDense(len(rows), len(cols), nil)
	for rk, i := range rows {
		cs, vs := m.Row(i)
		for k, j := range cs {
			if p := pos[j]; p >= 0 {
				d.Set(rk, p, real(vs[k]))
			}
		}
	}
	return d
}
