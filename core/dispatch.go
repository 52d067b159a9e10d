package core

import (
	"fmt"

	"github.com/signalsfoundry/gridflow/admittance"
	"github.com/signalsfoundry/gridflow/model"
	"github.com/signalsfoundry/gridflow/solver"
)

// runKernel dispatches one solve to the kernel named by the options.
// Fast-decoupled runs fetch their B matrices through the cache so the
// pair is built at most once per topology and variant while recycling
// is on. Anything outside the dispatch table fails fatally without a
// kernel invocation.
func runKernel(opts Options, net *model.Network, m admittance.Matrices, cache *admittanceCache, sig uint64, sbus, v0 []complex128, ref, pv, pq []int) (v []complex128, converged bool, iterations int, err error) {
	kopt := solver.Options{Tolerance: opts.Tolerance, MaxIterations: opts.MaxIterations}

	switch opts.Algorithm {
	case AlgNewton:
		v, converged, iterations = solver.Newton(m.Ybus, sbus, v0, ref, pv, pq, kopt)

	case AlgFDXB, AlgFDBX:
		variant := admittance.VariantXB
		if opts.Algorithm == AlgFDBX {
			variant = admittance.VariantBX
		}
		bp, bpp, ok := cache.bPair(sig, variant)
		if !ok {
			bp, bpp, err = admittance.BMatrices(variant, net.BaseMVA, net.Buses, net.Branches)
			if err != nil {
				return nil, false, 0, err
			}
			cache.putBPair(sig, variant, bp, bpp)
		}
		v, converged, iterations = solver.FastDecoupled(m.Ybus, bp, bpp, sbus, v0, ref, pv, pq, kopt)

	case AlgGaussSeidel:
		v, converged, iterations = solver.GaussSeidel(m.Ybus, sbus, v0, ref, pv, pq, kopt)

	default:
		return nil, false, 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(opts.Algorithm))
	}
	return v, converged, iterations, nil
}
