package core

import (
	"github.com/signalsfoundry/gridflow/admittance"
	"github.com/signalsfoundry/gridflow/model"
)

// stepResult carries one solve outcome through the enforcement loop.
type stepResult struct {
	converged  bool
	iterations int
	cacheHit   bool
}

// runStep performs a single power-flow solve against the network's
// current state: partition the buses, fetch or build the admittance
// matrices, assemble injections, start from the stored voltage
// profile, dispatch the kernel and write the solution back. Builder
// and dispatch failures are structural and propagate as errors;
// numerical failure comes back as converged == false.
func runStep(net *model.Network, opts Options, builder admittance.Builder, cache *admittanceCache) (stepResult, error) {
	ref, pv, pq := busPartition(net)

	sig := topologySignature(net)
	m, hit := cache.get(sig)
	if !hit {
		var err error
		m, err = builder.Build(net.BaseMVA, net.Buses, net.Branches)
		if err != nil {
			return stepResult{}, err
		}
		cache.put(sig, m)
	}

	sbus := busInjections(net)
	v0 := storedVoltage(net)

	v, converged, iterations, err := runKernel(opts, net, m, cache, sig, sbus, v0, ref, pv, pq)
	if err != nil {
		return stepResult{}, err
	}

	applySolution(net, m, v, ref)
	return stepResult{converged: converged, iterations: iterations, cacheHit: hit}, nil
}
