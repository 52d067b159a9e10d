package core

import "github.com/signalsfoundry/gridflow/model"

// busPartition splits the bus indices into the solve roles. A bus
// counts as REF or PV only while it has in-service generation; any bus
// without an in-service generator degrades to PQ regardless of its
// declared type. Index order is ascending within each set.
func busPartition(net *model.Network) (ref, pv, pq []int) {
	hasGen := make([]bool, len(net.Buses))
	for i := range net.Gens {
		g := &net.Gens[i]
		if g.InService && g.Bus >= 0 && g.Bus < len(hasGen) {
			hasGen[g.Bus] = true
		}
	}
	for i := range net.Buses {
		switch net.Buses[i].Type {
		case model.BusRef:
			if hasGen[i] {
				ref = append(ref, i)
			} else {
				pq = append(pq, i)
			}
		case model.BusPV:
			if hasGen[i] {
				pv = append(pv, i)
			} else {
				pq = append(pq, i)
			}
		case model.BusPQ:
			pq = append(pq, i)
		}
	}
	return ref, pv, pq
}
