package core

import (
	"math/cmplx"

	"github.com/signalsfoundry/gridflow/admittance"
	"github.com/signalsfoundry/gridflow/cmat"
	"github.com/signalsfoundry/gridflow/model"
)

// applySolution distributes a converged voltage vector back onto the
// network: bus voltages, generator reactive outputs, slack active
// power and branch flows.
//
// Reactive outputs are recomputed from the nodal injection at each
// generator bus. Every generator's Qg is zeroed first, so units that
// are out of service end up at zero unless something downstream
// restores them. Where several in-service units share a bus, the bus
// total is split equally, then spread in proportion to each unit's
// reactive range; buses whose units have no aggregate range keep the
// equal split.
func applySolution(net *model.Network, m admittance.Matrices, v []complex128, ref []int) {
	base := net.BaseMVA

	for i := range net.Buses {
		net.Buses[i].Vm = cmplx.Abs(v[i])
		net.Buses[i].Va = cmplx.Phase(v[i]) * rad2deg
	}

	for i := range net.Gens {
		net.Gens[i].Qg = 0
	}

	// On-generator indices grouped by bus.
	onByBus := make(map[int][]int)
	for i := range net.Gens {
		if net.Gens[i].InService {
			onByBus[net.Gens[i].Bus] = append(onByBus[net.Gens[i].Bus], i)
		}
	}

	for b, gens := range onByBus {
		inj := v[b] * cmplx.Conj(m.Ybus.RowDot(b, v))
		qTotal := imag(inj)*base + net.Buses[b].Qd
		if len(gens) == 1 {
			net.Gens[gens[0]].Qg = qTotal
			continue
		}
		var qminTot, qmaxTot float64
		for _, g := range gens {
			qminTot += net.Gens[g].Qmin
			qmaxTot += net.Gens[g].Qmax
		}
		if qmaxTot == qminTot {
			for _, g := range gens {
				net.Gens[g].Qg = qTotal / float64(len(gens))
			}
			continue
		}
		frac := (qTotal - qminTot) / (qmaxTot - qminTot)
		for _, g := range gens {
			net.Gens[g].Qg = net.Gens[g].Qmin + frac*(net.Gens[g].Qmax-net.Gens[g].Qmin)
		}
	}

	// Slack active power covers the residual at each reference bus;
	// the first in-service unit there takes the remainder after the
	// scheduled output of its companions.
	for _, b := range ref {
		gens := onByBus[b]
		if len(gens) == 0 {
			continue
		}
		inj := v[b] * cmplx.Conj(m.Ybus.RowDot(b, v))
		pg := real(inj)*base + net.Buses[b].Pd
		for _, g := range gens[1:] {
			pg -= net.Gens[g].Pg
		}
		net.Gens[gens[0]].Pg = pg
	}

	ifrom := make([]complex128, len(net.Branches))
	ito := make([]complex128, len(net.Branches))
	if len(net.Branches) > 0 {
		m.Yf.MulVecTo(ifrom, v)
		m.Yt.MulVecTo(ito, v)
	}
	for l := range net.Branches {
		br := &net.Branches[l]
		if !br.InService {
			br.Pf, br.Qf, br.Pt, br.Qt = 0, 0, 0, 0
			continue
		}
		sf := v[br.From] * cmplx.Conj(ifrom[l]) * complex(base, 0)
		st := v[br.To] * cmplx.Conj(ito[l]) * complex(base, 0)
		br.Pf, br.Qf = real(sf), imag(sf)
		br.Pt, br.Qt = real(st), imag(st)
	}
}

// applyDCSolution writes a DC angle solution: flat magnitudes, angles
// in degrees, lossless branch flows and the slack correction that
// moves the reference generators onto the linear balance.
func applyDCSolution(net *model.Network, bbus, bf *cmat.Matrix, pbus, pfinj, va []float64, ref []int) {
	base := net.BaseMVA

	for i := range net.Buses {
		net.Buses[i].Vm = 1
		net.Buses[i].Va = va[i] * rad2deg
	}

	for l := range net.Branches {
		br := &net.Branches[l]
		br.Pf = (realRowDot(bf, l, va) + pfinj[l]) * base
		br.Pt = -br.Pf
		br.Qf, br.Qt = 0, 0
	}

	for _, b := range ref {
		for i := range net.Gens {
			g := &net.Gens[i]
			if g.Bus != b || !g.InService {
				continue
			}
			g.Pg += (realRowDot(bbus, b, va) - pbus[b]) * base
			break
		}
	}
}

func realRowDot(m *cmat.Matrix, i int, x []float64) float64 {
	cols, vals := m.Row(i)
	var sum float64
	for k, j := range cols {
		sum += real(vals[k]) * x[j]
	}
	return sum
}
