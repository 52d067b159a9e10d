package core

import (
	"math"
	"math/cmplx"

	"github.com/signalsfoundry/gridflow/model"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// busInjections forms the per-unit complex bus injections: scheduled
// in-service generation minus demand, on the system base. Shunts are
// not part of the injection; they live in the admittance matrix.
func busInjections(net *model.Network) []complex128 {
	s := make([]complex128, len(net.Buses))
	for i := range net.Gens {
		g := &net.Gens[i]
		if g.InService {
			s[g.Bus] += complex(g.Pg, g.Qg)
		}
	}
	for i := range net.Buses {
		b := &net.Buses[i]
		s[i] = (s[i] - complex(b.Pd, b.Qd)) / complex(net.BaseMVA, 0)
	}
	return s
}

// realInjections forms the DC bus injections: the real part of the AC
// injection less the shunt conductance and the phase-shifter terms.
func realInjections(net *model.Network, pbusinj []float64) []float64 {
	s := busInjections(net)
	p := make([]float64, len(s))
	for i := range p {
		p[i] = real(s[i]) - pbusinj[i] - net.Buses[i].Gs/net.BaseMVA
	}
	return p
}

// storedVoltage reads the bus voltage profile as a complex vector,
// overriding the magnitude at buses with in-service generation with
// the unit setpoint while keeping the stored angle.
func storedVoltage(net *model.Network) []complex128 {
	v := make([]complex128, len(net.Buses))
	for i := range net.Buses {
		v[i] = cmplx.Rect(net.Buses[i].Vm, net.Buses[i].Va*deg2rad)
	}
	for i := range net.Gens {
		g := &net.Gens[i]
		if !g.InService {
			continue
		}
		if a := cmplx.Abs(v[g.Bus]); a != 0 {
			v[g.Bus] = complex(g.Vg/a, 0) * v[g.Bus]
		} else {
			v[g.Bus] = complex(g.Vg, 0)
		}
	}
	return v
}

// applyFlatProfile resets every bus to 1.0 per unit at zero angle.
func applyFlatProfile(net *model.Network) {
	for i := range net.Buses {
		net.Buses[i].Vm = 1
		net.Buses[i].Va = 0
	}
}
