package core

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/signalsfoundry/gridflow/model"
)

func TestBusPartitionRoles(t *testing.T) {
	net := &model.Network{
		BaseMVA: 100,
		Buses: []model.Bus{
			{ID: 0, Type: model.BusRef, Vm: 1},
			{ID: 1, Type: model.BusPV, Vm: 1},
			{ID: 2, Type: model.BusPV, Vm: 1},       // generator out of service
			{ID: 3, Type: model.BusPQ, Vm: 1},       // generator present but bus typed PQ
			{ID: 4, Type: model.BusIsolated, Vm: 1}, // isolated with generation
			{ID: 5, Type: model.BusRef, Vm: 1},      // reference without generation
		},
		Gens: []model.Generator{
			{Bus: 0, Vg: 1, InService: true},
			{Bus: 1, Vg: 1, InService: true},
			{Bus: 2, Vg: 1, InService: false},
			{Bus: 3, Vg: 1, InService: true},
			{Bus: 4, Vg: 1, InService: true},
		},
	}

	ref, pv, pq := busPartition(net)

	wantRef, wantPV, wantPQ := []int{0}, []int{1}, []int{2, 3, 5}
	if !equalInts(ref, wantRef) {
		t.Errorf("ref = %v, want %v", ref, wantRef)
	}
	if !equalInts(pv, wantPV) {
		t.Errorf("pv = %v, want %v", pv, wantPV)
	}
	if !equalInts(pq, wantPQ) {
		t.Errorf("pq = %v, want %v", pq, wantPQ)
	}
	// The isolated bus with generation belongs to no set.
	if got := len(ref) + len(pv) + len(pq); got != 5 {
		t.Errorf("partition covers %d buses, want 5", got)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBusInjectionsNetsGenerationAgainstDemand(t *testing.T) {
	net := &model.Network{
		BaseMVA: 100,
		Buses: []model.Bus{
			{ID: 0, Pd: 10, Qd: 5, Vm: 1},
			{ID: 1, Pd: 25, Qd: 12, Vm: 1},
		},
		Gens: []model.Generator{
			{Bus: 0, Pg: 50, Qg: 20, Vg: 1, InService: true},
			{Bus: 0, Pg: 99, Qg: 99, Vg: 1, InService: false}, // must not contribute
		},
	}

	s := busInjections(net)

	if want := complex(0.4, 0.15); cmplx.Abs(s[0]-want) > 1e-15 {
		t.Errorf("s[0] = %v, want %v", s[0], want)
	}
	if want := complex(-0.25, -0.12); cmplx.Abs(s[1]-want) > 1e-15 {
		t.Errorf("s[1] = %v, want %v", s[1], want)
	}
}

func TestStoredVoltageAppliesGeneratorSetpoint(t *testing.T) {
	net := &model.Network{
		BaseMVA: 100,
		Buses: []model.Bus{
			{ID: 0, Vm: 1.02, Va: 30},
			{ID: 1, Vm: 0, Va: 45}, // degenerate stored magnitude
			{ID: 2, Vm: 0.98, Va: -10},
		},
		Gens: []model.Generator{
			{Bus: 0, Vg: 1.05, InService: true},
			{Bus: 1, Vg: 1.01, InService: true},
			{Bus: 2, Vg: 1.10, InService: false}, // off, no override
		},
	}

	v := storedVoltage(net)

	if got := cmplx.Abs(v[0]); math.Abs(got-1.05) > 1e-15 {
		t.Errorf("|v[0]| = %v, want 1.05", got)
	}
	if got := cmplx.Phase(v[0]); math.Abs(got-30*deg2rad) > 1e-15 {
		t.Errorf("phase(v[0]) = %v, want %v", got, 30*deg2rad)
	}
	if v[1] != complex(1.01, 0) {
		t.Errorf("v[1] = %v, want (1.01+0i)", v[1])
	}
	if got := cmplx.Abs(v[2]); math.Abs(got-0.98) > 1e-15 {
		t.Errorf("|v[2]| = %v, want stored 0.98", got)
	}
}

func TestApplyFlatProfile(t *testing.T) {
	net := &model.Network{
		BaseMVA: 100,
		Buses: []model.Bus{
			{ID: 0, Vm: 1.07, Va: 12},
			{ID: 1, Vm: 0.91, Va: -3},
		},
	}

	applyFlatProfile(net)

	for i := range net.Buses {
		if net.Buses[i].Vm != 1 || net.Buses[i].Va != 0 {
			t.Errorf("bus %d profile = (%v, %v), want (1, 0)", i, net.Buses[i].Vm, net.Buses[i].Va)
		}
	}
}
