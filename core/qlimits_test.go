package core

import (
	"testing"

	"github.com/signalsfoundry/gridflow/model"
)

func TestReactiveViolationsStrictBounds(t *testing.T) {
	net := &model.Network{
		BaseMVA: 100,
		Buses:   make([]model.Bus, 5),
		Gens: []model.Generator{
			{Bus: 0, Qg: 50, Qmax: 50, Qmin: -50, InService: true},   // exactly at max: clean
			{Bus: 1, Qg: 50.5, Qmax: 50, Qmin: -50, InService: true}, // over
			{Bus: 2, Qg: -80, Qmax: 50, Qmin: -50, InService: true},  // under
			{Bus: 3, Qg: 500, Qmax: 50, Qmin: -50, InService: false}, // off: ignored
			{Bus: 4, Qg: -50, Qmax: 50, Qmin: -50, InService: true},  // exactly at min: clean
		},
	}

	mx, mn := reactiveViolations(net)
	if !equalInts(mx, []int{1}) {
		t.Errorf("over-max = %v, want [1]", mx)
	}
	if !equalInts(mn, []int{2}) {
		t.Errorf("under-min = %v, want [2]", mn)
	}
}

func TestWorstViolatorPicksLargestExcess(t *testing.T) {
	net := &model.Network{
		BaseMVA: 100,
		Buses:   make([]model.Bus, 3),
		Gens: []model.Generator{
			{Bus: 0, Qg: 55, Qmax: 50, Qmin: -50, InService: true},  // 5 over
			{Bus: 1, Qg: 70, Qmax: 50, Qmin: -50, InService: true},  // 20 over
			{Bus: 2, Qg: -62, Qmax: 50, Qmin: -50, InService: true}, // 12 under
		},
	}

	mx, mn := reactiveViolations(net)
	if got := worstViolator(net, mx, mn); got != 1 {
		t.Errorf("worst violator = %d, want 1", got)
	}

	// An upper violation ties a lower one of equal excess: upper wins.
	net.Gens[1].Qg = 62
	mx, mn = reactiveViolations(net)
	if got := worstViolator(net, mx, mn); got != 1 {
		t.Errorf("tie resolved to %d, want upper violator 1", got)
	}

	// Equal excess within the upper list keeps the first generator.
	net.Gens[0].Qg = 62
	mx, mn = reactiveViolations(net)
	if got := worstViolator(net, mx, mn); got != 0 {
		t.Errorf("equal upper excess resolved to %d, want 0", got)
	}
}

func TestRestoreLimitedReinstatesGenerators(t *testing.T) {
	// Bus demand as left by a conversion that folded in Pg=30, Qg=50
	// against an original 10 MW / 15 MVAr load.
	net := &model.Network{
		BaseMVA: 100,
		Buses:   []model.Bus{{ID: 0, Type: model.BusPQ, Pd: -20, Qd: -35, Vm: 1}},
		Gens:    []model.Generator{{Bus: 0, Pg: 30, Qg: 50, Qmax: 50, Qmin: -50, InService: false}},
	}

	restoreLimited(net, []limitRecord{{gen: 0, pg: 30, qg: 50}})

	g := net.Gens[0]
	if !g.InService {
		t.Errorf("generator left out of service after restoration")
	}
	if g.Qg != 50 {
		t.Errorf("Qg = %v, want the recorded bound 50", g.Qg)
	}
	if net.Buses[0].Pd != 10 || net.Buses[0].Qd != 15 {
		t.Errorf("demand = %v MW / %v MVAr, want 10 / 15", net.Buses[0].Pd, net.Buses[0].Qd)
	}
	// Restoration never retypes the bus back to PV.
	if net.Buses[0].Type != model.BusPQ {
		t.Errorf("bus type = %v, want PQ", net.Buses[0].Type)
	}
}

func TestEnforcementStateString(t *testing.T) {
	names := map[enforcementState]string{
		stateSolving:         "solving",
		stateChecking:        "checking",
		stateConverting:      "converting",
		stateDone:            "done",
		stateInfeasible:      "infeasible",
		enforcementState(99): "enforcementState(99)",
	}
	for state, want := range names {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
