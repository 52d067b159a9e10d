package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/signalsfoundry/gridflow/model"
)

// ErrInvalidCase reports a case file that decoded but failed
// validation.
var ErrInvalidCase = errors.New("invalid case")

// internal JSON shapes, unexported so the wire format can evolve
// independently of the model.
type caseJSON struct {
	Name       string       `json:"name"`
	BaseMVA    float64      `json:"baseMVA"`
	Buses      []busJSON    `json:"buses"`
	Generators []genJSON    `json:"generators"`
	Branches   []branchJSON `json:"branches"`
}

type busJSON struct {
	ID     int      `json:"id"`
	Type   string   `json:"type"` // "pq" | "pv" | "ref"
	Pd     float64  `json:"pd"`
	Qd     float64  `json:"qd"`
	Gs     float64  `json:"gs"`
	Bs     float64  `json:"bs"`
	Vm     *float64 `json:"vm"` // optional; defaults to 1.0
	Va     float64  `json:"va"`
	BaseKV float64  `json:"baseKV"`
}

type genJSON struct {
	Bus       int      `json:"bus"`
	Pg        float64  `json:"pg"`
	Qg        float64  `json:"qg"`
	Qmax      float64  `json:"qmax"`
	Qmin      float64  `json:"qmin"`
	Vg        *float64 `json:"vg"`         // optional; defaults to 1.0
	InService *bool    `json:"in_service"` // optional; defaults to true
}

type branchJSON struct {
	From      int     `json:"from"`
	To        int     `json:"to"`
	R         float64 `json:"r"`
	X         float64 `json:"x"`
	B         float64 `json:"b"`
	Tap       float64 `json:"tap"`        // 0 means nominal
	Shift     float64 `json:"shift"`      // degrees
	InService *bool   `json:"in_service"` // optional; defaults to true
}

// LoadCase reads a JSON case from r and returns the network it
// describes. Beyond decoding, it enforces what every run assumes: a
// positive system base, densely numbered buses, endpoints in range, at
// least one reference bus with an in-service generator, and no bus cut
// off from a reference over the in-service branches.
func LoadCase(r io.Reader) (*model.Network, error) {
	var payload caseJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("load case: decode failed: %w", err)
	}

	if payload.BaseMVA <= 0 {
		return nil, fmt.Errorf("%w: baseMVA %v must be positive", ErrInvalidCase, payload.BaseMVA)
	}
	if len(payload.Buses) == 0 {
		return nil, fmt.Errorf("%w: no buses", ErrInvalidCase)
	}

	net := &model.Network{
		BaseMVA:  payload.BaseMVA,
		Buses:    make([]model.Bus, len(payload.Buses)),
		Gens:     make([]model.Generator, len(payload.Generators)),
		Branches: make([]model.Branch, len(payload.Branches)),
	}

	for i, jb := range payload.Buses {
		if jb.ID != i {
			return nil, fmt.Errorf("%w: bus %d at position %d; ids must be dense and ordered", ErrInvalidCase, jb.ID, i)
		}
		bt, err := busTypeFromString(jb.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: bus %d: %v", ErrInvalidCase, jb.ID, err)
		}
		vm := 1.0
		if jb.Vm != nil {
			vm = *jb.Vm
		}
		net.Buses[i] = model.Bus{
			ID:     jb.ID,
			Type:   bt,
			Pd:     jb.Pd,
			Qd:     jb.Qd,
			Gs:     jb.Gs,
			Bs:     jb.Bs,
			Vm:     vm,
			Va:     jb.Va,
			BaseKV: jb.BaseKV,
		}
	}

	nb := len(net.Buses)
	for i, jg := range payload.Generators {
		if jg.Bus < 0 || jg.Bus >= nb {
			return nil, fmt.Errorf("%w: generator %d at unknown bus %d", ErrInvalidCase, i, jg.Bus)
		}
		vg := 1.0
		if jg.Vg != nil {
			vg = *jg.Vg
		}
		inService := true
		if jg.InService != nil {
			inService = *jg.InService
		}
		net.Gens[i] = model.Generator{
			Bus:       jg.Bus,
			Pg:        jg.Pg,
			Qg:        jg.Qg,
			Qmax:      jg.Qmax,
			Qmin:      jg.Qmin,
			Vg:        vg,
			InService: inService,
		}
	}

	for i, jl := range payload.Branches {
		if jl.From < 0 || jl.From >= nb || jl.To < 0 || jl.To >= nb {
			return nil, fmt.Errorf("%w: branch %d endpoints (%d,%d) out of range", ErrInvalidCase, i, jl.From, jl.To)
		}
		inService := true
		if jl.InService != nil {
			inService = *jl.InService
		}
		net.Branches[i] = model.Branch{
			From:      jl.From,
			To:        jl.To,
			R:         jl.R,
			X:         jl.X,
			B:         jl.B,
			Tap:       jl.Tap,
			Shift:     jl.Shift,
			InService: inService,
		}
	}

	ref, _, _ := busPartition(net)
	if len(ref) == 0 {
		return nil, fmt.Errorf("%w: no reference bus with an in-service generator", ErrInvalidCase)
	}
	if orphan := firstUnreachableBus(net, ref); orphan >= 0 {
		return nil, fmt.Errorf("%w: bus %d not connected to any reference bus", ErrInvalidCase, orphan)
	}

	return net, nil
}

// LoadCaseFile reads a case from disk.
func LoadCaseFile(path string) (*model.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	defer f.Close()
	return LoadCase(f)
}

// firstUnreachableBus walks the in-service branches from the reference
// buses and returns the lowest bus index left unvisited, or -1 when
// the network is fully connected.
func firstUnreachableBus(net *model.Network, ref []int) int {
	seen := make([]bool, len(net.Buses))
	queue := append([]int(nil), ref...)
	for _, b := range queue {
		seen[b] = true
	}
	adj := make([][]int, len(net.Buses))
	for i := range net.Branches {
		br := &net.Branches[i]
		if !br.InService {
			continue
		}
		adj[br.From] = append(adj[br.From], br.To)
		adj[br.To] = append(adj[br.To], br.From)
	}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, n := range adj[b] {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return i
		}
	}
	return -1
}

// busTypeFromString maps the JSON "type" field to a BusType. Matching
// is tolerant of case and the usual aliases; an empty type means PQ.
func busTypeFromString(s string) (model.BusType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pq", "load":
		return model.BusPQ, nil
	case "pv", "gen":
		return model.BusPV, nil
	case "ref", "slack", "swing":
		return model.BusRef, nil
	default:
		return 0, fmt.Errorf("unknown bus type %q", s)
	}
}
