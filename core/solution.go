package core

import (
	"strings"

	"github.com/signalsfoundry/gridflow/model"
)

// Solution is a serializable view of a finished run: the report header
// plus the solved state read back off the network. It is what the CLI
// emits with --json and what the HTTP service returns from /solve.
type Solution struct {
	RunID               string  `json:"run_id"`
	Success             bool    `json:"success"`
	Infeasible          bool    `json:"infeasible,omitempty"`
	Formulation         string  `json:"formulation"`
	Algorithm           string  `json:"algorithm"`
	Iterations          int     `json:"iterations"`
	EnforcementPasses   int     `json:"enforcement_passes,omitempty"`
	ConvertedGenerators int     `json:"converted_generators,omitempty"`
	CacheHit            bool    `json:"cache_hit,omitempty"`
	ElapsedSeconds      float64 `json:"elapsed_seconds"`

	Buses      []BusResult    `json:"buses"`
	Generators []GenResult    `json:"generators"`
	Branches   []BranchResult `json:"branches"`
}

// BusResult is the solved voltage at one bus.
type BusResult struct {
	ID   int     `json:"id"`
	Type string  `json:"type"`
	Vm   float64 `json:"vm"`
	Va   float64 `json:"va"`
}

// GenResult is the dispatched output of one generator in MW/MVAr.
type GenResult struct {
	Bus       int     `json:"bus"`
	Pg        float64 `json:"pg"`
	Qg        float64 `json:"qg"`
	InService bool    `json:"in_service"`
}

// BranchResult is the power flow at both ends of one branch in
// MW/MVAr, measured into the branch.
type BranchResult struct {
	From int     `json:"from"`
	To   int     `json:"to"`
	Pf   float64 `json:"pf"`
	Qf   float64 `json:"qf"`
	Pt   float64 `json:"pt"`
	Qt   float64 `json:"qt"`
}

// NewSolution snapshots the solved network alongside its report.
func NewSolution(net *model.Network, rep Report) Solution {
	s := Solution{
		RunID:               rep.RunID,
		Success:             rep.Success,
		Infeasible:          rep.Infeasible,
		Formulation:         rep.formulation(),
		Algorithm:           string(rep.Algorithm),
		Iterations:          rep.Iterations,
		EnforcementPasses:   rep.EnforcementPasses,
		ConvertedGenerators: rep.ConvertedGenerators,
		CacheHit:            rep.CacheHit,
		ElapsedSeconds:      rep.Elapsed.Seconds(),
		Buses:               make([]BusResult, len(net.Buses)),
		Generators:          make([]GenResult, len(net.Gens)),
		Branches:            make([]BranchResult, len(net.Branches)),
	}
	for i, b := range net.Buses {
		s.Buses[i] = BusResult{
			ID:   b.ID,
			Type: strings.ToLower(b.Type.String()),
			Vm:   b.Vm,
			Va:   b.Va,
		}
	}
	for i, g := range net.Gens {
		s.Generators[i] = GenResult{
			Bus:       g.Bus,
			Pg:        g.Pg,
			Qg:        g.Qg,
			InService: g.InService,
		}
	}
	for i, br := range net.Branches {
		s.Branches[i] = BranchResult{
			From: br.From,
			To:   br.To,
			Pf:   br.Pf,
			Qf:   br.Qf,
			Pt:   br.Pt,
			Qt:   br.Qt,
		}
	}
	return s
}
