package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/gridflow/internal/logging"
	"github.com/signalsfoundry/gridflow/model"
)

// ErrMultiSlackQLimit reports a reactive-limit conversion that landed
// on a reference bus while the system has more than one. Removing one
// of several slacks mid-run is unsolvable, so this is fatal.
var ErrMultiSlackQLimit = errors.New("cannot enforce reactive limits on a slack bus in a multi-slack system")

// enforcementState names the phases of the reactive-limit loop.
type enforcementState int

const (
	stateSolving enforcementState = iota
	stateChecking
	stateConverting
	stateDone
	stateInfeasible
)

func (s enforcementState) String() string {
	switch s {
	case stateSolving:
		return "solving"
	case stateChecking:
		return "checking"
	case stateConverting:
		return "converting"
	case stateDone:
		return "done"
	case stateInfeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("enforcementState(%d)", int(s))
	}
}

// limitRecord remembers what a conversion folded into the bus demand
// so the restoration can add back exactly the same quantities.
type limitRecord struct {
	gen    int
	pg, qg float64
}

type enforcementResult struct {
	success    bool
	infeasible bool
	passes     int
	iterations int
	converted  int
	cacheHit   bool
}

// enforceQLimits runs the solve/check/convert loop until a solution
// respects every in-service generator's reactive bounds or no leeway
// remains.
//
// Each converted generator is clamped to its violated bound, taken out
// of service with its output folded into the bus demand, and its bus
// retyped to PQ; the next pass re-solves with the new partition. When
// the loop lands on a violation-free solution it restores the limited
// generators (bound output, demand, status), leaving their bus types
// PQ. Non-convergence, infeasibility and an exhausted pass budget end
// the loop without restoration.
func (r *Runner) enforceQLimits(ctx context.Context, net *model.Network, log logging.Logger) (enforcementResult, error) {
	var (
		res     enforcementResult
		limited []limitRecord
		pending []int
		state   = stateSolving

		// reference count captured at checking time; conversions in
		// flight must see the pre-conversion slack arrangement
		refCount int
	)

	for {
		switch state {
		case stateSolving:
			if res.passes >= r.opts.MaxEnforcementPasses {
				log.Warn(ctx, "reactive limit enforcement pass budget exhausted",
					logging.Int("passes", res.passes),
					logging.Int("converted", res.converted))
				res.success = false
				return res, nil
			}
			res.passes++

			step, err := r.tracedStep(ctx, net, res.passes)
			if err != nil {
				return res, err
			}
			res.iterations = step.iterations
			res.cacheHit = res.cacheHit || step.cacheHit
			if !step.converged {
				log.Warn(ctx, "power flow diverged during reactive limit enforcement",
					logging.Int("pass", res.passes))
				res.success = false
				return res, nil
			}
			state = stateChecking

		case stateChecking:
			mx, mn := reactiveViolations(net)
			if len(mx)+len(mn) == 0 {
				state = stateDone
				continue
			}

			ref, pv, _ := busPartition(net)
			refCount = len(ref)
			if len(pv) == 0 {
				state = stateInfeasible
				continue
			}

			if r.opts.EnforceQLimits == QLimitWorst {
				pending = []int{worstViolator(net, mx, mn)}
			} else {
				pending = append(append([]int{}, mx...), mn...)
			}
			log.Debug(ctx, "reactive limit violations",
				logging.Int("pass", res.passes),
				logging.Int("over_max", len(mx)),
				logging.Int("under_min", len(mn)),
				logging.Int("converting", len(pending)))
			state = stateConverting

		case stateConverting:
			for _, gi := range pending {
				g := &net.Gens[gi]
				if g.Qg > g.Qmax {
					g.Qg = g.Qmax
				}
				if g.Qg < g.Qmin {
					g.Qg = g.Qmin
				}
				limited = append(limited, limitRecord{gen: gi, pg: g.Pg, qg: g.Qg})
				g.InService = false
				net.Buses[g.Bus].Pd -= g.Pg
				net.Buses[g.Bus].Qd -= g.Qg
				res.converted++
			}
			if refCount > 1 {
				for _, gi := range pending {
					if net.Buses[net.Gens[gi].Bus].Type == model.BusRef {
						return res, fmt.Errorf("%w: generator %d at bus %d", ErrMultiSlackQLimit, gi, net.Gens[gi].Bus)
					}
				}
			}
			for _, gi := range pending {
				net.Buses[net.Gens[gi].Bus].Type = model.BusPQ
			}
			state = stateSolving

		case stateDone:
			restoreLimited(net, limited)
			res.success = true
			return res, nil

		case stateInfeasible:
			log.Warn(ctx, "infeasible: no PV buses left to absorb reactive limit conversions",
				logging.Int("pass", res.passes),
				logging.Int("converted", res.converted))
			res.success = false
			res.infeasible = true
			return res, nil
		}
	}
}

// tracedStep wraps runStep in a per-pass span when tracing is wired.
func (r *Runner) tracedStep(ctx context.Context, net *model.Network, pass int) (stepResult, error) {
	if r.tracer == nil {
		return runStep(net, r.opts, r.builder, r.cache)
	}
	_, span := r.tracer.Start(ctx, "gridflow.enforcement_pass",
		trace.WithAttributes(attribute.Int("pass", pass)))
	defer span.End()
	step, err := runStep(net, r.opts, r.builder, r.cache)
	if err != nil {
		span.RecordError(err)
	}
	return step, err
}

// reactiveViolations scans the in-service generators for reactive
// outputs strictly outside their bounds.
func reactiveViolations(net *model.Network) (mx, mn []int) {
	for i := range net.Gens {
		g := &net.Gens[i]
		if !g.InService {
			continue
		}
		if g.Qg > g.Qmax {
			mx = append(mx, i)
		}
		if g.Qg < g.Qmin {
			mn = append(mn, i)
		}
	}
	return mx, mn
}

// worstViolator picks the generator with the largest bound excess,
// upper violations winning ties against lower ones.
func worstViolator(net *model.Network, mx, mn []int) int {
	best, bestViol := -1, math.Inf(-1)
	for _, g := range mx {
		if v := net.Gens[g].Qg - net.Gens[g].Qmax; v > bestViol {
			best, bestViol = g, v
		}
	}
	for _, g := range mn {
		if v := net.Gens[g].Qmin - net.Gens[g].Qg; v > bestViol {
			best, bestViol = g, v
		}
	}
	return best
}

func restoreLimited(net *model.Network, limited []limitRecord) {
	for _, rec := range limited {
		g := &net.Gens[rec.gen]
		g.Qg = rec.qg
		net.Buses[g.Bus].Pd += rec.pg
		net.Buses[g.Bus].Qd += rec.qg
		g.InService = true
	}
}
