// Package core drives power-flow runs: it owns option handling, kernel
// dispatch, the admittance cache, reactive-limit enforcement and the
// distribution of results back onto the network model.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/gridflow/admittance"
	"github.com/signalsfoundry/gridflow/internal/logging"
	"github.com/signalsfoundry/gridflow/internal/observability"
	"github.com/signalsfoundry/gridflow/model"
	"github.com/signalsfoundry/gridflow/solver"
)

var (
	// ErrInvalidNetwork reports a network that fails structural
	// validation before any solve is attempted.
	ErrInvalidNetwork = errors.New("invalid network")

	// ErrNoReferenceBus reports a network without an in-service
	// generator on a reference bus.
	ErrNoReferenceBus = errors.New("no in-service reference bus")
)

// Report summarizes one run. Success covers both numerical convergence
// and, when enforcement ran, a violation-free final solution;
// Infeasible marks the subset of failures where no PV bus remained to
// absorb a reactive-limit conversion.
type Report struct {
	RunID               string
	Success             bool
	Infeasible          bool
	DC                  bool
	Algorithm           Algorithm
	Elapsed             time.Duration
	Iterations          int
	EnforcementPasses   int
	ConvertedGenerators int
	CacheHit            bool
}

func (r Report) formulation() string {
	if r.DC {
		return "dc"
	}
	return "ac"
}

// Runner executes power-flow runs with a fixed option set. The
// embedded admittance cache makes a Runner worth keeping around for
// repeated solves of the same network; a Runner must not be used
// concurrently because runs mutate the network in place.
type Runner struct {
	opts    Options
	builder admittance.Builder
	cache   *admittanceCache
	log     logging.Logger
	metrics *observability.SolverCollector
	tracer  trace.Tracer
}

// RunnerOption customizes a Runner at construction.
type RunnerOption func(*Runner)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics attaches a solver metrics collector.
func WithMetrics(c *observability.SolverCollector) RunnerOption {
	return func(r *Runner) { r.metrics = c }
}

// WithTracer attaches an OpenTelemetry tracer; runs then carry a span
// with one child span per enforcement pass.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// NewRunner validates the options, resolves the admittance builder and
// returns a ready Runner. Unknown algorithms and builder kinds fail
// here, before any network is touched.
func NewRunner(opts Options, ropts ...RunnerOption) (*Runner, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	builder, err := admittance.NewBuilder(opts.BuilderKind)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		opts:    opts,
		builder: builder,
		cache:   newAdmittanceCache(opts.RecycleAdmittance),
		log:     logging.Noop(),
	}
	for _, o := range ropts {
		o(r)
	}
	return r, nil
}

// Options returns the effective option set after defaulting.
func (r *Runner) Options() Options { return r.opts }

// CacheStats reports admittance cache hits and misses accumulated
// across this Runner's runs.
func (r *Runner) CacheStats() (hits, misses int64) { return r.cache.stats() }

// Run solves the network in place and reports the outcome. Structural
// faults (bad topology, unsupported algorithm, slack conversion in a
// multi-slack system) return an error; plain non-convergence and
// enforcement infeasibility return a Report with Success false and a
// nil error.
func (r *Runner) Run(ctx context.Context, net *model.Network) (rep Report, err error) {
	start := time.Now()
	rep = Report{RunID: uuid.NewString(), Algorithm: r.opts.Algorithm, DC: r.opts.DC}
	log := r.log.With(logging.String("run_id", rep.RunID))

	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "gridflow.run", trace.WithAttributes(
			attribute.String("run_id", rep.RunID),
			attribute.String("formulation", rep.formulation()),
			attribute.String("algorithm", string(rep.Algorithm))))
	}

	outcome := "error"
	defer func() {
		rep.Elapsed = time.Since(start)
		if span != nil {
			span.SetAttributes(attribute.String("outcome", outcome))
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		}
		if r.metrics != nil {
			r.metrics.RecordRun(rep.formulation(), string(rep.Algorithm), outcome, rep.Elapsed, rep.Iterations)
			if rep.EnforcementPasses > 0 {
				r.metrics.RecordEnforcement(rep.EnforcementPasses, rep.ConvertedGenerators)
			}
			if r.opts.RecycleAdmittance {
				r.metrics.RecordCacheLookup(rep.CacheHit)
			}
		}
		log.Info(ctx, "power flow run finished",
			logging.String("outcome", outcome),
			logging.Int("iterations", rep.Iterations),
			logging.Int("enforcement_passes", rep.EnforcementPasses),
			logging.Any("elapsed", rep.Elapsed))
	}()

	log.Info(ctx, "power flow run starting",
		logging.String("formulation", rep.formulation()),
		logging.String("algorithm", string(rep.Algorithm)),
		logging.Float64("tolerance", r.opts.Tolerance),
		logging.Int("buses", busCount(net)),
		logging.Int("branches", branchCount(net)))

	if err = validateNetwork(net); err != nil {
		return rep, err
	}

	if r.opts.DC {
		if err = r.runDC(net); err != nil {
			return rep, err
		}
		rep.Success = true
		outcome = "converged"
		return rep, nil
	}

	switch r.opts.Init {
	case InitDC:
		if err = r.runDC(net); err != nil {
			return rep, err
		}
	default:
		applyFlatProfile(net)
	}

	if r.opts.EnforceQLimits == QLimitOff {
		var step stepResult
		step, err = runStep(net, r.opts, r.builder, r.cache)
		if err != nil {
			return rep, err
		}
		rep.Iterations = step.iterations
		rep.CacheHit = step.cacheHit
		rep.Success = step.converged
		if step.converged {
			outcome = "converged"
		} else {
			outcome = "diverged"
		}
		return rep, nil
	}

	res, lerr := r.enforceQLimits(ctx, net, log)
	rep.Iterations = res.iterations
	rep.EnforcementPasses = res.passes
	rep.ConvertedGenerators = res.converted
	rep.CacheHit = res.cacheHit
	if lerr != nil {
		err = lerr
		return rep, err
	}
	rep.Success = res.success
	rep.Infeasible = res.infeasible
	switch {
	case res.success:
		outcome = "converged"
	case res.infeasible:
		outcome = "infeasible"
	default:
		outcome = "diverged"
	}
	return rep, nil
}

// runDC performs the linear DC solve and materializes its results:
// flat magnitudes, solved angles, lossless flows and the slack
// correction.
func (r *Runner) runDC(net *model.Network) error {
	bbus, bf, pbusinj, pfinj, err := admittance.DCMatrices(net.BaseMVA, net.Buses, net.Branches)
	if err != nil {
		return err
	}
	ref, pv, pq := busPartition(net)
	pbus := realInjections(net, pbusinj)
	va0 := make([]float64, len(net.Buses))
	for i := range net.Buses {
		va0[i] = net.Buses[i].Va * deg2rad
	}
	va, err := solver.DC(bbus, pbus, va0, ref, pv, pq)
	if err != nil {
		return err
	}
	applyDCSolution(net, bbus, bf, pbus, pfinj, va, ref)
	return nil
}

func validateNetwork(net *model.Network) error {
	if net == nil || len(net.Buses) == 0 {
		return fmt.Errorf("%w: no buses", ErrInvalidNetwork)
	}
	for i := range net.Gens {
		if b := net.Gens[i].Bus; b < 0 || b >= len(net.Buses) {
			return fmt.Errorf("%w: generator %d at unknown bus %d", ErrInvalidNetwork, i, b)
		}
	}
	ref, _, _ := busPartition(net)
	if len(ref) == 0 {
		return ErrNoReferenceBus
	}
	return nil
}

func busCount(net *model.Network) int {
	if net == nil {
		return 0
	}
	return len(net.Buses)
}

func branchCount(net *model.Network) int {
	if net == nil {
		return 0
	}
	return len(net.Branches)
}
