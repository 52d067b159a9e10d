package core

import (
	"errors"
	"fmt"
)

// Algorithm names an AC power-flow kernel.
type Algorithm string

const (
	AlgNewton      Algorithm = "nr"
	AlgFDXB        Algorithm = "fdxb"
	AlgFDBX        Algorithm = "fdbx"
	AlgGaussSeidel Algorithm = "gs"
)

// InitMode selects the starting voltage profile of a run.
type InitMode string

const (
	InitFlat InitMode = "flat" // 1.0 per unit, zero angles
	InitDC   InitMode = "dc"   // angles seeded from a DC solve
)

// QLimitMode controls generator reactive-limit enforcement.
type QLimitMode string

const (
	QLimitOff   QLimitMode = "off"
	QLimitAll   QLimitMode = "all"   // convert every violating generator each pass
	QLimitWorst QLimitMode = "worst" // convert only the worst violator each pass
)

// ErrUnsupportedAlgorithm reports an algorithm outside the dispatch
// table. It is fatal: the run aborts before any kernel is invoked.
var ErrUnsupportedAlgorithm = errors.New("unsupported power flow algorithm")

const (
	// DefaultTolerance is the convergence tolerance on the power
	// mismatch, per unit.
	DefaultTolerance = 1e-8

	// DefaultMaxEnforcementPasses bounds the reactive-limit loop.
	DefaultMaxEnforcementPasses = 30

	defaultNewtonIterations = 10
	defaultFDIterations     = 30
	defaultGSIterations     = 1000
)

// Options configures a Runner. The zero value runs an AC Newton solve
// from a flat start with enforcement off.
type Options struct {
	// DC switches to the linearized DC formulation; Algorithm, Init
	// and EnforceQLimits are ignored there.
	DC bool

	Algorithm      Algorithm
	Init           InitMode
	EnforceQLimits QLimitMode

	// Tolerance is the kernel convergence tolerance in per unit;
	// zero selects DefaultTolerance.
	Tolerance float64

	// MaxIterations caps kernel iterations; zero selects the
	// algorithm-specific default.
	MaxIterations int

	// MaxEnforcementPasses caps solve/convert rounds of the
	// reactive-limit loop; zero selects the default. Exceeding the
	// bound reports a failed run, never an error.
	MaxEnforcementPasses int

	// RecycleAdmittance reuses the admittance matrices across solves
	// as long as the network topology signature is unchanged.
	RecycleAdmittance bool

	// BuilderKind names the admittance builder implementation; empty
	// selects the standard one.
	BuilderKind string
}

func (o Options) withDefaults() Options {
	if o.Algorithm == "" {
		o.Algorithm = AlgNewton
	}
	if o.Init == "" {
		o.Init = InitFlat
	}
	if o.EnforceQLimits == "" {
		o.EnforceQLimits = QLimitOff
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		switch o.Algorithm {
		case AlgFDXB, AlgFDBX:
			o.MaxIterations = defaultFDIterations
		case AlgGaussSeidel:
			o.MaxIterations = defaultGSIterations
		default:
			o.MaxIterations = defaultNewtonIterations
		}
	}
	if o.MaxEnforcementPasses <= 0 {
		o.MaxEnforcementPasses = DefaultMaxEnforcementPasses
	}
	return o
}

func (o Options) validate() error {
	if !o.DC {
		switch o.Algorithm {
		case AlgNewton, AlgFDXB, AlgFDBX, AlgGaussSeidel:
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(o.Algorithm))
		}
	}
	switch o.Init {
	case InitFlat, InitDC:
	default:
		return fmt.Errorf("unknown init mode %q", string(o.Init))
	}
	switch o.EnforceQLimits {
	case QLimitOff, QLimitAll, QLimitWorst:
	default:
		return fmt.Errorf("unknown reactive limit mode %q", string(o.EnforceQLimits))
	}
	return nil
}
