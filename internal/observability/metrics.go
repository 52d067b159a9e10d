package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SolverCollector bundles the Prometheus metrics of the power-flow
// engine: run counts and latencies, kernel iteration counts, the
// reactive-limit enforcement work, and admittance cache traffic.
type SolverCollector struct {
	gatherer prometheus.Gatherer

	Runs              *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	SolveIterations   prometheus.Histogram
	EnforcementPasses prometheus.Histogram
	ConversionsTotal  prometheus.Counter
	CacheLookups      *prometheus.CounterVec
}

// NewSolverCollector registers the solver metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Re-registration against the same registry hands back the existing
// collectors instead of failing.
func NewSolverCollector(reg prometheus.Registerer) (*SolverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerflow_runs_total",
		Help: "Total number of power-flow runs, labeled by formulation, algorithm, and outcome.",
	}, []string{"formulation", "algorithm", "outcome"})
	runs, err := registerCounterVec(reg, runs, "powerflow_runs_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powerflow_run_duration_seconds",
		Help:    "End-to-end power-flow run latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"formulation", "algorithm"})
	durations, err = registerHistogramVec(reg, durations, "powerflow_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	iterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "powerflow_solve_iterations",
		Help:    "Kernel iterations of the final solve of each run.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50, 100, 250, 500, 1000},
	})
	iterations, err = registerHistogram(reg, iterations, "powerflow_solve_iterations")
	if err != nil {
		return nil, err
	}

	passes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "powerflow_qlimit_passes",
		Help:    "Solve passes consumed by reactive-limit enforcement per run.",
		Buckets: []float64{1, 2, 3, 4, 5, 7, 10, 15, 20, 30},
	})
	passes, err = registerHistogram(reg, passes, "powerflow_qlimit_passes")
	if err != nil {
		return nil, err
	}

	conversions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "powerflow_qlimit_conversions_total",
		Help: "Cumulative number of generators converted to PQ by reactive-limit enforcement.",
	})
	conversions, err = registerCounter(reg, conversions, "powerflow_qlimit_conversions_total")
	if err != nil {
		return nil, err
	}

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerflow_admittance_cache_lookups_total",
		Help: "Admittance cache lookups, labeled hit or miss.",
	}, []string{"result"})
	cacheLookups, err = registerCounterVec(reg, cacheLookups, "powerflow_admittance_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	return &SolverCollector{
		gatherer:          gatherer,
		Runs:              runs,
		RunDuration:       durations,
		SolveIterations:   iterations,
		EnforcementPasses: passes,
		ConversionsTotal:  conversions,
		CacheLookups:      cacheLookups,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SolverCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// RecordRun records one finished run.
func (c *SolverCollector) RecordRun(formulation, algorithm, outcome string, elapsed time.Duration, iterations int) {
	if c == nil {
		return
	}
	if c.Runs != nil {
		c.Runs.WithLabelValues(formulation, algorithm, outcome).Inc()
	}
	if c.RunDuration != nil {
		c.RunDuration.WithLabelValues(formulation, algorithm).Observe(elapsed.Seconds())
	}
	if c.SolveIterations != nil {
		c.SolveIterations.Observe(float64(iterations))
	}
}

// RecordEnforcement records the reactive-limit work of one run.
func (c *SolverCollector) RecordEnforcement(passes, converted int) {
	if c == nil {
		return
	}
	if c.EnforcementPasses != nil {
		c.EnforcementPasses.Observe(float64(passes))
	}
	if c.ConversionsTotal != nil && converted > 0 {
		c.ConversionsTotal.Add(float64(converted))
	}
}

// RecordCacheLookup records one admittance cache lookup.
func (c *SolverCollector) RecordCacheLookup(hit bool) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SolverCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
