package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/gridflow/core"
)

// Config mirrors the YAML config file. Every field has a flag
// counterpart; flags set on the command line win over the file.
type Config struct {
	Solver  SolverConfig  `json:"solver" yaml:"solver"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

type SolverConfig struct {
	DC                   bool    `json:"dc" yaml:"dc"`
	Algorithm            string  `json:"algorithm" yaml:"algorithm"`
	Init                 string  `json:"init" yaml:"init"`
	EnforceQLimits       string  `json:"enforce_qlims" yaml:"enforce_qlims"`
	Tolerance            float64 `json:"tolerance" yaml:"tolerance"`
	MaxIterations        int     `json:"max_iterations" yaml:"max_iterations"`
	MaxEnforcementPasses int     `json:"max_enforcement_passes" yaml:"max_enforcement_passes"`
	RecycleAdmittance    bool    `json:"recycle_admittance" yaml:"recycle_admittance"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// solverOptions maps the config file onto solver options. Zero values
// fall through to the solver defaults.
func (c Config) solverOptions() core.Options {
	return core.Options{
		DC:                   c.Solver.DC,
		Algorithm:            core.Algorithm(c.Solver.Algorithm),
		Init:                 core.InitMode(c.Solver.Init),
		EnforceQLimits:       core.QLimitMode(c.Solver.EnforceQLimits),
		Tolerance:            c.Solver.Tolerance,
		MaxIterations:        c.Solver.MaxIterations,
		MaxEnforcementPasses: c.Solver.MaxEnforcementPasses,
		RecycleAdmittance:    c.Solver.RecycleAdmittance,
	}
}

// applyFlagOverrides copies explicitly-set flags onto opts, leaving
// config file values in place for flags the user did not touch.
func applyFlagOverrides(cmd *cobra.Command, opts *core.Options) {
	flags := cmd.Flags()
	if flags.Changed("dc") {
		opts.DC = dcFlag
	}
	if flags.Changed("algorithm") {
		opts.Algorithm = core.Algorithm(algorithm)
	}
	if flags.Changed("init") {
		opts.Init = core.InitMode(initProfile)
	}
	if flags.Changed("enforce-qlims") {
		opts.EnforceQLimits = core.QLimitMode(enforceQLims)
	}
	if flags.Changed("tolerance") {
		opts.Tolerance = tolerance
	}
	if flags.Changed("max-iterations") {
		opts.MaxIterations = maxIter
	}
	if flags.Changed("max-enforcement-passes") {
		opts.MaxEnforcementPasses = maxPasses
	}
	if flags.Changed("recycle") {
		opts.RecycleAdmittance = recycle
	}
}
