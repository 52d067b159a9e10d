package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/gridflow/core"
	"github.com/signalsfoundry/gridflow/model"
)

func TestLoadConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridflow.yaml")
	doc := `
solver:
  algorithm: fdxb
  enforce_qlims: all
  tolerance: 1.0e-6
  max_iterations: 50
  recycle_admittance: true
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want level=debug format=text", cfg.Logging)
	}

	opts := cfg.solverOptions()
	if opts.Algorithm != core.AlgFDXB {
		t.Errorf("Algorithm = %q, want %q", opts.Algorithm, core.AlgFDXB)
	}
	if opts.EnforceQLimits != core.QLimitAll {
		t.Errorf("EnforceQLimits = %q, want %q", opts.EnforceQLimits, core.QLimitAll)
	}
	if opts.Tolerance != 1.0e-6 {
		t.Errorf("Tolerance = %g, want 1e-6", opts.Tolerance)
	}
	if opts.MaxIterations != 50 {
		t.Errorf("MaxIterations = %d, want 50", opts.MaxIterations)
	}
	if !opts.RecycleAdmittance {
		t.Error("RecycleAdmittance = false, want true")
	}
	if opts.DC {
		t.Error("DC = true, want false for an unset field")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig succeeded for a missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("solver: [not a map"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig succeeded for malformed YAML")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	opts := core.Options{Algorithm: core.AlgNewton, Tolerance: 1e-8, MaxIterations: 10}

	for flag, value := range map[string]string{
		"algorithm": "gs",
		"tolerance": "0.001",
		"dc":        "true",
	} {
		if err := solveCmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("Set(%q, %q): %v", flag, value, err)
		}
	}
	applyFlagOverrides(solveCmd, &opts)

	if opts.Algorithm != core.AlgGaussSeidel {
		t.Errorf("Algorithm = %q, want %q", opts.Algorithm, core.AlgGaussSeidel)
	}
	if opts.Tolerance != 0.001 {
		t.Errorf("Tolerance = %g, want 0.001", opts.Tolerance)
	}
	if !opts.DC {
		t.Error("DC = false, want true after --dc")
	}
	if opts.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10 left untouched", opts.MaxIterations)
	}
}

func TestPrintSolutionTables(t *testing.T) {
	network := &model.Network{
		BaseMVA: 100,
		Buses: []model.Bus{
			{ID: 0, Type: model.BusRef, Vm: 1.0},
			{ID: 1, Type: model.BusPQ, Vm: 0.98, Va: -2.5},
		},
		Gens: []model.Generator{
			{Bus: 0, Pg: 25.1, Qg: 12.4, InService: true},
			{Bus: 1, InService: false},
		},
		Branches: []model.Branch{
			{From: 0, To: 1, InService: true, Pf: 25.1, Qf: 12.4, Pt: -24.8, Qt: -11.9},
		},
	}
	rep := core.Report{
		RunID:             "abc123",
		Success:           true,
		Algorithm:         core.AlgNewton,
		Iterations:        3,
		Elapsed:           1840 * time.Microsecond,
		EnforcementPasses: 2,
	}

	var sb strings.Builder
	printSolution(&sb, network, rep)
	out := sb.String()

	for _, want := range []string{
		"run abc123: converged (ac/nr, 3 iterations, 1.84 ms)",
		"reactive limits: 2 passes",
		"Vm [pu]",
		"Qg [MVAr]",
		"off",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
