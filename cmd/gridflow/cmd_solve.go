package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/gridflow/core"
	"github.com/signalsfoundry/gridflow/internal/logging"
	"github.com/signalsfoundry/gridflow/internal/observability"
	"github.com/signalsfoundry/gridflow/model"
)

func runSolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var cfg Config
	if configFile != "" {
		loaded, err := LoadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	opts := cfg.solverOptions()
	applyFlagOverrides(cmd, &opts)

	log := logging.NewFromEnv()
	if cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		log = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	}

	tracingCfg := observability.TracingConfigFromEnv()
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	network, err := core.LoadCaseFile(caseFile)
	if err != nil {
		return err
	}

	runner, err := core.NewRunner(opts,
		core.WithLogger(log),
		core.WithTracer(otel.Tracer("gridflow/cli")),
	)
	if err != nil {
		return err
	}

	rep, err := runner.Run(ctx, network)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(core.NewSolution(network, rep)); err != nil {
			return fmt.Errorf("encode solution: %w", err)
		}
	} else {
		printSolution(os.Stdout, network, rep)
	}

	if !rep.Success {
		if rep.Infeasible {
			return fmt.Errorf("case is infeasible: no generators left to hold reactive limits")
		}
		return fmt.Errorf("power flow did not converge after %d iterations", rep.Iterations)
	}
	return nil
}

// printSolution writes the result tables on stdout. Logs go to stderr,
// so this output stays pipeable.
func printSolution(w io.Writer, network *model.Network, rep core.Report) {
	formulation := "ac"
	if rep.DC {
		formulation = "dc"
	}
	outcome := "converged"
	if !rep.Success {
		outcome = "diverged"
		if rep.Infeasible {
			outcome = "infeasible"
		}
	}
	fmt.Fprintf(w, "run %s: %s (%s/%s, %d iterations, %.2f ms)\n",
		rep.RunID, outcome, formulation, rep.Algorithm, rep.Iterations,
		float64(rep.Elapsed.Microseconds())/1000.0)
	if rep.EnforcementPasses > 0 {
		fmt.Fprintf(w, "reactive limits: %d passes, %d generators held at a limit\n",
			rep.EnforcementPasses, rep.ConvertedGenerators)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%6s  %-8s  %10s  %10s\n", "bus", "type", "Vm [pu]", "Va [deg]")
	for i := range network.Buses {
		b := &network.Buses[i]
		fmt.Fprintf(w, "%6d  %-8s  %10.4f  %10.4f\n",
			b.ID, strings.ToLower(b.Type.String()), b.Vm, b.Va)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%6s  %5s  %10s  %10s  %-6s\n", "gen", "bus", "Pg [MW]", "Qg [MVAr]", "status")
	for i := range network.Gens {
		g := &network.Gens[i]
		status := "on"
		if !g.InService {
			status = "off"
		}
		fmt.Fprintf(w, "%6d  %5d  %10.3f  %10.3f  %-6s\n", i, g.Bus, g.Pg, g.Qg, status)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%6s  %5s  %5s  %10s  %10s  %10s  %10s\n",
		"branch", "from", "to", "Pf [MW]", "Qf [MVAr]", "Pt [MW]", "Qt [MVAr]")
	for i := range network.Branches {
		br := &network.Branches[i]
		fmt.Fprintf(w, "%6d  %5d  %5d  %10.3f  %10.3f  %10.3f  %10.3f\n",
			i, br.From, br.To, br.Pf, br.Qf, br.Pt, br.Qt)
	}
}
