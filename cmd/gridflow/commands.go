package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// --- Global Command Variables ---
var (
	caseFile     string
	configFile   string
	algorithm    string
	dcFlag       bool
	initProfile  string
	enforceQLims string
	tolerance    float64
	maxIter      int
	maxPasses    int
	recycle      bool
	jsonOutput   bool

	rootCmd = &cobra.Command{
		Use:   "gridflow",
		Short: "Steady-state power flow for transmission networks",
		Long: `Gridflow solves the AC and DC power flow equations for a bus/branch
network case and reports bus voltages, generator dispatch, and branch
flows. Cases are plain JSON files carrying baseMVA plus buses,
generators, and branches arrays with quantities in MW/MVAr and per
unit on the system base.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	solveCmd = &cobra.Command{
		Use:   "solve",
		Short: "Solve the power flow of a JSON case file",
		RunE:  runSolve, // Defined in cmd_solve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the gridflow version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	solveCmd.Flags().StringVar(&caseFile, "case", "", "Path to the JSON case file (required)")
	solveCmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML config file with solver defaults")
	solveCmd.Flags().StringVar(&algorithm, "algorithm", "", "AC solve kernel: nr, fdxb, fdbx, or gs")
	solveCmd.Flags().BoolVar(&dcFlag, "dc", false, "Solve the linearized DC formulation instead of AC")
	solveCmd.Flags().StringVar(&initProfile, "init", "", "Starting voltage profile: flat or dc")
	solveCmd.Flags().StringVar(&enforceQLims, "enforce-qlims", "", "Generator reactive limit handling: off, all, or worst")
	solveCmd.Flags().Float64Var(&tolerance, "tolerance", 0, "Convergence tolerance on the mismatch norm, per unit")
	solveCmd.Flags().IntVar(&maxIter, "max-iterations", 0, "Iteration cap for the solve kernel")
	solveCmd.Flags().IntVar(&maxPasses, "max-enforcement-passes", 0, "Cap on reactive limit enforcement passes")
	solveCmd.Flags().BoolVar(&recycle, "recycle", false, "Reuse admittance matrices across solves of the same topology")
	solveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the solution as JSON on stdout")
	_ = solveCmd.MarkFlagRequired("case")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(versionCmd)
}
