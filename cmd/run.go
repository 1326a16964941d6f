package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/runner"
)

var (
	problemName  string
	variation    string
	strategyName string
	seed         uint64
	byComparison bool
	trace        bool
	noStore      bool
	timeout      time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Runs one strategy against a problem and prints the best candidate.
Flags override the config file. The run is recorded in the configured store
unless --no-store is given; Ctrl-C stops the search and keeps the best
candidate found so far.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVarP(&problemName, "problem", "p", "", "Problem to solve (see 'metaopt problems')")
	runCmd.Flags().StringVar(&variation, "variation", "", "Problem variation")
	runCmd.Flags().StringVarP(&strategyName, "strategy", "s", "", "Strategy (see 'metaopt strategies')")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 = random)")
	runCmd.Flags().BoolVar(&byComparison, "by-comparison", false, "Rank candidates by pairwise comparison")
	runCmd.Flags().BoolVar(&trace, "trace", false, "Write a JSONL trace next to the run record")
	runCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record the run")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop the search after this long (0 = no limit)")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies the flags the user set onto c.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("problem") {
		c.Problem = problemName
		if !flags.Changed("variation") {
			c.Variation = ""
		}
	}
	if flags.Changed("variation") {
		c.Variation = variation
	}
	if flags.Changed("strategy") {
		c.Strategy = strategyName
	}
	if flags.Changed("seed") {
		c.Seed = seed
	}
	if flags.Changed("by-comparison") {
		c.ByComparison = byComparison
	}
	if flags.Changed("trace") {
		c.Trace.Enabled = trace
	}
	return c.Validate()
}

func runOptimization(cmd *cobra.Command, args []string) error {
	runCfg := cfg
	if err := applyRunFlags(cmd, &runCfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var deps runner.Deps
	if !noStore {
		s, closeStore, err := runner.OpenStore(runCfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer closeStore()
		deps.Store = s
	}

	slog.Info("Starting optimization",
		"problem", runCfg.Problem,
		"variation", runCfg.Variation,
		"strategy", runCfg.Strategy,
	)

	out, err := runner.Run(ctx, runCfg, deps)
	if out != nil {
		printOutcome(cmd.OutOrStdout(), out)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The partial result is still useful.
		slog.Warn("Optimization stopped early", "reason", err)
		return nil
	}
	return err
}

func printOutcome(w io.Writer, out *runner.Outcome) {
	fmt.Fprintf(w, "Run:         %s\n", out.ID)
	fmt.Fprintf(w, "Problem:     %s/%s\n", out.Problem, out.Variation)
	fmt.Fprintf(w, "Strategy:    %s (seed %d)\n", out.Strategy, out.Seed)
	if out.Best != nil {
		fmt.Fprintf(w, "Best:        %s\n", out.Best)
	}
	fmt.Fprintf(w, "Fitness:     %.6g", out.Fitness)
	if out.InitialFitness != 0 {
		fmt.Fprintf(w, " (initial %.6g)", out.InitialFitness)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Error:       %.4f%%\n", out.Error)
	fmt.Fprintf(w, "Iterations:  %d\n", out.Iterations)
	fmt.Fprintf(w, "Evaluations: %d\n", out.Evaluations)
	fmt.Fprintf(w, "Reason:      %s\n", out.Reason)
	fmt.Fprintf(w, "Elapsed:     %s\n", out.Duration.Round(time.Millisecond))
}
