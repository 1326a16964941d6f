package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/runner"
)

var (
	benchStrategies []string
	benchParallel   int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare strategies on one problem",
	Long: `Runs several strategies against the configured problem in parallel and
prints a table ranked by final fitness. Runs are not recorded.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVarP(&problemName, "problem", "p", "", "Problem to solve")
	benchCmd.Flags().StringVar(&variation, "variation", "", "Problem variation")
	benchCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed shared by all strategies (0 = random)")
	benchCmd.Flags().BoolVar(&byComparison, "by-comparison", false, "Rank candidates by pairwise comparison")
	benchCmd.Flags().StringSliceVar(&benchStrategies, "strategies", nil, "Strategies to compare (default all)")
	benchCmd.Flags().IntVar(&benchParallel, "parallel", 4, "Maximum strategies running at once")

	rootCmd.AddCommand(benchCmd)
}

// benchResult is one row of the comparison. Out is nil when the run failed
// before producing a result.
type benchResult struct {
	Strategy opt.Type
	Out      *runner.Outcome
	Err      error
}

func runBench(cmd *cobra.Command, args []string) error {
	base := cfg
	if err := applyRunFlags(cmd, &base); err != nil {
		return err
	}
	if base.Seed == 0 {
		base.Seed = uint64(time.Now().UnixNano())
	}

	types, err := benchTypes(benchStrategies)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := benchmark(ctx, base, types, benchParallel)
	printBench(cmd.OutOrStdout(), results)
	return nil
}

func benchTypes(names []string) ([]opt.Type, error) {
	if len(names) == 0 {
		return opt.Types(), nil
	}
	types := make([]opt.Type, 0, len(names))
	for _, name := range names {
		t, err := opt.ParseType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// benchmark runs every strategy on base with at most parallel runs in
// flight. Results are ranked by fitness; failed runs come last.
func benchmark(ctx context.Context, base config.Config, types []opt.Type, parallel int) []benchResult {
	results := make([]benchResult, len(types))

	p := pool.New().WithMaxGoroutines(max(parallel, 1))
	for i, t := range types {
		p.Go(func() {
			c := base
			c.Strategy = string(t)
			c.Trace.Enabled = false

			out, err := runner.Run(ctx, c, runner.Deps{})
			if err != nil {
				slog.Warn("Benchmark run failed", "strategy", t, "error", err)
			}
			results[i] = benchResult{Strategy: t, Out: out, Err: err}
		})
	}
	p.Wait()

	slices.SortStableFunc(results, func(a, b benchResult) int {
		switch {
		case a.Out == nil && b.Out == nil:
			return 0
		case a.Out == nil:
			return 1
		case b.Out == nil:
			return -1
		}
		return cmp.Compare(a.Out.Fitness, b.Out.Fitness)
	})
	return results
}

func printBench(w io.Writer, results []benchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tFITNESS\tERROR %\tITERATIONS\tEVALUATIONS\tREASON\tELAPSED")
	fmt.Fprintln(tw, "--------\t-------\t-------\t----------\t-----------\t------\t-------")
	for _, r := range results {
		if r.Out == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\t-\n", r.Strategy, shorten(r.Err.Error(), 40))
			continue
		}
		fmt.Fprintf(tw, "%s\t%.6g\t%.4f\t%d\t%d\t%s\t%s\n",
			r.Strategy,
			r.Out.Fitness,
			r.Out.Error,
			r.Out.Iterations,
			r.Out.Evaluations,
			r.Out.Reason,
			r.Out.Duration.Round(time.Millisecond),
		)
	}
	tw.Flush()
}

func shorten(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
