package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/runner"
	"github.com/cwbudde/metaopt/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
	showTrace     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage recorded runs",
	Long: `Manage the runs recorded in the configured store, including their
JSONL traces.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded runs",
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete recorded runs based on a retention policy.
Keep only the newest N runs, delete runs older than N days, or both.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.AddCommand(listRunsCmd)
	historyCmd.AddCommand(showRunCmd)
	historyCmd.AddCommand(cleanRunsCmd)

	showRunCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the run's trace entries")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openHistory() (store.Store, func() error, error) {
	s, closeStore, err := runner.OpenStore(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, closeStore, nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	s, closeStore, err := openHistory()
	if err != nil {
		return err
	}
	defer closeStore()

	infos, err := s.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	printRuns(cmd.OutOrStdout(), infos, runner.StoreBaseDir(cfg.Store))
	return nil
}

func printRuns(out io.Writer, infos []store.RunInfo, baseDir string) {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tPROBLEM\tSTRATEGY\tFITNESS\tREASON\tSIZE")
	fmt.Fprintln(w, "------\t-------\t-------\t--------\t-------\t------\t----")

	for _, info := range infos {
		sizeStr := "-"
		if size, err := getDirSize(store.RunDir(baseDir, info.ID)); err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%.6g\t%s\t%s\n",
			shortID(info.ID),
			info.StartedAt.Format("2006-01-02 15:04:05"),
			info.Problem,
			info.Variation,
			info.Strategy,
			info.Fitness,
			info.Reason,
			sizeStr,
		)
	}

	w.Flush()
	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
}

func runShowRun(cmd *cobra.Command, args []string) error {
	s, closeStore, err := openHistory()
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := s.LoadRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return err
	}
	if !showTrace {
		return nil
	}

	tr, err := store.NewTraceReader(runner.StoreBaseDir(cfg.Store), rec.ID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(out, "No trace recorded.")
		return nil
	} else if err != nil {
		return err
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		return err
	}
	printTrace(out, entries)
	return nil
}

func printTrace(out io.Writer, entries []store.TraceEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITERATION\tFITNESS\tJUMP\tDELTA\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%.6g\t%.4g\t%.4g\t%s\n", e.Iteration, e.Fitness, e.JumpSize, e.DeltaFitness, e.Message)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTrace entries: %d\n", len(entries))
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	s, closeStore, err := openHistory()
	if err != nil {
		return err
	}
	defer closeStore()

	infos, err := s.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, %s)\n",
			shortID(info.ID),
			info.Strategy,
			info.StartedAt.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean && !confirm(cmd.InOrStdin(), out, "\nProceed with deletion? [y/N]: ") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	deleted, failed := deleteRuns(s, runner.StoreBaseDir(cfg.Store), toDelete)
	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

// deleteRuns removes each run and its trace. Traces live outside the
// database for the sqlite store, so they are removed separately.
func deleteRuns(s store.Store, baseDir string, infos []store.RunInfo) (deleted, failed int) {
	for _, info := range infos {
		err := errors.Join(s.DeleteRun(info.ID), store.DeleteTrace(baseDir, info.ID))
		if err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted run", "run_id", info.ID)
		deleted++
	}
	return deleted, failed
}

// selectRunsForDeletion applies the retention policy: runs older than
// olderThanDays, plus everything but the newest keepLast runs.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.StartedAt.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.ID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := slices.Clone(infos)
		slices.SortFunc(sorted, func(a, b store.RunInfo) int { return a.StartedAt.Compare(b.StartedAt) })

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.ID] {
				toDelete = append(toDelete, info)
				selected[info.ID] = true
			}
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
