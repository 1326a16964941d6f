package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cancelJob(cmd.OutOrStdout(), serverURL, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL for status and cancel")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), serverURL)
	}
	return getJobStatus(cmd.OutOrStdout(), serverURL, args[0])
}

// serverError turns a non-2xx response into an error carrying the server's
// message.
func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func listJobs(w io.Writer, baseURL string) error {
	resp, err := http.Get(baseURL + "/api/v1/jobs")
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var jobs []server.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Problem: %s %s\n", job.Config.Problem, job.Config.Variation)
		fmt.Fprintf(w, "  Strategy: %s\n", job.Config.Strategy)
		if job.Iterations > 0 {
			fmt.Fprintf(w, "  Fitness: %.6g after %d iterations\n", job.Fitness, job.Iterations)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func getJobStatus(w io.Writer, baseURL, jobID string) error {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/status", baseURL, jobID))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var status struct {
		server.Job
		Elapsed float64 `json:"elapsed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Problem: %s\n", status.Config.Problem)
	if status.Config.Variation != "" {
		fmt.Fprintf(w, "  Variation: %s\n", status.Config.Variation)
	}
	fmt.Fprintf(w, "  Strategy: %s\n", status.Config.Strategy)
	fmt.Fprintf(w, "  Seed: %d\n", status.Config.Seed)
	if status.Config.ByComparison {
		fmt.Fprintln(w, "  By comparison: yes")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	if status.InitialFitness != 0 {
		fmt.Fprintf(w, "  Initial Fitness: %.6g\n", status.InitialFitness)
	}
	fmt.Fprintf(w, "  Best Fitness: %.6g\n", status.Fitness)
	if status.Candidate != "" {
		fmt.Fprintf(w, "  Best: %s\n", status.Candidate)
	}
	fmt.Fprintf(w, "  Iterations: %d\n", status.Iterations)
	if status.Evaluations > 0 {
		fmt.Fprintf(w, "  Evaluations: %d\n", status.Evaluations)
	}
	if status.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", status.Reason)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}

	return nil
}

func cancelJob(w io.Writer, baseURL, jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/jobs/%s", baseURL, jobID), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return serverError(resp)
	}
	fmt.Fprintf(w, "Cancellation requested for %s\n", jobID)
	return nil
}
