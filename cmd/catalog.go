package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/optimizee/problems"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available strategies",
	Run: func(cmd *cobra.Command, args []string) {
		printStrategies(cmd.OutOrStdout())
	},
}

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the built-in problems and their variations",
	Run: func(cmd *cobra.Command, args []string) {
		printProblems(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(problemsCmd)
}

func printStrategies(w io.Writer) {
	for _, t := range opt.Types() {
		fmt.Fprintln(w, t)
	}
}

func printProblems(w io.Writer) {
	for _, name := range problems.Names() {
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(problems.Variations(name), ", "))
	}
}
