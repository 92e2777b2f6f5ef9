package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "LLM task orchestrator for coding requests",
	Long: `Loom turns a natural-language coding request into a routed sequence of
subtasks (analysis, generation, test), executes each one against an LLM
with workspace tools, and merges the results into one answer.

Core capabilities:
- Classifies or decomposes a request into dependency-linked subtasks
- Runs each subtask through a bounded tool-call loop
- Lets the model read, write, search, and run commands in your workspace
- Synthesizes partial results into a single final response`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
