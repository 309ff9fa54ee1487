package main

import (
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show prompt library statistics",
	Long: `Show how many prompts the library holds, how they spread across
categories, and the state of the vector collection.

Examples:
  # Library overview
  promptctl stats`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	lib, cleanup, err := openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := lib.Stats(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Total prompts: %d\n", stats.UniquePrompts)

	if len(stats.Categories) > 0 {
		cmd.Println("\nBy category:")
		names := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Printf("  %-20s %d\n", name, stats.Categories[name])
		}
	}

	if stats.Collection == "" {
		cmd.Println("\nVector index: disabled")
		return nil
	}
	cmd.Printf("\nVector collection: %s\n", stats.Collection)
	cmd.Printf("  Chunks:            %d\n", stats.TotalChunks)
	cmd.Printf("  Avg chunks/prompt: %.2f\n", stats.AvgChunksPerPrompt)
	return nil
}
