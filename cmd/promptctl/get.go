package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <file-path>",
	Short: "Print a prompt document",
	Long: `Print the full content of one prompt document. The path is relative to
the prompts directory, as reported by search results.

Examples:
  # Print a prompt to stdout
  promptctl get testing/14-01-2025_15-30-00_a1b2c3d4_prompt1.md

  # Pipe it into another tool
  promptctl get refactoring/solid.md | pbcopy`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	lib, cleanup, err := openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	content, err := lib.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	// Document content goes straight to stdout so it can be piped.
	fmt.Print(content)
	return nil
}
