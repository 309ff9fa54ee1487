package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(organizeCmd)
}

var organizeCmd = &cobra.Command{
	Use:   "organize <session-file>",
	Short: "Extract prompts from a session transcript",
	Long: `Parse a Copilot CLI session export, extract the user prompts, and file
them into the library by category. The session is recorded in the catalog
and the new documents are indexed for search.

Examples:
  # Organize an exported session
  promptctl organize ~/.prompt-library/sessions/copilot-session-2025.md`,
	Args: cobra.ExactArgs(1),
	RunE: runOrganize,
}

func runOrganize(cmd *cobra.Command, args []string) error {
	lib, cleanup, err := openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := lib.OrganizeSession(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to organize session: %w", err)
	}

	cmd.Printf("Session organized: %s\n", result.SessionID)
	cmd.Printf("  Summary:    %s\n", result.Summary)
	cmd.Printf("  Categories: %s\n", strings.Join(result.Categories, ", "))
	cmd.Printf("  Prompts:    %d\n", len(result.Saved))
	for _, sp := range result.Saved {
		cmd.Printf("    - %s\n", sp.RelPath)
	}
	return nil
}
