package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchCategory string
	searchLimit    int
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "Restrict results to one category")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum number of results")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the prompt library by meaning",
	Long: `Search prompts semantically: the query is embedded and matched against
indexed prompt chunks, so results do not depend on exact wording.

Examples:
  # Find prompts about error handling
  promptctl search "handle errors in the parser"

  # Only testing prompts, more results
  promptctl search --category testing --limit 10 "mock the http client"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	lib, cleanup, err := openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := lib.Search(cmd.Context(), args[0], searchLimit, searchCategory)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		cmd.Println("No prompts found.")
		return nil
	}

	for i, r := range results {
		rel := filepath.Join(r.Metadata.Category, r.Metadata.FileName)
		cmd.Printf("%d. %s (%.1f%%)\n", i+1, rel, float64(1-r.Distance)*100)
		if r.Metadata.Keywords != "" {
			cmd.Printf("   keywords: %s\n", r.Metadata.Keywords)
		}
		cmd.Printf("   %s\n", excerpt(r.Text, 100))
	}
	return nil
}

// excerpt collapses whitespace and cuts the text to n runes for a
// one-line terminal preview.
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return text
}
