package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexForce bool

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "Rebuild the collection even if it is already populated")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the prompt library into the vector collection",
	Long: `Index every prompt document into the local vector collection so that
semantic search can find it.

Without --force an already populated collection is left untouched; pass
--force to wipe and rebuild it, for example after switching embedding
models.

Examples:
  # Index a fresh library
  promptctl index

  # Rebuild from scratch
  promptctl index --force`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	lib, cleanup, err := openLibrary()
	if err != nil {
		return err
	}
	defer cleanup()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing prompts[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(done)
	}

	result, err := lib.ReindexWithProgress(cmd.Context(), indexForce, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if result.Skipped {
		cmd.Println("Collection already populated; use --force to rebuild.")
		return nil
	}

	cmd.Println("Indexing complete:")
	cmd.Printf("  Files indexed:  %d\n", result.Files)
	cmd.Printf("  Chunks created: %d\n", result.Chunks)
	return nil
}
