package mcp

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
)

var divider = strings.Repeat("=", 60)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerQueryTools()
	s.registerLibraryTools()
	s.registerSessionTools()
}

// ===== QUERY TOOLS =====

type searchInput struct {
	Query    string `json:"query" jsonschema:"required,Search query (e.g. 'refactor backend code' or 'testing automation')"`
	Category string `json:"category,omitempty" jsonschema:"Filter by category: refactoring testing debugging implementation documentation code-review general"`
	NResults int    `json:"n_results,omitempty" jsonschema:"Number of results to return (default: 5)"`
}

// searchHit is one rendered similarity match.
type searchHit struct {
	FilePath   string  `json:"file_path" jsonschema:"Path relative to the prompts directory; pass it to get_prompt"`
	Category   string  `json:"category"`
	DocType    string  `json:"doc_type" jsonschema:"prompt for manually created documents or session for harvested ones"`
	Similarity float64 `json:"similarity" jsonschema:"Cosine similarity in percent"`
	Keywords   string  `json:"keywords,omitempty"`
	Preview    string  `json:"preview"`
}

type searchOutput struct {
	Query string      `json:"query"`
	Hits  []searchHit `json:"results"`
	Count int         `json:"count"`
}

type getPromptInput struct {
	FilePath string `json:"file_path" jsonschema:"required,Relative path to prompt file (e.g. 'refactoring/2-12-2025_prompt1.md')"`
}

type getPromptOutput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type similarInput struct {
	FilePath string `json:"file_path" jsonschema:"required,Path to the reference prompt file"`
	NResults int    `json:"n_results,omitempty" jsonschema:"Number of similar prompts to return (default: 3)"`
}

type similarOutput struct {
	FilePath string      `json:"file_path"`
	Hits     []searchHit `json:"results"`
	Count    int         `json:"count"`
}

type listByCategoryInput struct {
	Category string `json:"category" jsonschema:"required,Category name: refactoring testing debugging implementation documentation code-review general"`
}

type listByCategoryOutput struct {
	Category string   `json:"category"`
	Prompts  []string `json:"prompts"`
	Count    int      `json:"count"`
}

type statsInput struct{}

type statsOutput struct {
	TotalPrompts       int            `json:"total_prompts"`
	Categories         map[string]int `json:"categories"`
	TotalChunks        int            `json:"total_chunks"`
	AvgChunksPerPrompt float64        `json:"avg_chunks_per_prompt"`
	Collection         string         `json:"collection,omitempty" jsonschema:"Vector collection name; empty when semantic indexing is disabled"`
}

type indexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Force reindex even if already indexed (default: false)"`
}

type indexOutput struct {
	Files   int  `json:"files"`
	Chunks  int  `json:"chunks"`
	Skipped bool `json:"skipped" jsonschema:"True when the collection was already populated and force was false"`
}

func (s *Server) registerQueryTools() {
	addTool(s, &mcp.Tool{
		Name:        "search_prompts",
		Description: "Semantic search for prompts. Finds prompts by meaning, not just keywords.",
	}, s.searchPrompts)

	addTool(s, &mcp.Tool{
		Name:        "get_prompt",
		Description: "Get the full content of a specific prompt file",
	}, s.getPrompt)

	addTool(s, &mcp.Tool{
		Name:        "find_similar_prompts",
		Description: "Find prompts similar to a given prompt file",
	}, s.findSimilar)

	addTool(s, &mcp.Tool{
		Name:        "list_prompts_by_category",
		Description: "List all prompts in a specific category",
	}, s.listByCategory)

	addTool(s, &mcp.Tool{
		Name:        "get_library_stats",
		Description: "Get statistics about the prompt library (total prompts, categories, index status)",
	}, s.libraryStats)

	addTool(s, &mcp.Tool{
		Name:        "index_prompts",
		Description: "Manually trigger indexing of all prompts into the vector collection",
	}, s.indexPrompts)
}

func (s *Server) searchPrompts(ctx context.Context, args searchInput) (searchOutput, string, error) {
	if strings.TrimSpace(args.Query) == "" {
		return searchOutput{}, "", fmt.Errorf("query is required")
	}

	results, err := s.library.Search(ctx, args.Query, args.NResults, args.Category)
	if err != nil {
		return searchOutput{}, "", err
	}

	out := searchOutput{Query: args.Query, Count: len(results)}
	for _, r := range results {
		out.Hits = append(out.Hits, toHit(r, 250))
	}
	return out, formatSearchText(args.Query, args.Category, out.Hits), nil
}

func (s *Server) getPrompt(ctx context.Context, args getPromptInput) (getPromptOutput, string, error) {
	content, err := s.library.Get(ctx, args.FilePath)
	if err != nil {
		return getPromptOutput{}, "", err
	}
	return getPromptOutput{FilePath: args.FilePath, Content: content}, content, nil
}

func (s *Server) findSimilar(ctx context.Context, args similarInput) (similarOutput, string, error) {
	results, err := s.library.Similar(ctx, args.FilePath, args.NResults)
	if err != nil {
		return similarOutput{}, "", err
	}

	out := similarOutput{FilePath: args.FilePath, Count: len(results)}
	for _, r := range results {
		out.Hits = append(out.Hits, toHit(r, 150))
	}

	if len(out.Hits) == 0 {
		return out, "No similar prompts found", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Prompts similar to %s\n%s\n", args.FilePath, divider)
	for i, h := range out.Hits {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, h.FilePath)
		fmt.Fprintf(&b, "   Category: %s\n", h.Category)
		fmt.Fprintf(&b, "   Similarity: %.1f%%\n", h.Similarity)
		fmt.Fprintf(&b, "   Preview: %s\n", h.Preview)
	}
	return out, b.String(), nil
}

func (s *Server) listByCategory(ctx context.Context, args listByCategoryInput) (listByCategoryOutput, string, error) {
	paths, err := s.library.ListByCategory(ctx, args.Category)
	if err != nil {
		return listByCategoryOutput{}, "", err
	}

	out := listByCategoryOutput{Category: args.Category, Prompts: paths, Count: len(paths)}

	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\nTotal prompts: %d\n%s\n", args.Category, len(paths), divider)
	for _, p := range paths {
		fmt.Fprintf(&b, "\n%s", filepath.Base(p))
	}
	return out, b.String(), nil
}

func (s *Server) libraryStats(ctx context.Context, _ statsInput) (statsOutput, string, error) {
	stats, err := s.library.Stats(ctx)
	if err != nil {
		return statsOutput{}, "", err
	}

	out := statsOutput{
		TotalPrompts:       stats.UniquePrompts,
		Categories:         stats.Categories,
		TotalChunks:        stats.TotalChunks,
		AvgChunksPerPrompt: stats.AvgChunksPerPrompt,
		Collection:         stats.Collection,
	}
	return out, formatStatsText(out), nil
}

func (s *Server) indexPrompts(ctx context.Context, args indexInput) (indexOutput, string, error) {
	result, err := s.library.Reindex(ctx, args.Force)
	if err != nil {
		return indexOutput{}, "", err
	}

	out := indexOutput{Files: result.Files, Chunks: result.Chunks, Skipped: result.Skipped}
	if out.Skipped {
		return out, "Collection already populated; pass force to rebuild.", nil
	}
	return out, fmt.Sprintf("Indexing complete: %d prompts, %d chunks.", out.Files, out.Chunks), nil
}

// ===== RENDERING =====

func toHit(r vectorstore.SearchResult, previewLen int) searchHit {
	return searchHit{
		FilePath:   filepath.Join(r.Metadata.Category, r.Metadata.FileName),
		Category:   r.Metadata.Category,
		DocType:    r.Metadata.DocType,
		Similarity: similarityPercent(r.Distance),
		Keywords:   r.Metadata.Keywords,
		Preview:    preview(r.Text, previewLen),
	}
}

// similarityPercent converts a cosine distance to a percentage rounded
// to one decimal.
func similarityPercent(distance float32) float64 {
	return math.Round(float64(1-distance)*1000) / 10
}

// preview collapses whitespace and cuts the text to n runes.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return text
}

func formatSearchText(query, category string, hits []searchHit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No prompts found for query: %q", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d prompts for %q\n", len(hits), query)
	if category != "" {
		fmt.Fprintf(&b, "Category filter: %s\n", category)
	}
	b.WriteString(divider)
	b.WriteString("\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, h.FilePath)
		fmt.Fprintf(&b, "   Category: %s\n", h.Category)
		fmt.Fprintf(&b, "   Type: %s\n", h.DocType)
		fmt.Fprintf(&b, "   Similarity: %.1f%%\n", h.Similarity)
		if h.Keywords != "" {
			fmt.Fprintf(&b, "   Keywords: %s\n", h.Keywords)
		}
		fmt.Fprintf(&b, "   Preview: %s\n", h.Preview)
	}
	return b.String()
}

func formatStatsText(out statsOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt Library Statistics\n%s\n\n", divider)
	fmt.Fprintf(&b, "Total prompts: %d\n", out.TotalPrompts)

	if len(out.Categories) > 0 {
		b.WriteString("\nBy category:\n")
		for _, cc := range sortedCounts(out.Categories) {
			fmt.Fprintf(&b, "  - %s: %d\n", cc.name, cc.count)
		}
	}

	if out.Collection == "" {
		b.WriteString("\nVector index: disabled\n")
		return b.String()
	}
	b.WriteString("\nVector index:\n")
	fmt.Fprintf(&b, "  - Collection: %s\n", out.Collection)
	fmt.Fprintf(&b, "  - Total chunks: %d\n", out.TotalChunks)
	fmt.Fprintf(&b, "  - Avg chunks/prompt: %.2f\n", out.AvgChunksPerPrompt)
	return b.String()
}

type nameCount struct {
	name  string
	count int
}

// sortedCounts orders map entries by count descending, name ascending.
func sortedCounts(m map[string]int) []nameCount {
	out := make([]nameCount, 0, len(m))
	for name, count := range m {
		out = append(out, nameCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}
