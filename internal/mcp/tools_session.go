package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sessionTypeCopilot is the only transcript format the parser
// understands today.
const sessionTypeCopilot = "copilot-cli"

// ===== SESSION TOOLS =====

type organizeInput struct {
	SessionPath string `json:"session_path" jsonschema:"required,Path to the session markdown file"`
	SessionType string `json:"session_type,omitempty" jsonschema:"Type of AI agent session (default: copilot-cli)"`
}

type organizeOutput struct {
	SessionID    string   `json:"session_id"`
	Summary      string   `json:"summary"`
	MainCategory string   `json:"main_category"`
	Categories   []string `json:"categories"`
	PromptCount  int      `json:"prompts_extracted"`
	Files        []string `json:"files,omitempty" jsonschema:"Relative paths of the prompt files that were written"`
}

type indexViewInput struct{}

type sessionSummary struct {
	SessionID    string `json:"session_id"`
	Started      string `json:"started,omitempty"`
	MainCategory string `json:"main_category,omitempty"`
	PromptCount  int    `json:"num_prompts"`
	Summary      string `json:"summary"`
}

type keywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type indexViewOutput struct {
	SessionCount int              `json:"session_count"`
	Recent       []sessionSummary `json:"recent_sessions,omitempty" jsonschema:"Up to the five most recent sessions"`
	Categories   map[string]int   `json:"categories"`
	TopKeywords  []keywordCount   `json:"top_keywords,omitempty"`
}

func (s *Server) registerSessionTools() {
	addTool(s, &mcp.Tool{
		Name: "organize_session",
		Description: "Process and organize a session file exported from an AI coding agent. " +
			"Extracts prompts, categorizes them, and indexes them for search. " +
			"Use create_prompt for individual prompts instead.",
	}, s.organizeSession)

	addTool(s, &mcp.Tool{
		Name:        "get_prompt_index",
		Description: "Get the prompt library index with all sessions and metadata",
	}, s.promptIndex)
}

func (s *Server) organizeSession(ctx context.Context, args organizeInput) (organizeOutput, string, error) {
	sessionType := args.SessionType
	if sessionType == "" {
		sessionType = sessionTypeCopilot
	}
	if sessionType != sessionTypeCopilot {
		return organizeOutput{}, "", fmt.Errorf(
			"unsupported session type %q: only %s transcripts are supported; use create_prompt for individual prompts",
			sessionType, sessionTypeCopilot)
	}

	result, err := s.library.OrganizeSession(ctx, args.SessionPath)
	if err != nil {
		return organizeOutput{}, "", err
	}

	out := organizeOutput{
		SessionID:    result.SessionID,
		Summary:      result.Summary,
		MainCategory: result.MainCategory,
		Categories:   result.Categories,
		PromptCount:  len(result.Saved),
	}
	for _, sp := range result.Saved {
		out.Files = append(out.Files, sp.RelPath)
	}

	var b strings.Builder
	b.WriteString("Session processed successfully.\n\n")
	fmt.Fprintf(&b, "Session type: %s\n", sessionType)
	fmt.Fprintf(&b, "Session ID: %s\n", out.SessionID)
	fmt.Fprintf(&b, "Summary: %s\n", out.Summary)
	fmt.Fprintf(&b, "Prompts extracted: %d\n", out.PromptCount)
	fmt.Fprintf(&b, "Categories: %s\n", strings.Join(out.Categories, ", "))
	return out, b.String(), nil
}

func (s *Server) promptIndex(_ context.Context, _ indexViewInput) (indexViewOutput, string, error) {
	snap := s.library.Catalog()

	out := indexViewOutput{
		SessionCount: len(snap.Sessions),
		Categories:   make(map[string]int, len(snap.Categories)),
	}

	recent := snap.Sessions
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, entry := range recent {
		out.Recent = append(out.Recent, sessionSummary{
			SessionID:    entry.SessionID,
			Started:      entry.Started,
			MainCategory: entry.MainCategory,
			PromptCount:  entry.PromptCount,
			Summary:      entry.Summary,
		})
	}

	for category, refs := range snap.Categories {
		out.Categories[category] = len(refs)
	}

	keywordRefs := make(map[string]int, len(snap.Keywords))
	for term, refs := range snap.Keywords {
		if len(refs) > 0 {
			keywordRefs[term] = len(refs)
		}
	}
	for _, kc := range sortedCounts(keywordRefs) {
		out.TopKeywords = append(out.TopKeywords, keywordCount{Keyword: kc.name, Count: kc.count})
		if len(out.TopKeywords) == 10 {
			break
		}
	}

	return out, formatIndexText(out), nil
}

func formatIndexText(out indexViewOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt Library Index\n%s\n\n", divider)

	fmt.Fprintf(&b, "Sessions: %d\n", out.SessionCount)
	for _, entry := range out.Recent {
		fmt.Fprintf(&b, "  - %s  %s\n", shortSessionID(entry.SessionID), entry.Summary)
	}
	if out.SessionCount > len(out.Recent) {
		fmt.Fprintf(&b, "  ... and %d more\n", out.SessionCount-len(out.Recent))
	}

	if len(out.Categories) > 0 {
		b.WriteString("\nCategories:\n")
		for _, cc := range sortedCounts(out.Categories) {
			fmt.Fprintf(&b, "  - %s: %d entries\n", cc.name, cc.count)
		}
	}

	if len(out.TopKeywords) > 0 {
		b.WriteString("\nTop keywords:\n")
		for _, kc := range out.TopKeywords {
			fmt.Fprintf(&b, "  - %s: %d\n", kc.Keyword, kc.Count)
		}
	}
	return b.String()
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
