package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/promptd/internal/library"
)

// ===== LIBRARY CRUD TOOLS =====

type createInput struct {
	Content  string   `json:"content" jsonschema:"required,The prompt content (markdown supported)"`
	Category string   `json:"category,omitempty" jsonschema:"Category (auto-detected from content if not provided)"`
	Title    string   `json:"title,omitempty" jsonschema:"Title for the prompt (auto-generated if not provided)"`
	Keywords []string `json:"keywords,omitempty" jsonschema:"Keywords for better searchability"`
	Source   string   `json:"source,omitempty" jsonschema:"Origin of the prompt: manual agent or import (default: manual)"`
}

type updateInput struct {
	FilePath string   `json:"file_path" jsonschema:"required,Relative path to the prompt file (e.g. 'testing/prompt1.md')"`
	Content  string   `json:"content,omitempty" jsonschema:"New content (keeps existing if not provided)"`
	Category string   `json:"category,omitempty" jsonschema:"New category (keeps existing if not provided)"`
	Title    string   `json:"title,omitempty" jsonschema:"New title (keeps existing if not provided)"`
	Keywords []string `json:"keywords,omitempty" jsonschema:"New keywords (keep existing if omitted; an empty list clears them)"`
}

// promptDescriptor is the shared output of create_prompt and
// update_prompt.
type promptDescriptor struct {
	FilePath string   `json:"file_path"`
	Category string   `json:"category"`
	Title    string   `json:"title"`
	Keywords []string `json:"keywords,omitempty"`
	Source   string   `json:"source,omitempty"`
}

type deleteInput struct {
	FilePath string `json:"file_path" jsonschema:"required,Relative path to the prompt file (e.g. 'testing/prompt1.md')"`
	Confirm  bool   `json:"confirm,omitempty" jsonschema:"Must be true to actually delete (safety check)"`
}

type deleteOutput struct {
	Deleted  bool   `json:"deleted"`
	FilePath string `json:"file_path"`
	Category string `json:"category"`
	Title    string `json:"title"`
}

func (s *Server) registerLibraryTools() {
	addTool(s, &mcp.Tool{
		Name: "create_prompt",
		Description: "Create a new prompt directly in the library without needing a session file. " +
			"Auto-categorizes and indexes the prompt for immediate searchability.",
	}, s.createPrompt)

	addTool(s, &mcp.Tool{
		Name:        "update_prompt",
		Description: "Update content, category, title, or keywords of an existing prompt. Re-indexes automatically.",
	}, s.updatePrompt)

	addTool(s, &mcp.Tool{
		Name:        "delete_prompt",
		Description: "Delete a prompt from the library, including its index entries. Requires confirmation.",
	}, s.deletePrompt)
}

func (s *Server) createPrompt(ctx context.Context, args createInput) (promptDescriptor, string, error) {
	desc, err := s.library.Create(ctx, library.CreateRequest{
		Content:  args.Content,
		Category: args.Category,
		Title:    args.Title,
		Keywords: args.Keywords,
		Source:   args.Source,
	})
	if err != nil {
		return promptDescriptor{}, "", err
	}

	out := toDescriptor(desc)
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt created: %s\n\n", out.FilePath)
	fmt.Fprintf(&b, "Category: %s\n", out.Category)
	fmt.Fprintf(&b, "Title: %s\n", out.Title)
	fmt.Fprintf(&b, "Keywords: %s\n", keywordList(out.Keywords))
	fmt.Fprintf(&b, "Source: %s\n", out.Source)
	b.WriteString("\nThe prompt has been indexed and is now searchable. Use search_prompts to find it.")
	return out, b.String(), nil
}

func (s *Server) updatePrompt(ctx context.Context, args updateInput) (promptDescriptor, string, error) {
	desc, err := s.library.Update(ctx, args.FilePath, library.UpdateRequest{
		Content:  args.Content,
		Category: args.Category,
		Title:    args.Title,
		Keywords: args.Keywords,
	})
	if err != nil {
		return promptDescriptor{}, "", err
	}

	out := toDescriptor(desc)
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt updated: %s\n\n", out.FilePath)
	if out.FilePath != args.FilePath {
		fmt.Fprintf(&b, "Relocated from: %s\n", args.FilePath)
	}
	fmt.Fprintf(&b, "Category: %s\n", out.Category)
	fmt.Fprintf(&b, "Title: %s\n", out.Title)
	fmt.Fprintf(&b, "Keywords: %s\n", keywordList(out.Keywords))
	b.WriteString("\nThe prompt has been re-indexed and is searchable with updated content.")
	return out, b.String(), nil
}

func (s *Server) deletePrompt(ctx context.Context, args deleteInput) (deleteOutput, string, error) {
	result, err := s.library.Delete(ctx, args.FilePath, args.Confirm)
	if err != nil {
		return deleteOutput{}, "", err
	}

	out := deleteOutput{
		Deleted:  result.Deleted,
		FilePath: result.RelPath,
		Category: result.Category,
		Title:    result.Title,
	}

	if !out.Deleted {
		text := fmt.Sprintf(
			"Confirmation required to delete prompt:\n\n"+
				"File: %s\nCategory: %s\nTitle: %s\n\n"+
				"This action cannot be undone. Call delete_prompt again with confirm: true.",
			out.FilePath, out.Category, out.Title)
		return out, text, nil
	}

	text := fmt.Sprintf(
		"Prompt deleted: %s\n\nThe prompt has been removed from the file system, the vector index, and the catalog.",
		out.FilePath)
	return out, text, nil
}

func toDescriptor(desc library.Descriptor) promptDescriptor {
	return promptDescriptor{
		FilePath: desc.RelPath,
		Category: desc.Category,
		Title:    desc.Title,
		Keywords: desc.Keywords,
		Source:   desc.Source,
	}
}

func keywordList(keywords []string) string {
	if len(keywords) == 0 {
		return "none"
	}
	return strings.Join(keywords, ", ")
}
