package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/prompt"
)

// SavedPrompt describes one prompt file written by the organizer. The
// library layer uses it to update the catalog and the vector index.
type SavedPrompt struct {
	// RelPath is the file path relative to the prompts root,
	// e.g. "testing/14-01-2025_15-30-00_a1b2c3d4_prompt2.md".
	RelPath  string
	Category string
	Keywords []string
}

// Organizer files parsed transcripts into the prompt library directory.
// It only touches the filesystem; catalog and vector index updates are
// the caller's job.
type Organizer struct {
	promptsDir string
	logger     *zap.Logger
}

func NewOrganizer(promptsDir string, logger *zap.Logger) *Organizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Organizer{promptsDir: promptsDir, logger: logger}
}

// SavePrompts writes every conversation of t as a prompt file under its
// category directory and returns a descriptor per file written. Files
// are named <started>_<sessionid[:8]>_prompt<index>.md so re-organizing
// the same export overwrites its previous output instead of duplicating
// it.
func (o *Organizer) SavePrompts(t *Transcript) ([]SavedPrompt, error) {
	saved := make([]SavedPrompt, 0, len(t.Conversations))
	stamp := fileStamp(t.Metadata.Started)
	id := shortID(t.Metadata.SessionID)

	for _, conv := range t.Conversations {
		category := conv.Type
		if !prompt.ValidCategory(category) {
			category = prompt.DefaultCategory
		}
		if err := os.MkdirAll(filepath.Join(o.promptsDir, category), 0o755); err != nil {
			return saved, fmt.Errorf("creating category directory: %w", err)
		}

		doc := prompt.Document{
			Title:     titleCase(conv.Type),
			Category:  category,
			SessionID: t.Metadata.SessionID,
			Date:      t.Metadata.Started,
			Keywords:  conv.Keywords,
			Source:    prompt.SourceSession,
			Sections:  conv.Structure,
			Body:      fenceBody(conv.Prompt),
		}

		name := fmt.Sprintf("%s_%s_prompt%d.md", stamp, id, conv.Index)
		rel := filepath.Join(category, name)
		if err := os.WriteFile(filepath.Join(o.promptsDir, rel), []byte(doc.Render()), 0o644); err != nil {
			return saved, fmt.Errorf("writing prompt file: %w", err)
		}

		o.logger.Debug("saved session prompt",
			zap.String("path", rel),
			zap.String("category", category),
			zap.Int("index", conv.Index))
		saved = append(saved, SavedPrompt{RelPath: rel, Category: category, Keywords: conv.Keywords})
	}
	return saved, nil
}

// categoryBlurbs feed the generated README. Every fixed category has one.
var categoryBlurbs = map[string]string{
	"implementation": "Building new features and components",
	"refactoring":    "Restructuring and cleaning up existing code",
	"debugging":      "Hunting down bugs and fixing errors",
	"testing":        "Writing and improving tests",
	"documentation":  "READMEs, docs, and code comments",
	"code-review":    "Reviewing and analyzing code",
	"general":        "Everything that fits nowhere else",
}

// WriteReadme writes the library README at the prompts root. The content
// is fully generated, so the write is idempotent.
func (o *Organizer) WriteReadme() error {
	var b strings.Builder
	b.WriteString("# Prompt Library\n\n")
	b.WriteString("Prompts extracted from agent sessions, organized by category and indexed for semantic search.\n\n")
	b.WriteString("## Layout\n\n")
	b.WriteString("Each category is a directory of markdown prompt files:\n\n")
	for _, cat := range prompt.Categories {
		fmt.Fprintf(&b, "- `%s/` - %s\n", cat, categoryBlurbs[cat])
	}
	b.WriteString("\n`index.json` is the generated catalog of prompts and sessions; do not edit it by hand.\n\n")
	b.WriteString("## Usage\n\n")
	b.WriteString("Search and manage the library through the MCP tools (`search_prompts`, `get_prompt`, `create_prompt`, ...) or the command line:\n\n")
	b.WriteString("```sh\n")
	b.WriteString("promptctl search \"retry with backoff\"\n")
	b.WriteString("promptctl organize exports/session.md\n")
	b.WriteString("promptctl index --force\n")
	b.WriteString("```\n\n")
	b.WriteString("Session exports dropped into the watched sessions directory are organized automatically.\n")

	path := filepath.Join(o.promptsDir, "README.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing library README: %w", err)
	}
	return nil
}

// fenceBody wraps the verbatim prompt in a code fence so headings inside
// it do not read as document sections when the file is parsed back.
func fenceBody(text string) string {
	return "```\n" + text + "\n```"
}

// fileStamp turns a transcript start time such as "14/01/2025, 15:30:00"
// into the filename-safe "14-01-2025_15-30-00".
func fileStamp(started string) string {
	return strings.NewReplacer(", ", "_", "/", "-", ":", "-").Replace(started)
}

func shortID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}

// titleCase upper-cases the first letter of every word, so "code-review"
// becomes "Code-Review".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upperNext := true
	for _, r := range s {
		if upperNext && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
