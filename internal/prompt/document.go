// Package prompt defines the prompt document model and the canonical
// markdown template every library file is written in. The filesystem copy
// of a document is authoritative; the vector store and JSON index only
// hold derived references.
package prompt

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Categories is the fixed taxonomy. Each category is a directory under the
// prompts dir; documents never live outside one.
var Categories = []string{
	"refactoring",
	"testing",
	"debugging",
	"implementation",
	"code-review",
	"documentation",
	"general",
}

const (
	// DefaultCategory is used when classification finds no signal or a
	// supplied category fails validation.
	DefaultCategory = "general"

	// DefaultTitle stands in for documents whose title cannot be recovered.
	DefaultTitle = "Untitled Prompt"

	// SourceManual marks documents created directly through the library API.
	SourceManual = "manual"

	// SourceSession marks documents extracted from an agent session export.
	SourceSession = "session"

	// DateLayout is the human-readable timestamp written to the Metadata
	// section.
	DateLayout = "02/01/2006, 15:04:05"

	fileStampLayout = "02-01-2006_15-04-05"
	maxTitleLen     = 60
)

// ValidCategory reports whether category is part of the fixed taxonomy.
func ValidCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// Section is an optional structured block (Role, Context, Objective, ...)
// rendered between the Metadata and Content sections.
type Section struct {
	Name string
	Body string
}

// Document is the parsed in-memory form of one prompt file.
type Document struct {
	Title     string
	Category  string
	SessionID string
	Date      string
	Keywords  []string
	Source    string
	Sections  []Section
	Body      string
}

// Render produces the canonical markdown representation. Parse reads the
// same shape back; the pair is the only grammar prompt files use.
func (d Document) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Prompt: %s\n\n", d.Title)

	b.WriteString("## Metadata\n")
	fmt.Fprintf(&b, "- **Type**: %s\n", d.Category)
	if d.SessionID != "" {
		fmt.Fprintf(&b, "- **Session**: %s\n", d.SessionID)
	}
	fmt.Fprintf(&b, "- **Date**: %s\n", d.Date)

	keywords := "none"
	if len(d.Keywords) > 0 {
		keywords = strings.Join(d.Keywords, ", ")
	}
	fmt.Fprintf(&b, "- **Keywords**: %s\n", keywords)

	source := d.Source
	if source == "" {
		source = SourceManual
	}
	fmt.Fprintf(&b, "- **Source**: %s\n\n", source)

	for _, s := range d.Sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.Name, s.Body)
	}

	b.WriteString("## Content\n\n")
	b.WriteString(d.Body)
	b.WriteString("\n\n## Template Variables\n")
	b.WriteString("<!-- Define variables for reuse -->\n")
	b.WriteString("- `{{PROJECT_NAME}}`:\n")
	b.WriteString("- `{{CONTEXT}}`:\n")
	b.WriteString("- `{{SPECIFIC_TASK}}`:\n")

	return b.String()
}

// Filename builds the storage filename for new documents:
// <dd-mm-yyyy_HH-MM-SS>_<md5(content)[:8]>_prompt1.md. The content hash
// keeps two documents created within the same second from colliding.
func Filename(content string, now time.Time) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%s_prompt1.md", now.Format(fileStampLayout), hex.EncodeToString(sum[:])[:8])
}

// Stem returns the path's base name without its extension. Chunk ids and
// vector metadata key on the stem, never the full path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Title derives a display title from raw content: the first markdown
// header (unless it is itself a "Prompt ..." header), else the first
// non-empty line with emphasis markers removed, truncated to 60 runes.
func Title(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			header := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if header != "" && !strings.HasPrefix(strings.ToLower(header), "prompt") {
				return truncateTitle(header)
			}
			continue
		}

		title := strings.ReplaceAll(line, "**", "")
		title = strings.TrimSpace(strings.ReplaceAll(title, "*", ""))
		if title != "" {
			return truncateTitle(title)
		}
	}

	return DefaultTitle
}

func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleLen {
		return s
	}
	return string([]rune(s)[:maxTitleLen]) + "..."
}
