// Package session parses exported agent session transcripts and files the
// user prompts they contain into the prompt library layout.
//
// A transcript is a markdown export with a small metadata header (session
// id, start time, duration) followed by alternating user and assistant
// blocks. Only the user blocks are harvested; each one becomes a prompt
// document in its own category directory.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/promptd/internal/prompt"
)

// Metadata holds the header fields of a transcript export.
type Metadata struct {
	SessionID string
	Started   string
	Duration  string
	Exported  string
	FileName  string
	FileSize  int64
}

// Conversation is a single user prompt extracted from a transcript.
type Conversation struct {
	// Index is 1-based and follows the order of appearance in the export.
	Index        int
	Prompt       string
	Type         string
	HasStructure bool
	Keywords     []string
	// Structure holds the ROL/CONTEXTO/OBJETIVO/OUTPUT/NOTAS blocks when
	// the prompt uses the structured template, in canonical order.
	Structure []prompt.Section
}

// Transcript is the parsed form of a session export.
type Transcript struct {
	Metadata      Metadata
	Conversations []Conversation
	// Categories lists the distinct conversation types in order of first
	// appearance.
	Categories []string
	// MainCategory is the most common conversation type; ties go to the
	// one that appeared first. Empty transcripts get DefaultCategory.
	MainCategory string
	Summary      string
}

// Keywords returns the union of all conversation keywords in order of
// first appearance.
func (t *Transcript) Keywords() []string {
	seen := make(map[string]bool)
	var all []string
	for _, conv := range t.Conversations {
		for _, kw := range conv.Keywords {
			if !seen[kw] {
				seen[kw] = true
				all = append(all, kw)
			}
		}
	}
	return all
}

var (
	sessionIDRe  = regexp.MustCompile("Session ID:.*?`([^`]+)`")
	startedRe    = regexp.MustCompile(`Started:.*?(\d{1,2}/\d{1,2}/\d{4}, \d{1,2}:\d{2}:\d{2})`)
	durationRe   = regexp.MustCompile(`Duration:.*?(\d+m \d+s)`)
	exportedRe   = regexp.MustCompile(`Exported:.*?(\d{1,2}/\d{1,2}/\d{4}, \d{1,2}:\d{2}:\d{2})`)
	userHeaderRe = regexp.MustCompile(`### 👤 User\s*\n\n`)
)

// Parse reads and parses a transcript export from disk.
func Parse(path string) (*Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session export: %w", err)
	}
	return ParseContent(string(raw), filepath.Base(path)), nil
}

// ParseContent parses transcript content that is already in memory.
// Transcripts are never rejected: a file with no recognizable header or
// user blocks yields an empty Transcript rather than an error.
func ParseContent(content, fileName string) *Transcript {
	t := &Transcript{
		Metadata: Metadata{
			FileName: fileName,
			FileSize: int64(len(content)),
		},
	}

	if m := sessionIDRe.FindStringSubmatch(content); m != nil {
		t.Metadata.SessionID = m[1]
	} else {
		// Without an id two exports could collide on filename, so mint one.
		t.Metadata.SessionID = uuid.NewString()
	}
	if m := startedRe.FindStringSubmatch(content); m != nil {
		t.Metadata.Started = m[1]
	}
	if m := durationRe.FindStringSubmatch(content); m != nil {
		t.Metadata.Duration = m[1]
	}
	if m := exportedRe.FindStringSubmatch(content); m != nil {
		t.Metadata.Exported = m[1]
	}

	t.Conversations = extractConversations(content)
	t.Categories, t.MainCategory = categorize(t.Conversations)
	t.Summary = fmt.Sprintf("%d conversations - Focus: %s", len(t.Conversations), t.MainCategory)
	return t
}

// extractConversations pulls out every user block. A block runs from the
// user header to the next message separator ("---" on its own line), the
// next "### " heading, or end of input, whichever comes first.
func extractConversations(content string) []Conversation {
	headers := userHeaderRe.FindAllStringIndex(content, -1)
	convs := make([]Conversation, 0, len(headers))
	for i, loc := range headers {
		start := loc[1]
		end := len(content)
		if idx := strings.Index(content[start:], "\n---"); idx >= 0 {
			end = start + idx
		}
		if idx := strings.Index(content[start:], "\n### "); idx >= 0 && start+idx < end {
			end = start + idx
		}
		text := strings.TrimSpace(content[start:end])

		conv := Conversation{
			Index:        i + 1,
			Prompt:       text,
			Type:         classifyConversation(text),
			HasStructure: hasStructure(text),
			Keywords:     extractKeywords(text),
		}
		if conv.HasStructure {
			conv.Structure = extractStructure(text)
		}
		convs = append(convs, conv)
	}
	return convs
}

// conversationRules classify a prompt by substring markers. Rules are
// ordered and the first match wins, so "fix the tests" is testing, not
// debugging.
var conversationRules = []struct {
	category string
	markers  []string
}{
	{"refactoring", []string{"refactor", "clean code", "optimize"}},
	{"testing", []string{"test", "testing", "spec"}},
	{"debugging", []string{"bug", "fix", "error", "issue"}},
	{"implementation", []string{"implement", "create", "develop", "feature"}},
	{"code-review", []string{"review", "analyze", "check"}},
	{"documentation", []string{"documentation", "document", "readme"}},
}

func classifyConversation(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range conversationRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule.category
			}
		}
	}
	return prompt.DefaultCategory
}

var structureMarkers = []string{"## ROL", "## CONTEXTO", "## OBJETIVO", "## 📋", "## 🎯"}

func hasStructure(text string) bool {
	for _, marker := range structureMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// structureSectionRes match the known template sections. Headings may
// carry a 📋 or 🎯 prefix and any casing; the body runs until the next
// heading or end of prompt.
var structureSectionRes = []struct {
	name string
	re   *regexp.Regexp
}{
	{"ROL", sectionRe("ROL")},
	{"CONTEXTO", sectionRe("CONTEXTO")},
	{"OBJETIVO", sectionRe("OBJETIVO")},
	{"OUTPUT", sectionRe("Output")},
	{"NOTAS", sectionRe("Notas")},
}

func sectionRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)## (?:📋 |🎯 )?` + name + `(.*?)(?:##|$)`)
}

func extractStructure(text string) []prompt.Section {
	var sections []prompt.Section
	for _, s := range structureSectionRes {
		m := s.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		sections = append(sections, prompt.Section{Name: s.name, Body: body})
	}
	return sections
}

// keywordVocabulary is the fixed retrieval vocabulary: languages,
// frameworks, and task verbs. Matching is plain substring containment.
var keywordVocabulary = []string{
	"python", "javascript", "typescript", "java", "go", "rust", "cap", "cds",
	"react", "vue", "angular", "express", "sap", "bruno", "jest",
	"refactor", "test", "debug", "implement", "optimize", "fix",
}

func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var keywords []string
	for _, kw := range keywordVocabulary {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func categorize(convs []Conversation) (categories []string, main string) {
	counts := make(map[string]int)
	for _, conv := range convs {
		if counts[conv.Type] == 0 {
			categories = append(categories, conv.Type)
		}
		counts[conv.Type]++
	}
	best := 0
	for _, cat := range categories {
		if counts[cat] > best {
			best = counts[cat]
			main = cat
		}
	}
	if main == "" {
		main = prompt.DefaultCategory
	}
	return categories, main
}
