package prompt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/promptd/internal/prompt"
)

func TestRenderParse_RoundTrip(t *testing.T) {
	doc := prompt.Document{
		Title:     "Refactor storage layer",
		Category:  "refactoring",
		SessionID: "a1b2c3d4-e5f6",
		Date:      "14/03/2025, 10:22:31",
		Keywords:  []string{"go", "refactor", "storage"},
		Source:    prompt.SourceSession,
		Sections: []prompt.Section{
			{Name: "Role", Body: "You are a senior Go engineer."},
			{Name: "Objective", Body: "Split the storage layer into testable units."},
		},
		Body: "Refactor the storage layer so each store can be tested in isolation.\n\nKeep the public API unchanged.",
	}

	parsed := prompt.Parse(doc.Render())

	assert.Equal(t, doc.Title, parsed.Title)
	assert.Equal(t, doc.Category, parsed.Category)
	assert.Equal(t, doc.SessionID, parsed.SessionID)
	assert.Equal(t, doc.Date, parsed.Date)
	assert.Equal(t, doc.Keywords, parsed.Keywords)
	assert.Equal(t, doc.Source, parsed.Source)
	assert.Equal(t, doc.Sections, parsed.Sections)
	assert.Equal(t, doc.Body, parsed.Body)
}

func TestRender_NoKeywordsWritesNone(t *testing.T) {
	doc := prompt.Document{
		Title:    "Quick note",
		Category: "general",
		Date:     "01/01/2025, 00:00:00",
		Body:     "body",
	}

	raw := doc.Render()

	assert.Contains(t, raw, "- **Keywords**: none\n")
	assert.Contains(t, raw, "- **Source**: manual\n")
	assert.NotContains(t, raw, "- **Session**:", "session line omitted when empty")

	parsed := prompt.Parse(raw)
	assert.Empty(t, parsed.Keywords, `"none" must not round-trip as a keyword`)
}

func TestParse_MissingSectionsLeaveZeroValues(t *testing.T) {
	parsed := prompt.Parse("just some text\nwith no structure at all")

	assert.Empty(t, parsed.Title)
	assert.Empty(t, parsed.Category)
	assert.Empty(t, parsed.Body)
	assert.Empty(t, parsed.Sections)
}

func TestParse_TemplateVariablesDiscarded(t *testing.T) {
	doc := prompt.Document{
		Title:    "X",
		Category: "general",
		Date:     "01/01/2025, 00:00:00",
		Body:     "content here",
	}

	parsed := prompt.Parse(doc.Render())

	assert.Equal(t, "content here", parsed.Body)
	for _, s := range parsed.Sections {
		assert.NotEqual(t, "Template Variables", s.Name)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "solid refactor",
			content: "Apply SOLID principles and refactor this service into smaller units",
			want:    "refactoring",
		},
		{
			name:    "testing prompt",
			content: "Write unittest coverage with pytest for the parser edge cases and e2e flows",
			want:    "testing",
		},
		{
			name:    "debugging prompt",
			content: "Troubleshoot the bug causing this error and fix the crash",
			want:    "debugging",
		},
		{
			name:    "documentation prompt",
			content: "Update the readme and document the configuration docs layout",
			want:    "documentation",
		},
		{
			name:    "no signal",
			content: "lorem ipsum dolor sit amet",
			want:    "general",
		},
		{
			name:    "empty content",
			content: "",
			want:    "general",
		},
		{
			name:    "tie goes to earlier category",
			content: "refactor the test", // one hit each for refactoring and testing
			want:    "refactoring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prompt.Classify(tt.content))
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "uses markdown header",
			content: "# Optimize database queries\n\nsome body",
			want:    "Optimize database queries",
		},
		{
			name:    "skips prompt headers",
			content: "# Prompt: whatever\nRewrite the cache eviction policy",
			want:    "Rewrite the cache eviction policy",
		},
		{
			name:    "strips emphasis",
			content: "**Review the error handling** in the watcher",
			want:    "Review the error handling in the watcher",
		},
		{
			name:    "empty content falls back",
			content: "\n\n  \n",
			want:    prompt.DefaultTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prompt.Title(tt.content))
		})
	}
}

func TestTitle_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("word ", 40)

	got := prompt.Title(long)

	assert.True(t, strings.HasSuffix(got, "..."), "long titles end with ellipsis")
	assert.LessOrEqual(t, len([]rune(got)), 63)
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 22, 31, 0, time.UTC)

	a := prompt.Filename("some content", now)
	b := prompt.Filename("some content", now)
	c := prompt.Filename("other content", now)

	assert.Equal(t, a, b, "same content and time produce the same name")
	assert.NotEqual(t, a, c, "content hash differentiates same-second creates")
	assert.True(t, strings.HasPrefix(a, "14-03-2025_10-22-31_"))
	assert.True(t, strings.HasSuffix(a, "_prompt1.md"))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "14-03-2025_10-22-31_ab12cd34_prompt1",
		prompt.Stem("refactoring/14-03-2025_10-22-31_ab12cd34_prompt1.md"))
	assert.Equal(t, "notes", prompt.Stem("notes.md"))
}

func TestValidCategory(t *testing.T) {
	for _, c := range prompt.Categories {
		assert.True(t, prompt.ValidCategory(c), c)
	}
	assert.False(t, prompt.ValidCategory("memes"))
	assert.False(t, prompt.ValidCategory(""))
	assert.False(t, prompt.ValidCategory("Refactoring"), "categories are case-sensitive")
}
