package prompt

import "strings"

// classifiers maps categories to the substrings that vote for them.
// Order matters: when two categories tie, the one listed first wins, so
// the hottest categories sit at the top.
var classifiers = []struct {
	category string
	keywords []string
}{
	{"refactoring", []string{"refactor", "clean code", "solid", "design pattern", "restructure"}},
	{"testing", []string{"test", "unittest", "integration test", "e2e", "qa", "jest", "pytest"}},
	{"debugging", []string{"debug", "error", "bug", "fix", "troubleshoot", "issue"}},
	{"implementation", []string{"implement", "create", "develop", "build", "feature"}},
	{"documentation", []string{"document", "readme", "docs", "comment", "explain"}},
	{"code-review", []string{"review", "pull request", "feedback", "revision"}},
}

// Classify picks a category for content by counting classifier keyword
// hits; the highest-scoring category wins and no hits at all fall back to
// DefaultCategory. Matching is case-insensitive substring matching — a
// deliberate blunt instrument, since misfiled documents are recoverable
// via update.
func Classify(content string) string {
	lower := strings.ToLower(content)

	best := DefaultCategory
	bestScore := 0
	for _, c := range classifiers {
		score := 0
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = c.category
			bestScore = score
		}
	}

	return best
}
