package prompt

import (
	"bufio"
	"strings"
)

const maxLineSize = 1024 * 1024

// Parse reads a canonical prompt file back into a Document. Parsing is
// tolerant: missing sections leave zero values, unknown "## " headings
// between Metadata and Content are collected as Sections, and anything
// under Template Variables is discarded. Fenced code blocks are opaque,
// so a verbatim prompt that itself contains "## " lines stays in one
// piece. Callers decide how to default absent fields.
func Parse(raw string) Document {
	var d Document

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		heading string
		lines   []string
		inFence bool
	)

	flush := func() {
		switch heading {
		case "":
		case "Metadata":
			parseMetadata(&d, lines)
		case "Content":
			d.Body = strings.TrimSpace(strings.Join(lines, "\n"))
		case "Template Variables":
			// boilerplate, not document state
		default:
			d.Sections = append(d.Sections, Section{
				Name: heading,
				Body: strings.TrimSpace(strings.Join(lines, "\n")),
			})
		}
		lines = lines[:0]
	}

	for sc.Scan() {
		line := sc.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}

		if !inFence {
			if d.Title == "" && strings.HasPrefix(line, "# Prompt: ") {
				d.Title = strings.TrimSpace(strings.TrimPrefix(line, "# Prompt: "))
				continue
			}

			if strings.HasPrefix(line, "## ") {
				flush()
				heading = strings.TrimSpace(strings.TrimPrefix(line, "## "))
				continue
			}
		}

		if heading != "" {
			lines = append(lines, line)
		}
	}
	flush()

	return d
}

func parseMetadata(d *Document, lines []string) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- **") {
			continue
		}

		rest := strings.TrimPrefix(trimmed, "- **")
		idx := strings.Index(rest, "**:")
		if idx < 0 {
			continue
		}
		key := rest[:idx]
		value := strings.TrimSpace(rest[idx+len("**:"):])

		switch key {
		case "Type":
			d.Category = value
		case "Session":
			d.SessionID = value
		case "Date":
			d.Date = value
		case "Source":
			d.Source = value
		case "Keywords":
			for _, kw := range strings.Split(value, ",") {
				kw = strings.TrimSpace(kw)
				if kw == "" || strings.EqualFold(kw, "none") {
					continue
				}
				d.Keywords = append(d.Keywords, kw)
			}
		}
	}
}
