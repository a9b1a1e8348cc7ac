package scrapers

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
	blankLinePattern  = regexp.MustCompile(`\n{3,}`)
)

// CleanContent strips markup and normalizes whitespace. The output is
// deterministic for a given input, so formatting the same source record
// twice yields byte-identical text.
func CleanContent(raw string) string {
	text := strings.ReplaceAll(raw, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "<p>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")

	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// FormatContent renders a title, ordered metric fields, and a body into the
// uniform markdown block every scraper emits, so the downstream analysis
// step receives homogeneous input regardless of source.
func FormatContent(title string, fields [][2]string, body string) string {
	var b strings.Builder

	b.WriteString("## ")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n")

	for _, field := range fields {
		b.WriteString(fmt.Sprintf("\n**%s:** %s", field[0], field[1]))
	}

	if body = CleanContent(body); body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}

	return b.String()
}
