package scrapers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Strips HTML tags",
			input:    "<div>Hello <b>world</b></div>",
			expected: "Hello world",
		},
		{
			name:     "Converts breaks and paragraphs to newlines",
			input:    "first<br>second<p>third</p>",
			expected: "first\nsecond\nthird",
		},
		{
			name:     "Unescapes HTML entities",
			input:    "a &amp; b &lt;c&gt;",
			expected: "a & b <c>",
		},
		{
			name:     "Collapses runs of spaces and tabs",
			input:    "too   many\t\tspaces",
			expected: "too many spaces",
		},
		{
			name:     "Collapses three or more blank lines",
			input:    "first\n\n\n\n\nsecond",
			expected: "first\n\nsecond",
		},
		{
			name:     "Trims surrounding whitespace",
			input:    "  \n padded \n  ",
			expected: "padded",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanContent(tt.input))
		})
	}
}

func TestCleanContent_Idempotent(t *testing.T) {
	inputs := []string{
		"<p>Some <b>rich</b> text &amp; entities</p>",
		"plain text",
		"multi\n\n\n\nline   content",
	}

	for _, input := range inputs {
		once := CleanContent(input)
		twice := CleanContent(once)
		assert.Equal(t, once, twice)
	}
}

func TestFormatContent(t *testing.T) {
	got := FormatContent("My Title", [][2]string{
		{"Score", "42"},
		{"Author", "alice"},
	}, "<p>body text</p>")

	expected := "## My Title\n\n**Score:** 42\n**Author:** alice\n\nbody text"
	assert.Equal(t, expected, got)
}

func TestFormatContent_EmptyBodyOmitted(t *testing.T) {
	got := FormatContent("Title", [][2]string{{"K", "V"}}, "")
	assert.Equal(t, "## Title\n\n**K:** V", got)
}

func TestFormatContent_Deterministic(t *testing.T) {
	fields := [][2]string{{"Score", "10"}, {"Comments", "3"}}

	first := FormatContent("T", fields, "body")
	second := FormatContent("T", fields, "body")
	assert.Equal(t, first, second)
}
