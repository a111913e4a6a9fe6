package detector

import (
	"strings"
	"unicode/utf8"
)

// PreviewLen is the number of characters kept in a result's snippet preview.
const PreviewLen = 100

// Snippet is an immutable code snippet.
type Snippet struct {
	text string
}

// NewSnippet wraps code.
func NewSnippet(code string) Snippet { return Snippet{text: code} }

// Text returns the raw code.
func (s Snippet) Text() string { return s.text }

// Len returns the length in bytes.
func (s Snippet) Len() int { return len(s.text) }

// Lines returns the line count; an empty snippet has 0 lines and a trailing
// newline does not start a new line.
func (s Snippet) Lines() int {
	if s.text == "" {
		return 0
	}
	n := strings.Count(s.text, "\n")
	if !strings.HasSuffix(s.text, "\n") {
		n++
	}
	return n
}

// Preview returns the first PreviewLen characters followed by "..." when the
// snippet is longer.
func (s Snippet) Preview() string {
	if utf8.RuneCountInString(s.text) <= PreviewLen {
		return s.text
	}
	i, n := 0, 0
	for i = range s.text {
		if n == PreviewLen {
			break
		}
		n++
	}
	return s.text[:i] + "..."
}
