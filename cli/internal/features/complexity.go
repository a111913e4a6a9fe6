package features

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reBranch = regexp.MustCompile(`\b(if|elif|for|while|and|or)\b`)
	reExcept = regexp.MustCompile(`\bexcept\b`)
)

// indentWidth is the number of leading whitespace characters per nesting level.
const indentWidth = 4

// Complexity returns cyclomatic complexity, lines of code, maximum nesting
// depth, comment-to-code ratio and blank line count. Comments are lines
// starting with '#'.
func Complexity(code string) [GroupDims]float64 {
	lines := strings.Split(code, "\n")
	var loc, comments, blank, depth int
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			blank++
			continue
		case strings.HasPrefix(trimmed, "#"):
			comments++
			continue
		}
		loc++
		lead := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
		if d := lead / indentWidth; d > depth {
			depth = d
		}
	}
	return [GroupDims]float64{
		Cyclomatic(code),
		float64(loc),
		float64(depth),
		float64(comments) / float64(max(loc, 1)),
		float64(blank),
	}
}

// Cyclomatic is 1 plus branch keywords plus except clauses.
func Cyclomatic(code string) float64 {
	return 1 + count(reBranch, code) + count(reExcept, code)
}
