package features

import (
	"regexp"

	"bugscope/cli/internal/sniff"
)

var languagePatterns = map[sniff.Language][GroupDims]*regexp.Regexp{
	sniff.Python: {
		regexp.MustCompile(`\bdef\s+` + word + `+\s*\(`),
		regexp.MustCompile(`\bclass\s+` + word + `+`),
		regexp.MustCompile(`\b(import|from)\s+`),
		regexp.MustCompile(`\b(for|while)\b`),
		regexp.MustCompile(`\b(if|elif|else)\b`),
	},
	sniff.Java: {
		regexp.MustCompile(`\bpublic\s+` + word + `+\s+` + word + `+\s*\(`),
		regexp.MustCompile(`\bclass\s+` + word + `+`),
		regexp.MustCompile(`\btry\s*\{`),
		regexp.MustCompile(`\bfor\s*\(`),
		regexp.MustCompile(`\bif\s*\(`),
	},
	sniff.Cpp: {
		regexp.MustCompile(word + `+\s+` + word + `+\s*\([^)]*\)\s*\{`),
		regexp.MustCompile(`\bclass\s+` + word + `+`),
		regexp.MustCompile(word + `+\s*\*`),
		regexp.MustCompile(`\bnew\s+`),
		regexp.MustCompile(`\bdelete\s+`),
	},
}

// LanguageSpecific returns five language-specific counts for lang, or nil
// for unknown languages.
//
//	python: defs, classes, imports, loops, conditionals
//	java:   public methods, classes, try blocks, for loops, if statements
//	cpp:    function bodies, classes, pointer uses, new, delete
func LanguageSpecific(code string, lang sniff.Language) []float64 {
	pats, ok := languagePatterns[lang]
	if !ok {
		return nil
	}
	out := make([]float64, GroupDims)
	for i, re := range pats {
		out[i] = count(re, code)
	}
	return out
}
