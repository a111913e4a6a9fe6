// Package sniff classifies a raw snippet as Python, Java, C++ or unknown by
// ordered indicator scoring. Python is checked first, then Java, then C++;
// the first language with at least one indicator wins. The order is a fixed
// tie-break for snippets that mix idioms, not an accuracy claim.
package sniff

import (
	"regexp"
	"strings"
)

// Language is a detected snippet language.
type Language string

const (
	Python  Language = "python"
	Java    Language = "java"
	Cpp     Language = "cpp"
	Unknown Language = "unknown"
)

// Supported lists the languages with rule catalogs, in sniffing order.
var Supported = []Language{Python, Java, Cpp}

// Parse maps a name (python, java, cpp, c++) to a Language. Anything else is Unknown.
func Parse(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py":
		return Python
	case "java":
		return Java
	case "cpp", "c++", "cxx":
		return Cpp
	default:
		return Unknown
	}
}

// indicator is one named test over the raw snippet.
type indicator struct {
	name  string
	match func(code string) bool
}

func pattern(name, expr string) indicator {
	re := regexp.MustCompile(expr)
	return indicator{name: name, match: re.MatchString}
}

// pythonLeadTokens must open a statement (line start after indentation).
// A bare substring test would let "public class Main" count as Python. This is
// stricter than a plain substring check: a C++ snippet whose comment reads
// "// copy from buffer" sniffs as cpp, not python.
var pythonLeadTokens = regexp.MustCompile(`(?m)^[ \t]*(def |import |from |class |if __name__)`)

var catalog = []struct {
	lang       Language
	indicators []indicator
}{
	{Python, []indicator{
		{name: "keyword", match: pythonLeadTokens.MatchString},
		pattern("function_def", `\bdef\s+\w+\s*\(`),
		pattern("import", `\bimport\s+`),
		pattern("from_import", `\bfrom\s+\w+\s+import`),
	}},
	{Java, []indicator{
		pattern("public_class", `public\s+(static\s+)?class\s+\w+`),
		pattern("main_method", `public\s+static\s+void\s+main\s*\(`),
		pattern("java_import", `import\s+java\.`),
		pattern("package", `(?m)^\s*package\s+`),
	}},
	{Cpp, []indicator{
		pattern("include", `#include\s*[<"]`),
		pattern("using_std", `\busing\s+namespace\s+std`),
		pattern("namespace", `\bnamespace\s+\w+`),
		pattern("template", `\btemplate\s*<`),
		pattern("pointer_decl", `\w+\s*\*\s*\w+`),
	}},
}

// Detect returns the language of code. It is pure, total and deterministic.
func Detect(code string) Language {
	for _, c := range catalog {
		for _, ind := range c.indicators {
			if ind.match(code) {
				return c.lang
			}
		}
	}
	return Unknown
}

// Indicators returns, per language in sniffing order, the names of the
// indicators that match code. Languages with no hits are omitted. Used for
// trace output; Detect is the decision.
func Indicators(code string) map[Language][]string {
	out := make(map[Language][]string)
	for _, c := range catalog {
		for _, ind := range c.indicators {
			if ind.match(code) {
				out[c.lang] = append(out[c.lang], ind.name)
			}
		}
	}
	return out
}
