// Package rules holds the per-language heuristic bug catalogs and evaluates
// them over raw snippet text. Each catalog is a table of condition to finding;
// every rule of the detected language is evaluated and none short-circuits
// another. This is pattern matching, not data-flow analysis: false positives
// and negatives are expected, reproducibility is the contract.
package rules

import (
	"regexp"
	"strings"

	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/sniff"
)

// Condition reports whether a rule fires on code.
type Condition func(code string) bool

// Rule is one catalog entry.
type Rule struct {
	ID       string
	Category findings.Category
	Message  string
	When     Condition
}

func has(sub string) Condition {
	return func(code string) bool { return strings.Contains(code, sub) }
}

func hasFold(sub string) Condition {
	sub = strings.ToLower(sub)
	return func(code string) bool { return strings.Contains(strings.ToLower(code), sub) }
}

func matches(expr string) Condition {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

func allOf(cs ...Condition) Condition {
	return func(code string) bool {
		for _, c := range cs {
			if !c(code) {
				return false
			}
		}
		return true
	}
}

func anyOf(cs ...Condition) Condition {
	return func(code string) bool {
		for _, c := range cs {
			if c(code) {
				return true
			}
		}
		return false
	}
}

func not(c Condition) Condition {
	return func(code string) bool { return !c(code) }
}

var pythonRules = []Rule{
	{
		ID:       "PY001",
		Category: findings.CategoryStyle,
		Message:  "Mutable default argument detected",
		When: allOf(
			anyOf(allOf(has("def "), has("[]")), has("{}")),
			matches(`def\s+\w+\([^)]*=[\[\{]`),
		),
	},
	{
		ID:       "PY002",
		Category: findings.CategoryExceptionHandling,
		Message:  "Bare except clause detected - specify exception type",
		When:     matches(`except\s*:`),
	},
	{
		ID:       "PY003",
		Category: findings.CategoryControlFlow,
		Message:  "Function may not return a value",
		When:     allOf(has("def "), not(has("return")), has("pass")),
	},
	{
		ID:       "PY004",
		Category: findings.CategoryControlFlow,
		Message:  "Infinite loop detected - missing break statement",
		When:     allOf(has("while True"), not(has("break"))),
	},
}

var javaRules = []Rule{
	{
		ID:       "JV001",
		Category: findings.CategoryNullSafety,
		Message:  "Potential null pointer exception",
		When:     allOf(anyOf(has(".length"), has(".size()")), not(has("null")), not(has("if"))),
	},
	{
		ID:       "JV002",
		Category: findings.CategoryResourceLeak,
		Message:  "Resource not closed - use try-with-resources",
		When:     allOf(anyOf(has("FileInputStream"), has("FileOutputStream")), not(has("close()"))),
	},
	{
		ID:       "JV003",
		Category: findings.CategoryControlFlow,
		Message:  "Infinite loop detected",
		When:     has("while(true)"),
	},
	{
		ID:       "JV004",
		Category: findings.CategoryExceptionHandling,
		Message:  "Exception thrown without handling",
		When:     allOf(matches(`throw new \w+Exception`), not(has("catch")), not(has("throws"))),
	},
	{
		ID:       "JV005",
		Category: findings.CategoryControlFlow,
		Message:  "Missing break statement in switch case (fallthrough risk)",
		When:     allOf(has("switch"), has("case"), not(has("break"))),
	},
}

var cppRules = []Rule{
	{
		ID:       "CP001",
		Category: findings.CategoryMemory,
		Message:  "Potential memory leak (new without delete)",
		When:     allOf(has("new "), not(has("delete"))),
	},
	{
		ID:       "CP002",
		Category: findings.CategoryNullSafety,
		Message:  "Potential null pointer dereference",
		When:     allOf(has("->"), not(has("nullptr")), not(has("!="))),
	},
	{
		ID:       "CP003",
		Category: findings.CategoryMemory,
		Message:  "Unsafe string function used - use safe alternatives",
		When:     allOf(anyOf(has("strcpy"), has("sprintf")), not(has("strncpy")), not(has("snprintf"))),
	},
	{
		ID:       "CP004",
		Category: findings.CategoryMemory,
		Message:  "Uninitialized variable detected",
		When:     matches(`\b(?:int|long|short|char|float|double|bool|unsigned|size_t)\s+\w+\s*;`),
	},
	{
		ID:       "CP005",
		Category: findings.CategoryMemory,
		Message:  "Array access without bounds checking",
		When:     allOf(has("["), has("]"), not(hasFold("bounds")), not(hasFold("check"))),
	},
}

var catalogs = map[sniff.Language][]Rule{
	sniff.Python: pythonRules,
	sniff.Java:   javaRules,
	sniff.Cpp:    cppRules,
}

// Catalog returns a copy of the rule table for lang, or nil for unknown languages.
func Catalog(lang sniff.Language) []Rule {
	rules := catalogs[lang]
	if len(rules) == 0 {
		return nil
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Check evaluates every rule of lang's catalog over code and returns the
// findings in catalog order. Unknown languages and clean snippets yield an
// empty (non-nil) slice.
func Check(code string, lang sniff.Language) []findings.Finding {
	out := []findings.Finding{}
	for _, r := range catalogs[lang] {
		if r.When(code) {
			out = append(out, r.finding(lang))
		}
	}
	return out
}

func (r Rule) finding(lang sniff.Language) findings.Finding {
	return findings.Finding{
		RuleID:   r.ID,
		Language: string(lang),
		Category: r.Category,
		Message:  r.Message,
	}
}

// Evaluate runs a single rule over code; it is how rules are tested one at a time.
func (r Rule) Evaluate(code string) bool {
	return r.When != nil && r.When(code)
}
