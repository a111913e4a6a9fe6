// Package findings defines the schema for rule-engine bug findings and the
// severity derived from them. It is the single source of truth for the CLI,
// the HTTP API and the detection history.
package findings

import "strings"

// Severity is the overall severity of a snippet's rule findings.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severity thresholds on the finding count: 0 is low, up to
// mediumMaxFindings is medium, anything above is high.
const mediumMaxFindings = 2

// SeverityFor returns the severity for n findings: 0 is low, 1-2 is medium, more than 2 is high.
// Negative n is treated as 0.
func SeverityFor(n int) Severity {
	switch {
	case n > mediumMaxFindings:
		return SeverityHigh
	case n > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Rank orders severities for comparisons (low < medium < high). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// ParseSeverity normalizes s (trim, lowercase) and reports whether it names a severity.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	return sev, sev.Rank() > 0
}

// Category tags what kind of defect a rule looks for.
type Category string

const (
	CategoryNullSafety        Category = "null_safety"
	CategoryResourceLeak      Category = "resource_leak"
	CategoryMemory            Category = "memory"
	CategoryControlFlow       Category = "control_flow"
	CategoryExceptionHandling Category = "exception_handling"
	CategoryStyle             Category = "style"
)

// Finding is one rule hit: the rule that fired, the language catalog it came
// from, its category and the human-readable message.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Language string   `json:"language"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// Messages returns the messages of list in order.
func Messages(list []Finding) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		out = append(out, f.Message)
	}
	return out
}
