package main

import (
	"fmt"
	"io"
	"sort"

	"bugscope/cli/internal/classifier"
	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/scan"
	"bugscope/cli/internal/stats"
)

func verdict(bug bool) string {
	if bug {
		return "BUG"
	}
	return "clean"
}

func tierLine(label string, r classifier.TierResult, conf float64) string {
	if !r.Present {
		return fmt.Sprintf("%s: absent", label)
	}
	return fmt.Sprintf("%s: prediction %d, confidence %.4f", label, r.Prediction, conf)
}

func writeFindings(w io.Writer, list []findings.Finding) {
	if len(list) == 0 {
		fmt.Fprintln(w, "  no rule findings")
		return
	}
	for _, f := range list {
		fmt.Fprintf(w, "  %s  %s\n", f.RuleID, f.Message)
	}
}

func writeResultHuman(w io.Writer, r detector.Result) {
	fmt.Fprintf(w, "Language: %s   Severity: %s   Lines: %d\n", r.Language, r.Severity, r.Lines)
	writeFindings(w, r.Findings)
	if r.Outcome.RuleOnly {
		fmt.Fprintln(w, "Verdict: rule-only (no classifier tiers loaded)")
		return
	}
	fmt.Fprintln(w, tierLine("Baseline", r.Baseline, r.Outcome.BaselineConfidence))
	fmt.Fprintln(w, tierLine("Improved", r.Improved, r.Outcome.ImprovedConfidence))
	if r.EmbeddingFallback {
		fmt.Fprintln(w, "Embedding failed; improved tier used handcrafted features.")
	}
	fmt.Fprintf(w, "Verdict: %s\n", verdict(r.Bug()))
	for _, rec := range r.Outcome.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}

func writeAnalysisHuman(w io.Writer, a detector.Analysis) {
	fmt.Fprintf(w, "Language: %s   Severity: %s   Language features: %d\n", a.Language, a.Severity, a.FeatureCount)
	writeFindings(w, a.Findings)
}

func writeScanHuman(w io.Writer, o *scan.Outcome) {
	for _, rep := range o.Reports {
		r := rep.Result
		status := verdict(r.Bug())
		if r.Outcome.RuleOnly {
			status = "rule-only"
		}
		fmt.Fprintf(w, "%s  [%s, %s, %s]\n", rep.Path, r.Language, r.Severity, status)
		for _, f := range r.Findings {
			fmt.Fprintf(w, "  %s  %s\n", f.RuleID, f.Message)
		}
	}
	fmt.Fprintf(w, "%d file(s) scanned, %d bug verdict(s), %d skipped\n", len(o.Reports), o.Bugs(), len(o.Skipped))
}

func sortedCounts(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return out
}

func writeStatsHuman(w io.Writer, s *stats.Summary) {
	fmt.Fprintf(w, "Detections: %d\n", s.TotalDetections)
	if s.TotalDetections == 0 {
		return
	}
	fmt.Fprintf(w, "Bugs: %d (%.1f%%)\n", s.Bugs, s.BugRate*100)
	fmt.Fprintf(w, "Model disagreements: %d (%.1f%%)\n", s.Disagreements, s.DisagreementRate*100)
	fmt.Fprintf(w, "Rule-only: %d   Embedding fallbacks: %d\n", s.RuleOnly, s.EmbeddingFallbacks)
	fmt.Fprintf(w, "Findings: %d (%.2f per snippet)\n", s.TotalFindings, s.FindingsPerSnippet)
	fmt.Fprintf(w, "Mean confidence: baseline %.4f, improved %.4f\n", s.MeanConfidenceBaseline, s.MeanConfidenceImproved)
	for _, group := range []struct {
		label  string
		counts map[string]int
	}{
		{"By language", s.ByLanguage},
		{"By severity", s.BySeverity},
		{"By source", s.BySource},
		{"By rule", s.ByRule},
	} {
		if len(group.counts) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", group.label, sortedCounts(group.counts))
	}
}
