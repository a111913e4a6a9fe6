// Package stats aggregates the detection history into rates and counts for
// `bugscope stats` and the HTTP /stats endpoint.
package stats

import (
	"time"

	"bugscope/cli/internal/history"
)

// Summary is the aggregate over a set of history records.
type Summary struct {
	TotalDetections    int            `json:"total_detections"`
	Bugs               int            `json:"bugs"`
	BugRate            float64        `json:"bug_rate"`
	Disagreements      int            `json:"disagreements"`
	DisagreementRate   float64        `json:"disagreement_rate"`
	RuleOnly           int            `json:"rule_only"`
	EmbeddingFallbacks int            `json:"embedding_fallbacks"`
	TotalFindings      int            `json:"total_findings"`
	FindingsPerSnippet float64        `json:"findings_per_snippet"`
	ByLanguage         map[string]int `json:"by_language"`
	BySeverity         map[string]int `json:"by_severity"`
	ByRule             map[string]int `json:"by_rule"`
	BySource           map[string]int `json:"by_source"`

	// Means are of the reported (blended) confidences, over the records where
	// the tier was present.
	MeanConfidenceBaseline float64 `json:"mean_confidence_baseline"`
	MeanConfidenceImproved float64 `json:"mean_confidence_improved"`
	BaselineBugRate        float64 `json:"baseline_bug_rate"`
	ImprovedBugRate        float64 `json:"improved_bug_rate"`

	First *time.Time `json:"first,omitempty"`
	Last  *time.Time `json:"last,omitempty"`
}

// Summarize aggregates records created at or after since (zero since keeps all).
// Rates with a zero denominator are 0.
func Summarize(records []history.Record, since time.Time) *Summary {
	s := &Summary{
		ByLanguage: map[string]int{},
		BySeverity: map[string]int{},
		ByRule:     map[string]int{},
		BySource:   map[string]int{},
	}
	var baseN, impN, baseBugs, impBugs int
	var baseConf, impConf float64
	for _, rec := range records {
		at := rec.Time()
		if !since.IsZero() && at.Before(since) {
			continue
		}
		s.TotalDetections++
		if rec.Bug {
			s.Bugs++
		}
		if rec.Disagree {
			s.Disagreements++
		}
		if rec.RuleOnly {
			s.RuleOnly++
		}
		if rec.EmbeddingFallback {
			s.EmbeddingFallbacks++
		}
		s.TotalFindings += len(rec.RuleIDs)
		s.ByLanguage[rec.Language]++
		s.BySeverity[rec.Severity]++
		if rec.Source != "" {
			s.BySource[rec.Source]++
		}
		for _, id := range rec.RuleIDs {
			s.ByRule[id]++
		}
		if b := rec.Baseline; b != nil {
			baseN++
			baseConf += rec.ConfidenceBaseline
			if b.Prediction == 1 {
				baseBugs++
			}
		}
		if m := rec.Improved; m != nil {
			impN++
			impConf += rec.ConfidenceImproved
			if m.Prediction == 1 {
				impBugs++
			}
		}
		if !at.IsZero() {
			if s.First == nil || at.Before(*s.First) {
				t := at
				s.First = &t
			}
			if s.Last == nil || at.After(*s.Last) {
				t := at
				s.Last = &t
			}
		}
	}
	s.BugRate = ratio(s.Bugs, s.TotalDetections)
	s.DisagreementRate = ratio(s.Disagreements, s.TotalDetections)
	s.FindingsPerSnippet = ratio(s.TotalFindings, s.TotalDetections)
	s.MeanConfidenceBaseline = mean(baseConf, baseN)
	s.MeanConfidenceImproved = mean(impConf, impN)
	s.BaselineBugRate = ratio(baseBugs, baseN)
	s.ImprovedBugRate = ratio(impBugs, impN)
	return s
}

// FromStore reads every record in store and summarizes them.
func FromStore(store *history.Store, since time.Time) (*Summary, error) {
	recs, err := store.ReadRecords()
	if err != nil {
		return nil, err
	}
	return Summarize(recs, since), nil
}

// AccuracyImprovement is the relative change from baseline to improved
// accuracy in percent. A zero baseline gives 0.
func AccuracyImprovement(baseline, improved float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (improved - baseline) / baseline * 100
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
