// Package history keeps a JSONL log of detections (one Record per line) in a
// state directory. The active file is bounded; older lines are rotated into
// gzipped archives and still counted by ReadRecords, so stats cover the whole
// retained history.
package history

import (
	"time"

	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/version"
)

// Source values tell where a detection came from.
const (
	SourceCLI  = "cli"
	SourceScan = "scan"
	SourceAPI  = "api"
)

// TierSnapshot is the recorded output of one classifier tier.
type TierSnapshot struct {
	Prediction int     `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Members    int     `json:"members,omitempty"`
}

// Record is one line in detections.jsonl.
type Record struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"` // RFC 3339, UTC.
	Source    string `json:"source"`
	// Path is the scanned or read file, when there was one.
	Path     string   `json:"path,omitempty"`
	Language string   `json:"language"`
	Severity string   `json:"severity"`
	RuleIDs  []string `json:"rule_ids,omitempty"`
	Lines    int      `json:"lines"`

	Baseline           *TierSnapshot `json:"baseline,omitempty"`
	Improved           *TierSnapshot `json:"improved,omitempty"`
	Bug                bool          `json:"is_bug"`
	ConfidenceBaseline float64       `json:"confidence_baseline"`
	ConfidenceImproved float64       `json:"confidence_improved"`
	Disagree           bool          `json:"models_disagree,omitempty"`
	RuleOnly           bool          `json:"rule_only,omitempty"`

	Embedding         string `json:"embedding,omitempty"`
	EmbeddingFallback bool   `json:"embedding_fallback,omitempty"`
	Version           string `json:"version,omitempty"`
}

// FromResult builds a record from a detection result. Snippet text is never
// stored; only its line count.
func FromResult(r detector.Result, source, path string) Record {
	rec := Record{
		ID:                 r.ID,
		CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
		Source:             source,
		Path:               path,
		Language:           string(r.Language),
		Severity:           string(r.Severity),
		Lines:              r.Lines,
		Bug:                r.Outcome.Bug,
		ConfidenceBaseline: r.Outcome.BaselineConfidence,
		ConfidenceImproved: r.Outcome.ImprovedConfidence,
		Disagree:           r.Outcome.Disagree,
		RuleOnly:           r.Outcome.RuleOnly,
		Embedding:          r.Embedding,
		EmbeddingFallback:  r.EmbeddingFallback,
		Version:            version.String(),
	}
	for _, f := range r.Findings {
		rec.RuleIDs = append(rec.RuleIDs, f.RuleID)
	}
	if r.Baseline.Present {
		rec.Baseline = &TierSnapshot{Prediction: r.Baseline.Prediction, Confidence: r.Baseline.Confidence, Members: r.Baseline.Members}
	}
	if r.Improved.Present {
		rec.Improved = &TierSnapshot{Prediction: r.Improved.Prediction, Confidence: r.Improved.Confidence, Members: r.Improved.Members}
	}
	return rec
}

// Time parses CreatedAt; the zero time is returned for malformed values.
func (r Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
