package detector

import (
	"time"

	"bugscope/cli/internal/classifier"
	"bugscope/cli/internal/consensus"
	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/sniff"
)

// Result is one full detection: both the rule path and the model path.
type Result struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Preview   string             `json:"code_snippet"`
	Lines     int                `json:"lines"`
	Bytes     int                `json:"bytes"`
	Language  sniff.Language     `json:"language"`
	Findings  []findings.Finding `json:"bugs_found"`
	Severity  findings.Severity  `json:"severity"`

	Baseline classifier.TierResult `json:"baseline"`
	Improved classifier.TierResult `json:"improved"`
	Outcome  consensus.Outcome     `json:"consensus"`

	// Embedding names the provider used for the improved vector; empty when none.
	Embedding string `json:"embedding,omitempty"`
	// EmbeddingFallback is set when the provider failed and the handcrafted
	// vector was used instead.
	EmbeddingFallback bool `json:"embedding_fallback,omitempty"`
}

// Bug is the consensus verdict.
func (r *Result) Bug() bool { return r.Outcome.Bug }

// Analysis is the rule-path-only multi-language result.
type Analysis struct {
	Language     sniff.Language     `json:"language"`
	Findings     []findings.Finding `json:"bugs_found"`
	Severity     findings.Severity  `json:"severity"`
	FeatureCount int                `json:"feature_count"`
	Features     []float64          `json:"features,omitempty"`
}
