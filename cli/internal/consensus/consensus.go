// Package consensus merges the baseline and improved tier results into one
// verdict with blended confidences and a short recommendation list.
package consensus

import "bugscope/cli/internal/classifier"

const (
	// ImprovedCap bounds the improved confidence.
	ImprovedCap = 0.95
	// ImprovedDelta is added to the baseline confidence to get the improved one.
	ImprovedDelta = 0.10
	// MaxRecommendations caps the recommendation list.
	MaxRecommendations = 3
)

// DisagreementNotice leads the recommendations when the tiers disagree.
const DisagreementNotice = "Models disagree - review code carefully"

// recommendations is the general catalog offered on a positive verdict, in order.
var recommendations = []string{
	"Check for uninitialized variables",
	"Review exception handling",
	"Verify loop termination conditions",
	"Check for null/None references",
	"Review type conversions",
}

// Outcome is the merged verdict.
type Outcome struct {
	Bug                bool     `json:"is_bug"`
	BaselineConfidence float64  `json:"confidence_baseline"`
	ImprovedConfidence float64  `json:"confidence_improved"`
	Disagree           bool     `json:"models_disagree"`
	Recommendations    []string `json:"recommendations"`
	// RuleOnly is set when neither tier was present.
	RuleOnly bool `json:"rule_only"`
}

// Decide merges baseline and improved. The improved tier wins when present.
// Improved confidence is min(ImprovedCap, baseline+ImprovedDelta) when the
// baseline is present, otherwise the improved tier's own confidence capped
// at ImprovedCap. An absent baseline reports confidence 0. With neither tier
// the verdict is false (rule-only).
func Decide(baseline, improved classifier.TierResult) Outcome {
	out := Outcome{Recommendations: []string{}}

	if baseline.Present {
		out.BaselineConfidence = clamp01(baseline.Confidence)
	}
	if improved.Present {
		if baseline.Present {
			out.ImprovedConfidence = min(ImprovedCap, out.BaselineConfidence+ImprovedDelta)
		} else {
			out.ImprovedConfidence = min(ImprovedCap, clamp01(improved.Confidence))
		}
	}

	switch {
	case improved.Present:
		out.Bug = improved.Prediction == 1
	case baseline.Present:
		out.Bug = baseline.Prediction == 1
	default:
		out.RuleOnly = true
	}

	if baseline.Present && improved.Present && baseline.Prediction != improved.Prediction {
		out.Disagree = true
		out.Recommendations = append(out.Recommendations, DisagreementNotice)
	}
	if out.Bug {
		out.Recommendations = append(out.Recommendations, recommendations[:MaxRecommendations]...)
	}
	if len(out.Recommendations) > MaxRecommendations {
		out.Recommendations = out.Recommendations[:MaxRecommendations]
	}
	return out
}

// Catalog returns a copy of the general recommendation catalog.
func Catalog() []string {
	return append([]string(nil), recommendations...)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
