package history

import (
	"testing"
	"time"

	"bugscope/cli/internal/classifier"
	"bugscope/cli/internal/consensus"
	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/sniff"
)

func TestFromResult_copiesVerdictAndTiers(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600))
	r := detector.Result{
		ID:        "abc",
		CreatedAt: at,
		Lines:     3,
		Language:  sniff.Cpp,
		Findings: []findings.Finding{
			{RuleID: "CP001", Language: "cpp", Category: findings.CategoryMemory, Message: "m"},
			{RuleID: "CP004", Language: "cpp", Category: findings.CategoryMemory, Message: "m"},
		},
		Severity: findings.SeverityMedium,
		Improved: classifier.TierResult{Present: true, Prediction: 1, Confidence: 0.9, Members: 2},
		Outcome:  consensus.Outcome{Bug: true, ImprovedConfidence: 0.9},
	}
	rec := FromResult(r, SourceScan, "src/a.cpp")
	if rec.ID != "abc" || rec.Source != SourceScan || rec.Path != "src/a.cpp" {
		t.Errorf("identity fields = %+v", rec)
	}
	if rec.CreatedAt != "2026-05-06T06:08:09Z" {
		t.Errorf("CreatedAt = %q, want UTC RFC 3339", rec.CreatedAt)
	}
	if !rec.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", rec.Time(), at)
	}
	if len(rec.RuleIDs) != 2 || rec.RuleIDs[0] != "CP001" {
		t.Errorf("RuleIDs = %v", rec.RuleIDs)
	}
	if rec.Baseline != nil {
		t.Errorf("Baseline = %+v, want nil for absent tier", rec.Baseline)
	}
	if rec.Improved == nil || rec.Improved.Members != 2 {
		t.Errorf("Improved = %+v", rec.Improved)
	}
	if !rec.Bug || rec.ConfidenceImproved != 0.9 {
		t.Errorf("verdict = %v/%v", rec.Bug, rec.ConfidenceImproved)
	}
	if rec.Version == "" {
		t.Error("Version is empty")
	}
}

func TestRecord_Time_malformed_zero(t *testing.T) {
	t.Parallel()
	if !(Record{CreatedAt: "yesterday"}).Time().IsZero() {
		t.Error("malformed CreatedAt should give zero time")
	}
}
