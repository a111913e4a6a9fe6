package server

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/sniff"
)

// Success is the envelope of every 2xx response.
type Success struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// Failure is the envelope of every error response.
type Failure struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) respondSuccess(w http.ResponseWriter, message string, data any) {
	s.respondJSON(w, http.StatusOK, Success{
		Status:    "success",
		Message:   message,
		Data:      data,
		Timestamp: s.timestamp(),
	})
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Int("status", status), zap.String("error", msg))
	}
	s.respondJSON(w, status, Failure{
		Status:    "error",
		Error:     msg,
		Code:      status,
		Timestamp: s.timestamp(),
	})
}

// TierView is one model's verdict in a Prediction.
type TierView struct {
	Available  bool    `json:"available"`
	Prediction bool    `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the API rendering of a detector.Result.
type Prediction struct {
	ID              string             `json:"id"`
	CodeSnippet     string             `json:"code_snippet"`
	Language        sniff.Language     `json:"language"`
	BugsFound       []findings.Finding `json:"bugs_found"`
	Severity        findings.Severity  `json:"severity"`
	IsBug           bool               `json:"is_bug"`
	BaselineModel   TierView           `json:"baseline_model"`
	ImprovedModel   TierView           `json:"improved_model"`
	ModelsDisagree  bool               `json:"models_disagree"`
	RuleOnly        bool               `json:"rule_only"`
	Recommendations []string           `json:"recommendations"`
	Embedding       string             `json:"embedding,omitempty"`
}

// FormatPrediction renders r for the API. Confidences are rounded to 4 places.
func FormatPrediction(r detector.Result) Prediction {
	return Prediction{
		ID:          r.ID,
		CodeSnippet: r.Preview,
		Language:    r.Language,
		BugsFound:   r.Findings,
		Severity:    r.Severity,
		IsBug:       r.Outcome.Bug,
		BaselineModel: TierView{
			Available:  r.Baseline.Present,
			Prediction: r.Baseline.Bug(),
			Confidence: round4(r.Outcome.BaselineConfidence),
		},
		ImprovedModel: TierView{
			Available:  r.Improved.Present,
			Prediction: r.Improved.Bug(),
			Confidence: round4(r.Outcome.ImprovedConfidence),
		},
		ModelsDisagree:  r.Outcome.Disagree,
		RuleOnly:        r.Outcome.RuleOnly,
		Recommendations: r.Outcome.Recommendations,
		Embedding:       r.Embedding,
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
