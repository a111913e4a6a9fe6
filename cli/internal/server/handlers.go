package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/embedding"
	"bugscope/cli/internal/erruser"
	"bugscope/cli/internal/history"
	"bugscope/cli/internal/stats"
	"bugscope/cli/internal/version"
)

// Snippet length bounds, in characters.
const (
	MinSnippetLen = 10
	MaxSnippetLen = 10000
)

const (
	// MaxBatchSize bounds the snippets of one /batch_detect request.
	MaxBatchSize = 100
	// maxBodyBytes covers a full batch of maximum-length snippets with JSON overhead.
	maxBodyBytes = 8 << 20
)

// ErrInvalidSnippet is wrapped by ValidateSnippet failures.
var ErrInvalidSnippet = errors.New("invalid code snippet")

// ValidateSnippet checks that code is present and 10..10000 characters long.
// Content is not inspected; whitespace counts toward the length.
func ValidateSnippet(code string) error {
	if code == "" {
		return fmt.Errorf("%w: code_snippet is required", ErrInvalidSnippet)
	}
	n := utf8.RuneCountInString(code)
	if n < MinSnippetLen {
		return fmt.Errorf("%w: code_snippet must be at least %d characters", ErrInvalidSnippet, MinSnippetLen)
	}
	if n > MaxSnippetLen {
		return fmt.Errorf("%w: code_snippet must be at most %d characters", ErrInvalidSnippet, MaxSnippetLen)
	}
	return nil
}

// CodeInput is the body of /detect_bug and /analyze.
type CodeInput struct {
	CodeSnippet string `json:"code_snippet"`
}

// BatchInput is the body of /batch_detect.
type BatchInput struct {
	CodeSnippets []string `json:"code_snippets"`
}

// BatchOutput is the data of a /batch_detect response.
type BatchOutput struct {
	Results []Prediction `json:"results"`
	Count   int          `json:"count"`
	Bugs    int          `json:"bugs"`
}

// AnalysisOutput is the data of an /analyze response.
type AnalysisOutput struct {
	CodeSnippet string `json:"code_snippet"`
	detector.Analysis
}

// Health is the data of a GET / response.
type Health struct {
	Version  version.BuildInfo `json:"version"`
	Detector detector.Info     `json:"detector"`
	History  bool              `json:"history"`
}

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/{$}", s.health},
		{http.MethodPost, "/detect_bug", s.detectBug},
		{http.MethodPost, "/analyze", s.analyze},
		{http.MethodPost, "/batch_detect", s.batchDetect},
		{http.MethodGet, "/stats", s.stats},
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondSuccess(w, "AI Bug Detection API is running", Health{
		Version:  version.Info(),
		Detector: s.det.Info(),
		History:  s.history != nil,
	})
}

func (s *Server) detectBug(w http.ResponseWriter, r *http.Request) {
	var in CodeInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := ValidateSnippet(in.CodeSnippet); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.det.Detect(r.Context(), in.CodeSnippet)
	if err != nil {
		s.respondError(w, detectStatus(err), erruser.Message(err))
		return
	}
	s.record(res)
	s.respondSuccess(w, "Detection complete", FormatPrediction(res))
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var in CodeInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := ValidateSnippet(in.CodeSnippet); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	snip := detector.NewSnippet(in.CodeSnippet)
	s.respondSuccess(w, "Analysis complete", AnalysisOutput{
		CodeSnippet: snip.Preview(),
		Analysis:    s.det.Analyze(in.CodeSnippet),
	})
}

func (s *Server) batchDetect(w http.ResponseWriter, r *http.Request) {
	var in BatchInput
	if !s.decode(w, r, &in) {
		return
	}
	switch {
	case len(in.CodeSnippets) == 0:
		s.respondError(w, http.StatusBadRequest, "code_snippets must not be empty")
		return
	case len(in.CodeSnippets) > MaxBatchSize:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("code_snippets holds at most %d entries", MaxBatchSize))
		return
	}
	for i, code := range in.CodeSnippets {
		if err := ValidateSnippet(code); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("code_snippets[%d]: %v", i, err))
			return
		}
	}
	results, err := s.det.DetectBatch(r.Context(), in.CodeSnippets)
	if err != nil {
		s.respondError(w, detectStatus(err), erruser.Message(err))
		return
	}
	s.record(results...)
	out := BatchOutput{Results: make([]Prediction, len(results)), Count: len(results)}
	for i, res := range results {
		out.Results[i] = FormatPrediction(res)
		if res.Bug() {
			out.Bugs++
		}
	}
	s.respondSuccess(w, "Batch detection complete", out)
}

// stats summarizes history. The optional since query parameter is a Go
// duration ("24h") or an RFC 3339 time.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Detection history is disabled.")
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"), s.now())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := stats.FromStore(s.history, since)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, erruser.Message(err))
		return
	}
	s.respondSuccess(w, "Statistics", sum)
}

func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be a duration (24h) or RFC 3339 time, got %q", v)
	}
	return t, nil
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return false
	}
	return true
}

// record appends results to history. A failed append is logged, never
// surfaced to the client.
func (s *Server) record(results ...detector.Result) {
	if s.history == nil {
		return
	}
	recs := make([]history.Record, len(results))
	for i, res := range results {
		recs[i] = history.FromResult(res, history.SourceAPI, "")
	}
	if err := s.history.Append(recs...); err != nil {
		s.log.Warn("history append failed", zap.Error(err))
	}
}

// detectStatus maps a detection failure to a status: an unreachable
// embedding provider is 502, anything else (dimension mismatch) is 500.
func detectStatus(err error) int {
	if errors.Is(err, embedding.ErrUnreachable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
