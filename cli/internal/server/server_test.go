package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bugscope/cli/internal/classifier"
	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/embedding"
	"bugscope/cli/internal/features"
	"bugscope/cli/internal/history"
)

// opencensus (pulled in by the genai client) starts its view worker in init.
var ignoreOpencensus = goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, ignoreOpencensus)
}

const cppSnippet = "#include <iostream>\nint main() {\n    int *p = new int;\n    int x;\n    return 0;\n}\n"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// positive is a logistic tier with zero weights: P(1) = sigmoid(2) for any input.
func positive(dim int) classifier.Tier {
	return classifier.Single{Model: &classifier.Logistic{Weights: make([]float64, dim), Bias: 2}}
}

func newServer(t *testing.T, dopts detector.Options, store *history.Store) *Server {
	t.Helper()
	if dopts.Now == nil {
		dopts.Now = func() time.Time { return fixedNow }
	}
	d, err := detector.New(dopts)
	require.NoError(t, err)
	s, err := New(Options{
		Detector: d,
		History:  store,
		CORS:     CORSConfig{Origins: []string{"*"}, AllowCredentials: true},
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func codeBody(t *testing.T, code string) string {
	t.Helper()
	b, err := json.Marshal(CodeInput{CodeSnippet: code})
	require.NoError(t, err)
	return string(b)
}

type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      int             `json:"code"`
	Timestamp string          `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestValidateSnippet(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"empty", "", false},
		{"short whitespace", "     ", false},
		{"long whitespace", "            ", true},
		{"nine chars", "123456789", false},
		{"ten chars", "1234567890", true},
		{"ten runes multibyte", "éééééééééé", true},
		{"max", strings.Repeat("a", MaxSnippetLen), true},
		{"over max", strings.Repeat("a", MaxSnippetLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSnippet(tt.code)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSnippet)
			}
		})
	}
}

func TestHealth_reportsDetectorInfo(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{Baseline: positive(features.BaselineDims)}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "AI Bug Detection API is running", env.Message)
	assert.Equal(t, "2026-03-01T12:00:00Z", env.Timestamp)

	var h Health
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.True(t, h.Detector.BaselinePresent)
	assert.False(t, h.Detector.ImprovedPresent)
	assert.False(t, h.History)
}

func TestDetectBug_bothTiers_formatsPrediction(t *testing.T) {
	t.Parallel()
	store := history.NewStore(t.TempDir(), 0)
	s := newServer(t, detector.Options{
		Baseline: positive(features.BaselineDims),
		Improved: positive(features.HandcraftedDims),
	}, store)

	rec := do(t, s.Handler(), http.MethodPost, "/detect_bug", codeBody(t, cppSnippet))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.Equal(t, "success", env.Status)

	var p Prediction
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "cpp", string(p.Language))
	assert.True(t, p.IsBug)
	assert.True(t, p.BaselineModel.Available)
	assert.True(t, p.BaselineModel.Prediction)
	assert.Equal(t, 0.8808, p.BaselineModel.Confidence)
	assert.Equal(t, 0.95, p.ImprovedModel.Confidence)
	assert.False(t, p.ModelsDisagree)
	assert.Len(t, p.Recommendations, 3)
	var ids []string
	for _, f := range p.BugsFound {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, "CP001")
	assert.Contains(t, ids, "CP004")

	recs, err := store.ReadRecords()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.SourceAPI, recs[0].Source)
	assert.Equal(t, p.ID, recs[0].ID)
}

func TestDetectBug_invalidInput_400(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing snippet", `{}`},
		{"too short", codeBody(t, "x = 1")},
		{"too long", codeBody(t, strings.Repeat("a", MaxSnippetLen+1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, s.Handler(), http.MethodPost, "/detect_bug", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, http.StatusBadRequest, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.Join(embedding.ErrUnreachable, errors.New("connection refused"))
}
func (downEmbedder) Dimensions() int { return 768 }
func (downEmbedder) Name() string    { return "down" }

func TestDetectBug_embeddingUnreachable_502(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{
		Improved: positive(features.HandcraftedDims + features.ReducedEmbeddingDims),
		Embedder: downEmbedder{},
		Policy:   features.PolicyAppend,
	}, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/detect_bug", codeBody(t, cppSnippet))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "error", decodeEnvelope(t, rec).Status)
}

func TestAnalyze_ruleOnly(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	code := "def f(x=[]):\n    pass\n"
	rec := do(t, s.Handler(), http.MethodPost, "/analyze", codeBody(t, code))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var out AnalysisOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, code, out.CodeSnippet)
	assert.Equal(t, "python", string(out.Language))
	assert.Equal(t, 5, out.FeatureCount)
	assert.Len(t, out.Findings, 2)
}

func TestBatchDetect_preservesOrder(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{Improved: positive(features.HandcraftedDims), Workers: 3}, nil)
	body, err := json.Marshal(BatchInput{CodeSnippets: []string{
		cppSnippet,
		"public class A { void f() { while (true) {} } }",
		"def f(x=[]):\n    pass\n",
	}})
	require.NoError(t, err)
	rec := do(t, s.Handler(), http.MethodPost, "/batch_detect", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out BatchOutput
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &out))
	require.Equal(t, 3, out.Count)
	assert.Equal(t, 3, out.Bugs)
	assert.Equal(t, "cpp", string(out.Results[0].Language))
	assert.Equal(t, "java", string(out.Results[1].Language))
	assert.Equal(t, "python", string(out.Results[2].Language))
}

func TestBatchDetect_rejectsBadBatches(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = cppSnippet
	}
	bodies := map[string]BatchInput{
		"empty":    {},
		"too many": {CodeSnippets: tooMany},
		"invalid":  {CodeSnippets: []string{cppSnippet, "short"}},
	}
	for name, in := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b, err := json.Marshal(in)
			require.NoError(t, err)
			rec := do(t, s.Handler(), http.MethodPost, "/batch_detect", string(b))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestStats_summarizesHistory(t *testing.T) {
	t.Parallel()
	store := history.NewStore(t.TempDir(), 0)
	s := newServer(t, detector.Options{Improved: positive(features.HandcraftedDims)}, store)
	h := s.Handler()
	for range 2 {
		rec := do(t, h, http.MethodPost, "/detect_bug", codeBody(t, cppSnippet))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/stats?since=1h", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum struct {
		Total int            `json:"total_detections"`
		Bugs  int            `json:"bugs"`
		Langs map[string]int `json:"by_language"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &sum))
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Bugs)
	assert.Equal(t, 2, sum.Langs["cpp"])

	rec = do(t, h, http.MethodGet, "/stats?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats_historyDisabled_503(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRoute_404Envelope(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", decodeEnvelope(t, rec).Status)
}

func TestCORS_preflightAndCredentials(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/detect_bug", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_disallowedOrigin_noHeaders(t *testing.T) {
	t.Parallel()
	d, err := detector.New(detector.Options{})
	require.NoError(t, err)
	s, err := New(Options{Detector: d, CORS: CORSConfig{Origins: []string{"https://app.example"}}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_requiresDetector(t *testing.T) {
	t.Parallel()
	_, err := New(Options{})
	require.Error(t, err)
}

func TestServe_shutsDownOnCancel(t *testing.T) {
	t.Parallel()
	s := newServer(t, detector.Options{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestFormatPrediction_rounds(t *testing.T) {
	t.Parallel()
	var r detector.Result
	r.Outcome.BaselineConfidence = 0.123456
	r.Outcome.ImprovedConfidence = 0.5
	p := FormatPrediction(r)
	assert.Equal(t, 0.1235, p.BaselineModel.Confidence)
	assert.Equal(t, 0.5, p.ImprovedModel.Confidence)
	assert.False(t, p.BaselineModel.Available)
}
