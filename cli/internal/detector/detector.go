// Package detector joins the rule path (sniff, rules, severity) and the model
// path (features, embedding, classifier tiers, consensus) into one detection
// result. A Detector is built once at startup and is safe for concurrent use.
package detector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bugscope/cli/internal/classifier"
	"bugscope/cli/internal/consensus"
	"bugscope/cli/internal/embedding"
	"bugscope/cli/internal/features"
	"bugscope/cli/internal/findings"
	"bugscope/cli/internal/logging"
	"bugscope/cli/internal/rules"
	"bugscope/cli/internal/sniff"
	"bugscope/cli/internal/trace"
)

// ErrEmptyBatch is returned by DetectBatch when given no snippets.
var ErrEmptyBatch = errors.New("empty batch")

// Options configures a Detector. Every field is optional.
type Options struct {
	Baseline classifier.Tier
	Improved classifier.Tier
	// BaselineName and ImprovedName label the tiers in logs and Info.
	BaselineName string
	ImprovedName string

	Embedder embedding.Provider
	Policy   features.EmbeddingPolicy

	// Workers bounds DetectBatch concurrency; <= 0 means GOMAXPROCS.
	Workers int

	Logger *zap.Logger
	Tracer *trace.Tracer
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Detector runs detections. It holds no mutable state after New.
type Detector struct {
	baseline     classifier.Tier
	improved     classifier.Tier
	baselineName string
	improvedName string
	embedder     embedding.Provider
	policy       features.EmbeddingPolicy
	workers      int
	log          *zap.Logger
	tracer       *trace.Tracer
	now          func() time.Time
}

// New validates opts and builds a Detector. An embedding policy other than
// none requires an Embedder; without one the policy is an error.
func New(opts Options) (*Detector, error) {
	policy, err := features.ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	if policy != features.PolicyNone && opts.Embedder == nil {
		return nil, fmt.Errorf("embedding policy %q needs an embedding provider", policy)
	}
	if opts.Baseline != nil && opts.Baseline.InputDim() != features.BaselineDims {
		return nil, fmt.Errorf("baseline tier: %w: input_dim %d, baseline vectors have %d values",
			features.ErrDimensionMismatch, opts.Baseline.InputDim(), features.BaselineDims)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	d := &Detector{
		baseline:     opts.Baseline,
		improved:     opts.Improved,
		baselineName: opts.BaselineName,
		improvedName: opts.ImprovedName,
		embedder:     opts.Embedder,
		policy:       policy,
		workers:      workers,
		log:          logging.OrNop(opts.Logger),
		tracer:       opts.Tracer,
		now:          now,
	}
	if d.baseline == nil && d.improved == nil {
		d.log.Warn("no classifier tiers loaded; running in rule-only mode")
	}
	return d, nil
}

// Info describes the loaded tiers and embedding setup.
type Info struct {
	BaselinePresent bool   `json:"baseline_present"`
	BaselineName    string `json:"baseline_name,omitempty"`
	ImprovedPresent bool   `json:"improved_present"`
	ImprovedName    string `json:"improved_name,omitempty"`
	ImprovedMembers int    `json:"improved_members,omitempty"`
	Embedding       string `json:"embedding,omitempty"`
	Policy          string `json:"embedding_policy"`
	Workers         int    `json:"workers"`
}

// Info reports the detector configuration.
func (d *Detector) Info() Info {
	in := Info{
		BaselinePresent: d.baseline != nil,
		BaselineName:    d.baselineName,
		ImprovedPresent: d.improved != nil,
		ImprovedName:    d.improvedName,
		Policy:          string(d.policy),
		Workers:         d.workers,
	}
	if d.improved != nil {
		in.ImprovedMembers = d.improved.Members()
	}
	if d.embedder != nil {
		in.Embedding = d.embedder.Name()
	}
	return in
}

// Embedder returns the configured embedding provider, or nil.
func (d *Detector) Embedder() embedding.Provider { return d.embedder }

// Analyze runs only the rule path: language, findings, severity and the
// language-specific feature counts. It needs no models.
func (d *Detector) Analyze(code string) Analysis {
	lang := sniff.Detect(code)
	found := rules.Check(code, lang)
	extra := features.LanguageSpecific(code, lang)
	return Analysis{
		Language:     lang,
		Findings:     found,
		Severity:     findings.SeverityFor(len(found)),
		FeatureCount: len(extra),
		Features:     extra,
	}
}

// Detect runs the full pipeline over code. The only hard failures are a
// feature dimension mismatch against a loaded tier and an embedding failure
// the improved tier cannot absorb; both are returned wrapped.
func (d *Detector) Detect(ctx context.Context, code string) (Result, error) {
	start := time.Now()
	snip := NewSnippet(code)
	res := Result{
		ID:        uuid.NewString(),
		CreatedAt: d.now().UTC(),
		Preview:   snip.Preview(),
		Lines:     snip.Lines(),
		Bytes:     snip.Len(),
	}

	lang := sniff.Detect(code)
	res.Language = lang
	res.Findings = rules.Check(code, lang)
	res.Severity = findings.SeverityFor(len(res.Findings))
	if d.tracer.Enabled() {
		d.tracer.Section("Sniff")
		d.tracer.Printf("language=%s indicators=%v\n", lang, sniff.Indicators(code)[lang])
		d.tracer.Section("Rules")
		for _, f := range res.Findings {
			d.tracer.Printf("%s [%s] %s\n", f.RuleID, f.Category, f.Message)
		}
		d.tracer.Printf("severity=%s\n", res.Severity)
	}

	var err error
	res.Baseline, err = d.evalBaseline(code)
	if err != nil {
		return Result{}, fmt.Errorf("baseline tier: %w", err)
	}
	res.Improved, err = d.evalImproved(ctx, code, &res)
	if err != nil {
		return Result{}, fmt.Errorf("improved tier: %w", err)
	}

	res.Outcome = consensus.Decide(res.Baseline, res.Improved)
	if d.tracer.Enabled() {
		d.tracer.Section("Consensus")
		d.tracer.Printf("baseline=%+v\nimproved=%+v\n", res.Baseline, res.Improved)
		d.tracer.Printf("bug=%v confidence_baseline=%.4f confidence_improved=%.4f disagree=%v\n",
			res.Outcome.Bug, res.Outcome.BaselineConfidence, res.Outcome.ImprovedConfidence, res.Outcome.Disagree)
	}

	d.log.Debug("detection",
		zap.String("id", res.ID),
		zap.String("language", string(res.Language)),
		zap.Int("findings", len(res.Findings)),
		zap.String("severity", string(res.Severity)),
		zap.Bool("bug", res.Outcome.Bug),
		zap.Bool("rule_only", res.Outcome.RuleOnly),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (d *Detector) evalBaseline(code string) (classifier.TierResult, error) {
	if d.baseline == nil {
		return classifier.TierResult{}, nil
	}
	v := features.Baseline(code)
	d.tracer.Section("Features (baseline)")
	d.tracer.Vector("baseline", v.Values)
	return classifier.Evaluate(d.baseline, v)
}

func (d *Detector) evalImproved(ctx context.Context, code string, res *Result) (classifier.TierResult, error) {
	if d.improved == nil {
		return classifier.TierResult{}, nil
	}
	policy := d.policy
	var emb []float64
	if policy != features.PolicyNone {
		var err error
		emb, err = d.embedder.Embed(ctx, code)
		switch {
		case err == nil:
			res.Embedding = d.embedder.Name()
		case d.improved.InputDim() == features.HandcraftedDims:
			d.log.Warn("embedding failed; using handcrafted features",
				zap.String("provider", d.embedder.Name()), zap.Error(err))
			policy = features.PolicyNone
			emb = nil
			res.EmbeddingFallback = true
		default:
			return classifier.TierResult{}, fmt.Errorf("embedding via %s: %w", d.embedder.Name(), err)
		}
	}
	v, err := features.Improved(code, emb, policy)
	if err != nil {
		return classifier.TierResult{}, err
	}
	d.tracer.Section("Features (improved)")
	d.tracer.Vector("improved", v.Values)
	return classifier.Evaluate(d.improved, v)
}

// DetectBatch runs Detect over codes with at most Workers in flight and
// returns results in submission order. The first failure cancels the rest.
func (d *Detector) DetectBatch(ctx context.Context, codes []string) ([]Result, error) {
	if len(codes) == 0 {
		return nil, ErrEmptyBatch
	}
	out := make([]Result, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(d.workers, len(codes)))
	for i := range codes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := d.Detect(gctx, codes[i])
			if err != nil {
				return fmt.Errorf("snippet %d: %w", i, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.log.Debug("batch detection", zap.Int("snippets", len(codes)))
	return out, nil
}
