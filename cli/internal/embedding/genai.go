package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGenAIModel = "gemini-embedding-001"
	genaiTaskType     = "CLASSIFICATION"
)

type embedFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

// GenAI embeds snippets with the Gemini embedding API.
type GenAI struct {
	embed   embedFunc
	model   string
	dims    int
	timeout time.Duration
}

// NewGenAI builds a GenAI provider. An API key is required.
func NewGenAI(ctx context.Context, cfg Config) (*GenAI, error) {
	if cfg.GenAIKey == "" {
		return nil, errors.New("genai embedding provider needs an API key (BUGSCOPE_GENAI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GenAIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newGenAI(client.Models.EmbedContent, cfg), nil
}

func newGenAI(fn embedFunc, cfg Config) *GenAI {
	model := cfg.Model
	if model == "" {
		model = defaultGenAIModel
	}
	return &GenAI{embed: fn, model: model, dims: dimsOrDefault(cfg.Dimensions), timeout: cfg.Timeout}
}

// Embed returns the embedding of code, requested at Dimensions() values.
// API failures wrap ErrUnreachable; a vector of another length wraps ErrLength.
func (g *GenAI) Embed(ctx context.Context, code string) ([]float64, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	contents := []*genai.Content{genai.NewContentFromText(code, genai.RoleUser)}
	res, err := g.embed(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType:             genaiTaskType,
		OutputDimensionality: genai.Ptr(int32(g.dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", errors.Join(ErrUnreachable, err))
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("genai embed: model %q returned no embedding", g.model)
	}
	vals := res.Embeddings[0].Values
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	if err := checkLength(g.Name(), out, g.dims); err != nil {
		return nil, err
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (g *GenAI) Dimensions() int { return g.dims }

// Name returns "genai:<model>".
func (g *GenAI) Name() string { return "genai:" + g.model }

// Check embeds a short probe string.
func (g *GenAI) Check(ctx context.Context) error {
	_, err := g.Embed(ctx, "ping")
	return err
}
