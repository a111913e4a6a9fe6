package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bugscope/cli/internal/ollama"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// Ollama embeds snippets with a local Ollama server.
type Ollama struct {
	client  *ollama.Client
	model   string
	dims    int
	timeout time.Duration
}

// NewOllama builds an Ollama provider. Empty fields get defaults.
func NewOllama(cfg Config) *Ollama {
	url := cfg.OllamaURL
	if url == "" {
		url = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	var hc *http.Client
	if cfg.Timeout > 0 {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Ollama{
		client:  ollama.NewClient(url, hc),
		model:   model,
		dims:    dimsOrDefault(cfg.Dimensions),
		timeout: cfg.Timeout,
	}
}

// Embed returns the embedding of code. Connection failures wrap
// ErrUnreachable; a vector of the wrong length wraps ErrLength.
func (o *Ollama) Embed(ctx context.Context, code string) ([]float64, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()
	vec, err := o.client.Embed(ctx, o.model, code)
	if err != nil {
		return nil, unreachable(err)
	}
	if err := checkLength(o.Name(), vec, o.dims); err != nil {
		return nil, err
	}
	return vec, nil
}

// unreachable tags ollama connectivity errors with ErrUnreachable.
func unreachable(err error) error {
	if errors.Is(err, ollama.ErrUnreachable) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return err
}

// Dimensions returns the configured vector size.
func (o *Ollama) Dimensions() int { return o.dims }

// Name returns "ollama:<model>".
func (o *Ollama) Name() string { return "ollama:" + o.model }

// Check verifies the server answers and has the model installed.
func (o *Ollama) Check(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()
	res, err := o.client.Check(ctx, o.model)
	if err != nil {
		return unreachable(err)
	}
	if !res.ModelPresent {
		return fmt.Errorf("model %q not installed at %s (run: ollama pull %s)", o.model, o.client.BaseURL(), o.model)
	}
	return nil
}
