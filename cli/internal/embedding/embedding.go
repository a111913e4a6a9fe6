// Package embedding provides the optional code-embedding backends for the
// improved feature tier: a local Ollama server or Google GenAI.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnreachable reports that the configured provider could not serve a request.
var ErrUnreachable = errors.New("embedding provider unreachable")

// ErrLength reports an embedding whose length differs from Dimensions().
var ErrLength = errors.New("embedding length mismatch")

// DefaultDimensions is the vector size of the default models of both backends.
const DefaultDimensions = 768

// Provider turns a snippet into an embedding vector.
type Provider interface {
	Embed(ctx context.Context, code string) ([]float64, error)
	Dimensions() int
	Name() string
}

// Checker is implemented by providers that can verify they are usable
// without embedding anything.
type Checker interface {
	Check(ctx context.Context) error
}

// Config selects and configures a provider.
type Config struct {
	Provider   string // none, ollama or genai
	Model      string
	OllamaURL  string
	GenAIKey   string
	Dimensions int
	Timeout    time.Duration
}

// New returns the configured provider, or nil when Provider is "none" or empty.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllama(cfg), nil
	case "genai":
		return NewGenAI(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want none, ollama or genai)", cfg.Provider)
	}
}

// checkLength returns ErrLength when vec does not hold exactly want values.
func checkLength(name string, vec []float64, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%s: %w: got %d values, want %d (set embedding_dimensions to the model's size)", name, ErrLength, len(vec), want)
	}
	return nil
}

func dimsOrDefault(n int) int {
	if n <= 0 {
		return DefaultDimensions
	}
	return n
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
