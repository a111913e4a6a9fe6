// Package ollama is a small HTTP client for a local Ollama server: the tag
// listing used by health checks and the embeddings endpoint used by the
// improved feature tier.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	_defaultTimeout = 30 * time.Second
	_maxErrorBody   = 512
)

// ErrUnreachable indicates the server could not be reached (connection
// refused, timeout, or a non-2xx status).
var ErrUnreachable = errors.New("ollama server unreachable")

// Client calls the Ollama API. Use NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// CheckResult is the outcome of a health check.
type CheckResult struct {
	Reachable    bool
	ModelPresent bool
	ModelNames   []string
}

// NewClient builds a client for baseURL (e.g. http://localhost:11434).
// A nil httpClient gets a default with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: _defaultTimeout}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends req and decodes a 200 JSON body into out. Transport failures and
// non-200 statuses wrap ErrUnreachable.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", op, errors.Join(ErrUnreachable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
		return fmt.Errorf("ollama %s: %w: HTTP %d %s", op, ErrUnreachable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: parse response: %w", op, err)
	}
	return nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Check GETs /api/tags and reports whether model is installed. A model name
// without a tag matches its ":latest" entry.
func (c *Client) Check(ctx context.Context, model string) (*CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request: %w", err)
	}
	var body tagsResponse
	if err := c.do(req, "tags", &body); err != nil {
		return nil, err
	}
	res := &CheckResult{Reachable: true, ModelNames: make([]string, 0, len(body.Models))}
	for _, m := range body.Models {
		res.ModelNames = append(res.ModelNames, m.Name)
		if sameModel(m.Name, model) {
			res.ModelPresent = true
		}
	}
	return res, nil
}

func sameModel(installed, want string) bool {
	if installed == want {
		return true
	}
	return !strings.Contains(want, ":") && installed == want+":latest"
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed POSTs prompt to /api/embeddings and returns the vector. An empty
// vector from the server is an error.
func (c *Client) Embed(ctx context.Context, model, prompt string) ([]float64, error) {
	payload, err := json.Marshal(embedRequest{Model: model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	var body embedResponse
	if err := c.do(req, "embeddings", &body); err != nil {
		return nil, err
	}
	if len(body.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embeddings: model %q returned an empty vector", model)
	}
	return body.Embedding, nil
}
