package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_trimsTrailingSlash(t *testing.T) {
	t.Parallel()
	c := NewClient("http://localhost:11434/", nil)
	if c.BaseURL() != "http://localhost:11434" {
		t.Errorf("BaseURL() = %q, want no trailing slash", c.BaseURL())
	}
}

func TestClient_Check(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		status          int
		body            string
		model           string
		wantPresent     bool
		wantErr         bool
		wantUnreachable bool
	}{
		{name: "exact_name", status: http.StatusOK, body: `{"models":[{"name":"nomic-embed-text:v1.5"}]}`, model: "nomic-embed-text:v1.5", wantPresent: true},
		{name: "untagged_matches_latest", status: http.StatusOK, body: `{"models":[{"name":"nomic-embed-text:latest"}]}`, model: "nomic-embed-text", wantPresent: true},
		{name: "tagged_does_not_match_other_tag", status: http.StatusOK, body: `{"models":[{"name":"nomic-embed-text:latest"}]}`, model: "nomic-embed-text:v1.5"},
		{name: "empty_models", status: http.StatusOK, body: `{"models":[]}`, model: "any"},
		{name: "invalid_json", status: http.StatusOK, body: `{`, model: "any", wantErr: true},
		{name: "404", status: http.StatusNotFound, model: "any", wantErr: true, wantUnreachable: true},
		{name: "500", status: http.StatusInternalServerError, body: "boom", model: "any", wantErr: true, wantUnreachable: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/tags" {
					t.Errorf("path = %q, want /api/tags", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL, srv.Client()).Check(context.Background(), tt.model)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Check: want error, got nil")
				}
				if errors.Is(err, ErrUnreachable) != tt.wantUnreachable {
					t.Errorf("errors.Is(err, ErrUnreachable) = %v, want %v (%v)", !tt.wantUnreachable, tt.wantUnreachable, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if !got.Reachable {
				t.Error("Reachable = false, want true")
			}
			if got.ModelPresent != tt.wantPresent {
				t.Errorf("ModelPresent = %v, want %v (names %v)", got.ModelPresent, tt.wantPresent, got.ModelNames)
			}
		})
	}
}

func TestClient_Embed_sendsModelAndPrompt(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/embeddings" {
			t.Errorf("request = %s %s, want POST /api/embeddings", r.Method, r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "x = 1" {
			t.Errorf("request body = %+v", req)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.25,-1,3]}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, srv.Client()).Embed(context.Background(), "nomic-embed-text", "x = 1")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	want := []float64{0.25, -1, 3}
	if len(got) != len(want) {
		t.Fatalf("Embed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Embed[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClient_Embed_emptyVector_errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, srv.Client()).Embed(context.Background(), "m", "x")
	if err == nil {
		t.Fatal("Embed: want error for empty vector")
	}
	if errors.Is(err, ErrUnreachable) {
		t.Errorf("empty vector is not an unreachable server: %v", err)
	}
}

func TestClient_connectionRefused_wrapsUnreachable(t *testing.T) {
	t.Parallel()
	// Bind and release a port so nothing is listening.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	client := NewClient("http://"+addr, nil)
	if _, err := client.Check(context.Background(), "any"); !errors.Is(err, ErrUnreachable) {
		t.Errorf("Check error should wrap ErrUnreachable: %v", err)
	}
	if _, err := client.Embed(context.Background(), "any", "x"); !errors.Is(err, ErrUnreachable) {
		t.Errorf("Embed error should wrap ErrUnreachable: %v", err)
	}
}
