package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

type mockClient struct {
	reply  string
	err    error
	calls  int
	models []string
}

func (m *mockClient) Generate(_ context.Context, req Request) (string, error) {
	m.calls++
	m.models = append(m.models, req.Model)
	return m.reply, m.err
}

func (m *mockClient) Ping(context.Context) error { return m.err }

func TestOllamaClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3" || req.Stream {
			t.Errorf("request = %+v", req)
		}
		if len(req.Images) != 1 || req.Images[0] != base64.StdEncoding.EncodeToString([]byte("png")) {
			t.Errorf("images = %v", req.Images)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "hello", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	got, err := c.Generate(context.Background(), Request{Model: "llama3", Prompt: "hi", Images: [][]byte{[]byte("png")}})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "hello" {
		t.Errorf("Generate() = %q", got)
	}
}

func TestOllamaClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, nil).Generate(context.Background(), Request{Model: "nope"})
	var ce *ConnectError
	if !errors.As(err, &ce) || ce.Provider != "Ollama" {
		t.Fatalf("error = %v, want ConnectError", err)
	}
}

func TestTextGenerator_FailureText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewTextGenerator(NewOllamaClient(url, nil), nil, nil)
	got := g.Generate(context.Background(), "hi", "llama3")
	want := "Error: Could not connect to Ollama at " + url + "."
	if got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}

func TestFailureText_Generic(t *testing.T) {
	if got := FailureText(errors.New("decode")); got != "Error: Could not connect to the language model." {
		t.Errorf("FailureText() = %q", got)
	}
}

func TestRouter(t *testing.T) {
	local := &mockClient{reply: "local"}
	hosted := &mockClient{reply: "hosted"}
	r := NewRouter(local)
	r.Route("openai/", hosted)

	tests := []struct {
		model     string
		want      string
		wantModel string
	}{
		{"llama3", "local", "llama3"},
		{"openai/gpt-4o-mini", "hosted", "gpt-4o-mini"},
	}
	for _, tt := range tests {
		got, err := r.Generate(context.Background(), Request{Model: tt.model})
		if err != nil || got != tt.want {
			t.Errorf("Generate(%s) = %q, %v; want %q", tt.model, got, err, tt.want)
		}
	}
	if hosted.models[0] != "gpt-4o-mini" {
		t.Errorf("prefix not stripped: %v", hosted.models)
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	inner := &mockClient{err: errors.New("connection refused")}
	b := NewBreaker("ollama", inner, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, nil, nil)

	for i := 0; i < 2; i++ {
		b.Generate(context.Background(), Request{})
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	_, err := b.Generate(context.Background(), Request{})
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("open breaker error = %v, want ConnectError", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2 (open breaker must not call through)", inner.calls)
	}
	if got := FailureText(err); !strings.Contains(got, "circuit open") {
		t.Errorf("FailureText() = %q", got)
	}
}
