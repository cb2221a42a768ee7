package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{name: "identical", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, expected: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, expected: 0},
		{name: "opposite", a: []float32{1, 1}, b: []float32{-1, -1}, expected: -1},
		{name: "mismatched length", a: []float32{1}, b: []float32{1, 2}, expected: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 2}, expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(float64(got-tc.expected)) > 0.0001 {
				t.Errorf("got %f, want %f", got, tc.expected)
			}
		})
	}
}

func TestTopK(t *testing.T) {
	query := []float32{1, 0, 0}
	vectors := [][]float32{
		{0, 1, 0},     // sim = 0
		{1, 0, 0},     // sim = 1
		{-1, 0, 0},    // sim = -1
		{0.7, 0.7, 0}, // sim ≈ 0.707
	}

	top2 := TopK(query, vectors, 2)
	if len(top2) != 2 || top2[0] != 1 || top2[1] != 3 {
		t.Errorf("TopK = %v, want [1 3]", top2)
	}
	if all := TopK(query, vectors, 10); len(all) != 4 {
		t.Errorf("TopK with k > n returned %d results", len(all))
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("DecodeVector(EncodeVector(%v)) = %v", in, out)
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeVector accepted a truncated blob")
	}
}

func TestClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/api/embeddings" || req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Errorf("%s %+v", r.URL.Path, req)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()

	vec, err := New(Config{BaseURL: srv.URL}).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("Embed() = %v", vec)
	}
}
