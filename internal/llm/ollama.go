package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Brent1981/AIProject/internal/httpkit"
)

// OllamaClient talks to the Ollama /api/generate endpoint.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates an Ollama client. Request deadlines come from
// the caller's context; the client-level timeout only guards against a
// server that never answers.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(5 * time.Minute)),
		logger:     logger.With("provider", "ollama"),
	}
}

// BaseURL returns the Ollama address.
func (c *OllamaClient) BaseURL() string { return c.baseURL }

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	TotalDuration int64 `json:"total_duration,omitempty"`
	EvalCount     int   `json:"eval_count,omitempty"`
}

// Generate sends a non-streaming generate request.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	body := generateRequest{Model: req.Model, Prompt: req.Prompt}
	for _, img := range req.Images {
		body.Images = append(body.Images, base64.StdEncoding.EncodeToString(img))
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", c.connectError(err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if err := httpkit.CheckStatus(resp); err != nil {
		return "", c.connectError(err)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("generate complete",
		"model", req.Model,
		"eval_count", out.EvalCount,
		"duration", time.Duration(out.TotalDuration),
	)
	return out.Response, nil
}

// Ping lists local models to confirm the server is up.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.connectError(err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64*1024)
	if err := httpkit.CheckStatus(resp); err != nil {
		return c.connectError(err)
	}
	return nil
}

func (c *OllamaClient) connectError(err error) error {
	return &ConnectError{Provider: "Ollama", URL: c.baseURL, Err: err}
}
