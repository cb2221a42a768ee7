package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Brent1981/AIProject/internal/metrics"
)

// GenerateTimeout bounds every generate call made through TextGenerator.
const GenerateTimeout = 60 * time.Second

// TextGenerator is the pipeline's view of a model: prompt in, text out.
// Failures never surface as errors; they become a user-readable
// connection message instead.
type TextGenerator struct {
	client  Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewTextGenerator wraps client.
func NewTextGenerator(client Client, logger *slog.Logger, m *metrics.Metrics) *TextGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextGenerator{
		client:  client,
		logger:  logger.With("component", "llm"),
		metrics: m,
		timeout: GenerateTimeout,
	}
}

// Generate returns the model's reply or a connection-error message.
func (g *TextGenerator) Generate(ctx context.Context, prompt, model string) string {
	out, err := g.Complete(ctx, prompt, model)
	if err != nil {
		return FailureText(err)
	}
	return out
}

// Complete is Generate for callers that need to tell a failure apart
// from a reply.
func (g *TextGenerator) Complete(ctx context.Context, prompt, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Log(ctx, LevelTrace, "model prompt", "model", model, "prompt", prompt)

	start := time.Now()
	out, err := g.client.Generate(ctx, Request{Model: model, Prompt: prompt})
	g.metrics.ObserveBackend("llm", "generate", start, err)
	if err != nil {
		g.logger.Warn("model call failed", "model", model, "error", err, "elapsed", time.Since(start).Round(time.Millisecond))
		return "", err
	}

	g.logger.Log(ctx, LevelTrace, "model reply", "model", model, "reply", out)
	return out, nil
}

// FailureText renders a generation error for the user.
func FailureText(err error) string {
	var ce *ConnectError
	if errors.As(err, &ce) {
		if strings.HasPrefix(ce.URL, "(") {
			return fmt.Sprintf("Error: Could not connect to %s %s.", ce.Provider, ce.URL)
		}
		return fmt.Sprintf("Error: Could not connect to %s at %s.", ce.Provider, ce.URL)
	}
	return "Error: Could not connect to the language model."
}
