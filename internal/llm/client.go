// Package llm provides single-shot text generation against local and
// hosted language models.
package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// LevelTrace mirrors config.LevelTrace for full prompt and reply logging.
const LevelTrace = slog.Level(-8)

// Request is one non-streaming generation.
type Request struct {
	Model  string
	Prompt string
	// Images are raw image bytes for vision-capable models.
	Images [][]byte
}

// Client is implemented by every model provider.
type Client interface {
	// Generate returns the model's complete reply to req.
	Generate(ctx context.Context, req Request) (string, error)

	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error
}

// ConnectError is a provider failure that should be reported to the user
// as the provider being unreachable.
type ConnectError struct {
	Provider string
	URL      string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Provider, e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
