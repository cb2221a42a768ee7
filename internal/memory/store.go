// Package memory is AXIOM's long-term memory: free-text records stored
// with an embedding and recalled by semantic similarity. Records are
// never updated or looked up by key.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when no store is configured.
var ErrUnavailable = errors.New("memory store is not configured")

// Store persists memory records.
type Store interface {
	// Add stores text and returns the new record's ID.
	Add(ctx context.Context, text string) (string, error)
	// Query returns up to k stored texts ordered by similarity to text.
	Query(ctx context.Context, text string, k int) ([]string, error)
	Close() error
}

// NewID returns a record ID. UUIDv7 embeds the creation time, so IDs
// sort chronologically.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return "memory_" + id.String(), nil
}

// Service renders store results as the sentences the assistant speaks.
// A nil store is valid and means memory is disabled.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService wraps store, which may be nil.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "memory")}
}

// Available reports whether a store is configured.
func (s *Service) Available() bool {
	return s != nil && s.store != nil
}

// Remember stores text and returns a confirmation for the user.
func (s *Service) Remember(ctx context.Context, text string) string {
	if !s.Available() {
		return "Memory is not available."
	}
	id, err := s.store.Add(ctx, text)
	if err != nil {
		s.logger.Error("store memory failed", "error", err)
		return "I had trouble remembering that."
	}
	s.logger.Info("memory stored", "id", id)
	return "Okay, I've remembered that: " + text
}

// Recall returns the k most relevant memories as "- text" lines for
// inclusion in a prompt.
func (s *Service) Recall(ctx context.Context, text string, k int) string {
	if !s.Available() {
		return "No memories found."
	}
	docs, err := s.store.Query(ctx, text, k)
	if err != nil {
		s.logger.Warn("memory query failed", "error", err)
		return "I had trouble accessing my memory."
	}
	if len(docs) == 0 {
		return "No relevant memories found."
	}
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = "- " + d
	}
	s.logger.Debug("memories recalled", "count", len(docs))
	return strings.Join(lines, "\n")
}

// Close releases the store.
func (s *Service) Close() error {
	if !s.Available() {
		return nil
	}
	return s.store.Close()
}
