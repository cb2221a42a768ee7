// Package search provides pluggable web search for the web_search action.
//
// Each backend implements [Provider] and is registered on a [Manager].
// The manager queries the primary provider and falls back to the others
// in registration order when it fails.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Brent1981/AIProject/internal/metrics"
)

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results to return.
	// Providers may return fewer. Zero means provider default.
	Count int `json:"count,omitempty"`

	// Language is an ISO 639-1 language code (e.g., "en", "de").
	Language string `json:"language,omitempty"`
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "searxng", "brave").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// ErrNoProviders is returned when nothing is registered.
var ErrNoProviders = errors.New("no search provider configured")

// Manager holds configured providers and routes searches.
type Manager struct {
	providers map[string]Provider
	order     []string
	primary   string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewManager creates a search manager. The primary provider name
// determines which backend is tried first.
func NewManager(primary string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: make(map[string]Provider),
		primary:   primary,
		logger:    logger.With("component", "search"),
	}
}

// SetMetrics enables backend latency reporting.
func (m *Manager) SetMetrics(mt *metrics.Metrics) { m.metrics = mt }

// Register adds a provider to the manager.
func (m *Manager) Register(p Provider) {
	if _, dup := m.providers[p.Name()]; !dup {
		m.order = append(m.order, p.Name())
	}
	m.providers[p.Name()] = p
}

// Search runs a query against the primary provider, then the remaining
// providers until one succeeds. An empty result set counts as success.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	names := m.candidates()
	if len(names) == 0 {
		return nil, ErrNoProviders
	}

	var errs []error
	for _, name := range names {
		results, err := m.SearchWith(ctx, name, query, opts)
		if err == nil {
			return results, nil
		}
		m.logger.Warn("search provider failed", "provider", name, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// SearchWith runs a query against a specific named provider.
func (m *Manager) SearchWith(ctx context.Context, provider, query string, opts Options) ([]Result, error) {
	p, ok := m.providers[provider]
	if !ok {
		return nil, fmt.Errorf("search provider %q not configured", provider)
	}
	start := time.Now()
	results, err := p.Search(ctx, query, opts)
	m.metrics.ObserveBackend("search_"+provider, "search", start, err)
	if err == nil {
		m.logger.Debug("search complete", "provider", provider, "results", len(results))
	}
	return results, err
}

func (m *Manager) candidates() []string {
	names := make([]string, 0, len(m.order))
	if _, ok := m.providers[m.primary]; ok {
		names = append(names, m.primary)
	}
	for _, n := range m.order {
		if n != m.primary {
			names = append(names, n)
		}
	}
	return names
}

// Providers returns the names of all registered providers in
// registration order.
func (m *Manager) Providers() []string {
	return append([]string(nil), m.order...)
}

// Configured reports whether at least one provider is registered.
func (m *Manager) Configured() bool {
	return len(m.providers) > 0
}

// FormatSnippets renders results as "Title: ...\nSnippet: ..." blocks
// separated by blank lines, the shape the answer prompt expects.
func FormatSnippets(results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = "Title: " + r.Title + "\nSnippet: " + r.Snippet
	}
	return strings.Join(blocks, "\n\n")
}
