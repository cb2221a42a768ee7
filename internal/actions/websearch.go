package actions

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/prompts"
	"github.com/Brent1981/AIProject/internal/search"
)

// Fixed web search replies.
const (
	NoSearchResultsText = "I couldn't find any information on that topic."
	SearchFailedText    = "I had a problem searching the web."
)

const maxSearchResults = 5

// Searcher runs web searches. *search.Manager satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// WebSearch answers a query from the top search results.
type WebSearch struct {
	searcher Searcher
	gen      Generator
	logger   *slog.Logger
}

// NewWebSearch creates the web_search executor.
func NewWebSearch(searcher Searcher, gen Generator, logger *slog.Logger) *WebSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearch{searcher: searcher, gen: gen, logger: logger.With("component", "web_search")}
}

// Execute never fails once the query is present; search and model
// problems become the fixed apology.
func (w *WebSearch) Execute(ctx context.Context, req *Request, cmd command.Command) (Result, error) {
	query := cmd.String("query")
	if query == "" {
		return Result{}, errors.New("web search action requires a query")
	}

	results, err := w.searcher.Search(ctx, query, search.Options{Count: maxSearchResults})
	if err != nil {
		w.logger.Warn("web search failed", "query", query, "error", err)
		return Result{Text: SearchFailedText, Answer: true}, nil
	}
	if len(results) == 0 {
		return Result{Text: NoSearchResultsText, Answer: true}, nil
	}
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}

	answer, err := w.gen.Complete(ctx, prompts.WebSearchAnswerPrompt(query, search.FormatSnippets(results)), req.Model)
	if err != nil {
		w.logger.Warn("search answer failed", "query", query, "error", err)
		return Result{Text: SearchFailedText, Answer: true}, nil
	}
	return Result{Text: strings.TrimSpace(answer), Answer: true}, nil
}
