package llm

import (
	"context"
	"errors"
	"strings"
)

// Router picks a provider by model-name prefix. A model named
// "openai/gpt-4o-mini" goes to the provider registered for "openai/"
// with the prefix stripped; anything unmatched goes to the fallback.
type Router struct {
	fallback Client
	prefixes []string
	clients  map[string]Client
}

// NewRouter creates a router that sends unmatched models to fallback.
func NewRouter(fallback Client) *Router {
	return &Router{fallback: fallback, clients: make(map[string]Client)}
}

// Route registers client for models starting with prefix.
func (r *Router) Route(prefix string, client Client) {
	if _, ok := r.clients[prefix]; !ok {
		r.prefixes = append(r.prefixes, prefix)
	}
	r.clients[prefix] = client
}

func (r *Router) clientFor(model string) (Client, string) {
	for _, p := range r.prefixes {
		if strings.HasPrefix(model, p) {
			return r.clients[p], strings.TrimPrefix(model, p)
		}
	}
	return r.fallback, model
}

// Generate dispatches req to the provider that owns req.Model.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	client, model := r.clientFor(req.Model)
	if client == nil {
		return "", errors.New("no model provider configured")
	}
	req.Model = model
	return client.Generate(ctx, req)
}

// Ping checks the fallback provider.
func (r *Router) Ping(ctx context.Context) error {
	if r.fallback == nil {
		return errors.New("no model provider configured")
	}
	return r.fallback.Ping(ctx)
}
