package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Brent1981/AIProject/internal/actions"
	"github.com/Brent1981/AIProject/internal/buildinfo"
	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/config"
	"github.com/Brent1981/AIProject/internal/embeddings"
	"github.com/Brent1981/AIProject/internal/filesorter"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/httpkit"
	"github.com/Brent1981/AIProject/internal/llm"
	"github.com/Brent1981/AIProject/internal/memory"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/orchestrator"
	"github.com/Brent1981/AIProject/internal/paths"
	"github.com/Brent1981/AIProject/internal/resolve"
	"github.com/Brent1981/AIProject/internal/search"
)

// app holds every long-lived component built from the config. The
// serve command uses all of it; one-shot commands use slices of it.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *metrics.Metrics
	ha           *homeassistant.Client
	models       *llm.Router
	text         *llm.TextGenerator
	memory       *memory.Service
	search       *search.Manager
	orchestrator *orchestrator.Orchestrator
	sorter       *filesorter.Sorter
}

// newApp wires the pipeline. m may be nil for one-shot commands.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: m}

	a.ha = homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger,
		httpkit.WithTLSInsecureSkipVerify(cfg.HomeAssistant.InsecureSkipVerify))
	a.ha.SetMetrics(m)
	if !cfg.HomeAssistant.Configured() {
		logger.Warn("home assistant not configured, device control disabled")
	}

	a.models = newModelRouter(cfg, logger, m)
	a.text = llm.NewTextGenerator(a.models, logger, m)

	store, err := openMemoryStore(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	a.memory = memory.NewService(store, logger)
	if store == nil {
		logger.Info("long-term memory disabled")
	} else {
		logger.Info("long-term memory enabled", "backend", cfg.Memory.Backend)
	}

	a.search = newSearchManager(cfg, logger, m)

	dispatcher := actions.NewDispatcher(logger, m)
	dispatcher.Register(command.ActionExecuteTask, actions.NewDevice(a.ha, resolve.NewResolver(), logger))
	dispatcher.Register(command.ActionWebSearch, actions.NewWebSearch(a.search, a.text, logger))
	dispatcher.Register(command.ActionCalculator, actions.NewCalculator(a.text, logger))

	a.orchestrator = orchestrator.New(orchestrator.Config{
		DefaultModel: cfg.Models.PromptModel(),
		MemoryTopK:   cfg.Memory.TopK,
	}, a.ha, a.text, a.memory, dispatcher, logger, m)

	if cfg.FileSorter.Enabled {
		a.sorter = filesorter.New(filesorter.Config{
			DestRoot:    paths.ExpandHome(cfg.FileSorter.DestRoot),
			VisionModel: cfg.Models.Vision,
			MaxImageDim: cfg.FileSorter.MaxImageDim,
			Roots:       paths.New(cfg.FileSorter.Roots),
		}, a.models, logger, m)
	}

	return a, nil
}

// Close releases the memory store.
func (a *app) Close() error {
	return a.memory.Close()
}

// newModelRouter sends bare model names to Ollama and "openai/<name>"
// to the OpenAI-compatible provider, each behind its own breaker.
func newModelRouter(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *llm.Router {
	bc := llm.BreakerConfig{
		MaxFailures: cfg.Models.Breaker.MaxFailures,
		OpenTimeout: time.Duration(cfg.Models.Breaker.OpenTimeoutSec) * time.Second,
	}

	ollama := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
	router := llm.NewRouter(llm.NewBreaker("ollama", ollama, bc, m, logger))
	logger.Info("using Ollama", "url", cfg.Models.OllamaURL, "default_model", cfg.Models.PromptModel())

	if cfg.OpenAI.Configured() {
		openai := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
		router.Route("openai/", llm.NewBreaker("openai", openai, bc, m, logger))
		logger.Info("openai provider enabled", "prefix", "openai/")
	}
	return router
}

// openMemoryStore returns nil when memory is disabled.
func openMemoryStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (memory.Store, error) {
	embedder := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		Metrics: m,
	})

	switch cfg.Memory.Backend {
	case "":
		return nil, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Memory.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
		store, err := memory.NewSQLiteStore(cfg.Memory.Path, embedder)
		if err != nil {
			return nil, fmt.Errorf("open memory store %s: %w", cfg.Memory.Path, err)
		}
		return store, nil
	case "postgres":
		store, err := memory.NewPostgresStore(ctx, cfg.Memory.DSN, embedder)
		if err != nil {
			return nil, fmt.Errorf("open postgres memory store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func newSearchManager(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *search.Manager {
	mgr := search.NewManager(cfg.Search.Default, logger)
	mgr.SetMetrics(m)

	if cfg.Search.SearXNG.Configured() {
		mgr.Register(search.NewSearXNG(cfg.Search.SearXNG.URL))
	}
	if cfg.Search.Brave.Configured() {
		mgr.Register(search.NewBrave(cfg.Search.Brave.APIKey))
	}
	if !cfg.Search.DuckDuckGo.Disabled {
		mgr.Register(search.NewDuckDuckGo(cfg.Search.DuckDuckGo.URL))
	}

	if mgr.Configured() {
		logger.Info("web search enabled", "providers", mgr.Providers(), "default", cfg.Search.Default)
	} else {
		logger.Warn("no web search providers configured")
	}
	return mgr
}

// errFileSorterDisabled is returned by the sort command when the
// sorter is not enabled in the config.
var errFileSorterDisabled = errors.New("file sorter is not enabled (set filesorter.enabled and filesorter.dest_root)")

// startupBanner logs build metadata once per process.
func startupBanner(logger *slog.Logger) {
	logger.Info("starting AXIOM",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"branch", buildinfo.GitBranch,
		"built", buildinfo.BuildTime,
	)
}
