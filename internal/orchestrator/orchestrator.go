// Package orchestrator runs the prompt-to-action pipeline: gather home
// context, ask the model for commands, dispatch them and summarize.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Brent1981/AIProject/internal/actions"
	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/prompts"
	"github.com/Brent1981/AIProject/internal/resolve"
)

// Defaults applied by New.
const (
	DefaultHistorySize  = 10
	DefaultAreaCacheTTL = 300 * time.Second
	DefaultMemoryTopK   = 3
)

// Fixed replies.
const (
	EmptyPromptText = "Error: Prompt cannot be empty."
	NoStatesText    = "Error: Could not get device list."
	FallbackText    = "I wasn't able to complete that request."
)

// HomeAssistant is the state side of the Home Assistant client.
type HomeAssistant interface {
	GetStates(ctx context.Context) ([]homeassistant.State, error)
	GetAreaMap(ctx context.Context) (homeassistant.AreaMap, error)
}

// Generator produces model text. Failures come back as readable text.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) string
}

// Recaller retrieves memories formatted for the planning prompt.
type Recaller interface {
	Recall(ctx context.Context, text string, k int) string
}

// Dispatcher executes a single command.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *actions.Request, cmd command.Command) (actions.Result, error)
}

// Config tunes the orchestrator.
type Config struct {
	DefaultModel string
	HistorySize  int
	AreaCacheTTL time.Duration
	MemoryTopK   int
}

// Orchestrator turns prompts into replies.
type Orchestrator struct {
	ha         HomeAssistant
	gen        Generator
	memory     Recaller
	dispatcher Dispatcher
	session    *Session
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates an orchestrator with a fresh session.
func New(cfg Config, ha HomeAssistant, gen Generator, memory Recaller, dispatcher Dispatcher, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.AreaCacheTTL <= 0 {
		cfg.AreaCacheTTL = DefaultAreaCacheTTL
	}
	if cfg.MemoryTopK <= 0 {
		cfg.MemoryTopK = DefaultMemoryTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		ha:         ha,
		gen:        gen,
		memory:     memory,
		dispatcher: dispatcher,
		session:    NewSession(cfg.HistorySize),
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
		metrics:    m,
		now:        time.Now,
	}
}

// Session exposes the shared conversation state.
func (o *Orchestrator) Session() *Session { return o.session }

// Process runs one cycle and always returns a reply. model overrides the
// configured default when non-empty.
func (o *Orchestrator) Process(ctx context.Context, prompt, model string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("prompt cycle panicked", "panic", r, "stack", string(debug.Stack()))
			o.metrics.Prompt("error")
			reply = fmt.Sprintf("An unexpected error occurred: %v", r)
		}
	}()

	if strings.TrimSpace(prompt) == "" {
		o.metrics.Prompt("rejected")
		return EmptyPromptText
	}
	if model == "" {
		model = o.cfg.DefaultModel
	}
	log := o.logger.With("model", model)

	o.metrics.HistoryLength(o.session.Append("user", prompt))

	memories := o.memory.Recall(ctx, prompt, o.cfg.MemoryTopK)
	states, err := o.ha.GetStates(ctx)
	if err != nil || len(states) == 0 {
		log.Warn("device list unavailable", "error", err)
		o.metrics.Prompt("no_states")
		return NoStatesText
	}
	areas := o.areas(ctx)
	log.Debug("context gathered", "entities", len(states), "areas", len(areas))

	entities := make([]resolve.Entity, len(states))
	devices := make(map[string]string, len(states))
	for i, s := range states {
		entities[i] = resolve.Entity{ID: s.EntityID, Name: s.FriendlyName()}
		devices[s.EntityID] = entities[i].Name
	}

	raw := o.gen.Generate(ctx, prompts.PlanningPrompt(prompt, memories, devices, areas), model)
	cmds := command.Extract(raw)
	log.Debug("plan received", "commands", len(cmds))

	if len(cmds) == 0 {
		log.Info("no commands in plan, answering directly")
		answer := o.gen.Generate(ctx, prompts.DirectAnswerPrompt(prompt), model)
		o.finish(answer, nil)
		o.metrics.Prompt("direct")
		return answer
	}

	req := &actions.Request{Prompt: prompt, Model: model, States: states, Entities: entities}
	var (
		results  []actions.Result
		failures []string
	)
	for i, cmd := range cmds {
		res, err := o.dispatcher.Dispatch(ctx, req, cmd)
		if err != nil {
			log.Info("command failed", "index", i, "action", cmd.Action(), "error", err)
			failures = append(failures, actions.Describe(err))
			continue
		}
		results = append(results, res)
	}

	summary := Summarize(len(cmds), results, failures)
	o.finish(summary, results)
	o.metrics.Prompt("dispatched")
	log.Debug("cycle complete", "succeeded", len(results), "failed", len(failures))
	return summary
}

// finish records the reply and, when devices were touched, the action
// context.
func (o *Orchestrator) finish(reply string, results []actions.Result) {
	o.metrics.HistoryLength(o.session.Append("assistant", reply))

	var acted []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, id := range r.EntityIDs {
			if !seen[id] {
				seen[id] = true
				acted = append(acted, id)
			}
		}
	}
	if len(acted) > 0 {
		o.session.setLastAction(acted, o.now())
	}
}

// areas returns the cached area map, refreshing it when stale or empty.
// A failed refresh keeps serving the previous map.
func (o *Orchestrator) areas(ctx context.Context) homeassistant.AreaMap {
	now := o.now()
	cached, fresh := o.session.cachedAreas(now, o.cfg.AreaCacheTTL)
	if fresh {
		return cached
	}

	areas, err := o.ha.GetAreaMap(ctx)
	if err != nil {
		o.logger.Warn("area refresh failed", "error", err)
		if cached == nil {
			return homeassistant.AreaMap{}
		}
		return cached
	}
	o.session.storeAreas(areas, now)
	o.metrics.AreaCacheRefreshed()
	return areas
}

// Summarize builds the reply for a dispatched batch. A single command
// that produced a complete answer is returned verbatim.
func Summarize(commands int, results []actions.Result, failures []string) string {
	if commands == 1 && len(results) == 1 && results[0].Answer {
		return results[0].Text
	}

	var parts []string
	if len(results) > 0 {
		clauses := make([]string, len(results))
		for i, r := range results {
			clauses[i] = r.Text
		}
		parts = append(parts, "Okay, I've "+strings.Join(clauses, ", and ")+".")
	}
	if len(failures) > 0 {
		parts = append(parts, "However, I "+strings.Join(failures, ", and ")+".")
	}
	if len(parts) == 0 {
		return FallbackText
	}
	return strings.Join(parts, " ")
}
