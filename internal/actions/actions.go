// Package actions executes the commands the planning model emits.
//
// Each action tag maps to an [Executor] in a [Dispatcher]; adding an
// action means registering one more executor.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/resolve"
)

// Generator completes a prompt. *llm.TextGenerator satisfies it.
type Generator interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Request is the per-cycle context shared by every command in a batch.
type Request struct {
	Prompt   string
	Model    string
	States   []homeassistant.State
	Entities []resolve.Entity
}

// Result is a successful action.
type Result struct {
	// Text is a clause for the summary, or the full reply when Answer is set.
	Text string
	// Answer marks Text as a complete natural-language answer.
	Answer bool
	// EntityIDs are the devices the action touched.
	EntityIDs []string
}

// Executor runs one command.
type Executor interface {
	Execute(ctx context.Context, req *Request, cmd command.Command) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request, cmd command.Command) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, req *Request, cmd command.Command) (Result, error) {
	return f(ctx, req, cmd)
}

// ErrInvalidService marks a service that is not in domain.action form.
var ErrInvalidService = errors.New("invalid service format")

// FailureError is a failure whose message is already phrased for the
// summary's failure clause. Err, when set, is the underlying cause.
type FailureError struct {
	Message string
	Err     error
}

func (e *FailureError) Error() string { return e.Message }

func (e *FailureError) Unwrap() error { return e.Err }

// Describe renders a command failure as a summary clause.
func Describe(err error) string {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "failed to execute a command due to: " + err.Error()
}

// Dispatcher routes commands to executors by action tag.
type Dispatcher struct {
	executors map[string]Executor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		executors: make(map[string]Executor),
		metrics:   m,
		logger:    logger.With("component", "actions"),
	}
}

// Register binds action to e, replacing any previous executor.
func (d *Dispatcher) Register(action string, e Executor) {
	d.executors[action] = e
}

// Dispatch runs cmd. Panics inside an executor are returned as errors so
// one bad command cannot take down the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, cmd command.Command) (res Result, err error) {
	if cmd == nil {
		return Result{}, errors.New("command is not a JSON object")
	}
	action := cmd.Action()
	if action == "" {
		return Result{}, errors.New("action not found in command")
	}
	e, ok := d.executors[action]
	if !ok {
		return Result{}, fmt.Errorf("unknown action '%s' in command", action)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", action, r)
		}
		d.metrics.Command(action, err == nil)
		if err != nil {
			d.logger.Warn("command failed", "action", action, "error", err)
		} else {
			d.logger.Debug("command succeeded", "action", action, "entities", res.EntityIDs)
		}
	}()
	return e.Execute(ctx, req, cmd)
}
