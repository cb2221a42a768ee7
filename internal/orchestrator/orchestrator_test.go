package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Brent1981/AIProject/internal/actions"
	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/homeassistant"
)

type fakeHA struct {
	mu        sync.Mutex
	states    []homeassistant.State
	statesErr error
	areaCalls int
	calls     []string
	panicMsg  string
}

func (f *fakeHA) GetStates(context.Context) ([]homeassistant.State, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.states, f.statesErr
}

func (f *fakeHA) GetAreaMap(context.Context) (homeassistant.AreaMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.areaCalls++
	return homeassistant.AreaMap{"Kitchen": {{EntityID: "light.kitchen", FriendlyName: "Kitchen Light"}}}, nil
}

func (f *fakeHA) CallService(_ context.Context, service string, targets []string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s %s", service, strings.Join(targets, ",")))
	return nil
}

// scriptedModel answers planning prompts with plan and anything else with
// answer.
type scriptedModel struct {
	plan    string
	answer  string
	prompts []string
}

func (m *scriptedModel) Generate(_ context.Context, prompt, _ string) string {
	m.prompts = append(m.prompts, prompt)
	if strings.HasPrefix(prompt, "You are AXIOM") {
		return m.plan
	}
	return m.answer
}

func (m *scriptedModel) Complete(ctx context.Context, prompt, model string) (string, error) {
	return m.Generate(ctx, prompt, model), nil
}

type staticMemory string

func (s staticMemory) Recall(context.Context, string, int) string { return string(s) }

func home() *fakeHA {
	return &fakeHA{states: []homeassistant.State{
		{EntityID: "light.kitchen", State: "off", Attributes: map[string]any{"friendly_name": "Kitchen Light"}},
		{EntityID: "switch.fan", State: "off", Attributes: map[string]any{"friendly_name": "Hallway Fan"}},
	}}
}

func newTestOrchestrator(ha *fakeHA, model *scriptedModel) *Orchestrator {
	d := actions.NewDispatcher(nil, nil)
	d.Register(command.ActionExecuteTask, actions.NewDevice(ha, nil, nil))
	d.Register(command.ActionCalculator, actions.NewCalculator(model, nil))
	return New(Config{DefaultModel: "llama3"}, ha, model, staticMemory("No relevant memories found."), d, nil, nil)
}

func TestProcess_DeviceCommand(t *testing.T) {
	ha := home()
	model := &scriptedModel{plan: "```json\n{\"action\":\"execute_task\",\"service\":\"light.turn_on\",\"entity_id\":\"light.kitchen\"}\n```"}
	o := newTestOrchestrator(ha, model)

	got := o.Process(context.Background(), "Turn on the kitchen light", "")
	if got != "Okay, I've executed turn on on the Kitchen Light." {
		t.Errorf("Process() = %q", got)
	}
	if !reflect.DeepEqual(ha.calls, []string{"light.turn_on light.kitchen"}) {
		t.Errorf("service calls = %v", ha.calls)
	}
	if len(model.prompts) != 1 {
		t.Errorf("model called %d times, want 1", len(model.prompts))
	}
	for _, want := range []string{"No relevant memories found.", `"switch.fan": "Hallway Fan"`, `"Kitchen": [`} {
		if !strings.Contains(model.prompts[0], want) {
			t.Errorf("planning prompt missing %q", want)
		}
	}

	last := o.Session().LastAction()
	if !reflect.DeepEqual(last.EntityIDs, []string{"light.kitchen"}) || last.At.IsZero() {
		t.Errorf("LastAction() = %+v", last)
	}
	hist := o.Session().History()
	if len(hist) != 2 || hist[0].Role != "user" || hist[1] != (Turn{Role: "assistant", Content: got}) {
		t.Errorf("History() = %+v", hist)
	}
}

func TestProcess_DirectAnswer(t *testing.T) {
	ha := home()
	model := &scriptedModel{plan: "I'm not sure what you mean.", answer: "Forty-two."}
	o := newTestOrchestrator(ha, model)

	if got := o.Process(context.Background(), "what is the meaning of life", ""); got != "Forty-two." {
		t.Errorf("Process() = %q", got)
	}
	if len(model.prompts) != 2 || model.prompts[1] != "You are a helpful assistant. Answer the following question: what is the meaning of life" {
		t.Errorf("prompts = %q", model.prompts)
	}
	if len(ha.calls) != 0 {
		t.Errorf("unexpected service calls %v", ha.calls)
	}
	if !o.Session().LastAction().At.IsZero() {
		t.Error("direct answers should not record an action context")
	}
}

func TestProcess_PartialFailure(t *testing.T) {
	ha := home()
	model := &scriptedModel{plan: `[
		{"action":"execute_task","service":"switch.turn_on","entity_id":"switch.fan"},
		{"action":"execute_task","service":"lock.lock","entity_id":"lock.front_door"}
	]`}
	o := newTestOrchestrator(ha, model)

	got := o.Process(context.Background(), "lock up and start the air", "")
	want := "Okay, I've executed turn on on the Hallway Fan. However, I could not find a matching device for 'lock.front_door'."
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
	if len(ha.calls) != 1 {
		t.Errorf("service calls = %v", ha.calls)
	}
}

func TestProcess_SingleAnswerVerbatim(t *testing.T) {
	model := &scriptedModel{plan: `{"action":"calculator","expression":"27 * 14"}`, answer: "That would be 378."}
	o := newTestOrchestrator(home(), model)

	if got := o.Process(context.Background(), "What is 27 * 14?", ""); got != "That would be 378." {
		t.Errorf("Process() = %q", got)
	}
}

func TestProcess_Failures(t *testing.T) {
	t.Run("empty prompt", func(t *testing.T) {
		o := newTestOrchestrator(home(), &scriptedModel{})
		if got := o.Process(context.Background(), "  \n", ""); got != EmptyPromptText {
			t.Errorf("Process() = %q", got)
		}
		if len(o.Session().History()) != 0 {
			t.Error("empty prompt must not touch history")
		}
	})

	t.Run("no states", func(t *testing.T) {
		ha := &fakeHA{statesErr: errors.New("connection refused")}
		if got := newTestOrchestrator(ha, &scriptedModel{}).Process(context.Background(), "hi", ""); got != NoStatesText {
			t.Errorf("Process() = %q", got)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		model := &scriptedModel{plan: `{"action":"teleport"}`}
		got := newTestOrchestrator(home(), model).Process(context.Background(), "beam me up", "")
		if got != "However, I failed to execute a command due to: unknown action 'teleport' in command." {
			t.Errorf("Process() = %q", got)
		}
	})

	t.Run("panic", func(t *testing.T) {
		ha := home()
		ha.panicMsg = "boom"
		if got := newTestOrchestrator(ha, &scriptedModel{}).Process(context.Background(), "hi", ""); got != "An unexpected error occurred: boom" {
			t.Errorf("Process() = %q", got)
		}
	})
}

func TestProcess_AreaCache(t *testing.T) {
	ha := home()
	o := newTestOrchestrator(ha, &scriptedModel{plan: "nothing", answer: "ok"})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	o.Process(context.Background(), "one", "")
	now = now.Add(299 * time.Second)
	o.Process(context.Background(), "two", "")
	if ha.areaCalls != 1 {
		t.Fatalf("area map fetched %d times within TTL, want 1", ha.areaCalls)
	}
	now = now.Add(2 * time.Second)
	o.Process(context.Background(), "three", "")
	if ha.areaCalls != 2 {
		t.Errorf("area map fetched %d times after expiry, want 2", ha.areaCalls)
	}
}

func TestSession_HistoryEviction(t *testing.T) {
	s := NewSession(10)
	for i := 1; i <= 11; i++ {
		s.Append("user", fmt.Sprintf("turn %d", i))
	}
	h := s.History()
	if len(h) != 10 {
		t.Fatalf("len = %d, want 10", len(h))
	}
	if h[0].Content != "turn 2" || h[9].Content != "turn 11" {
		t.Errorf("history = %v", h)
	}
}

func TestSummarize(t *testing.T) {
	ok := func(text string, answer bool) actions.Result { return actions.Result{Text: text, Answer: answer} }
	tests := []struct {
		name     string
		commands int
		results  []actions.Result
		failures []string
		want     string
	}{
		{"single answer", 1, []actions.Result{ok("It is sunny.", true)}, nil, "It is sunny."},
		{"single device", 1, []actions.Result{ok("executed turn on on the Lamp", false)}, nil, "Okay, I've executed turn on on the Lamp."},
		{"two successes", 2, []actions.Result{ok("a", false), ok("b", true)}, nil, "Okay, I've a, and b."},
		{"failures only", 2, nil, []string{"x", "y"}, "However, I x, and y."},
		{"mixed", 2, []actions.Result{ok("a", false)}, []string{"x"}, "Okay, I've a. However, I x."},
		{"nothing", 0, nil, nil, FallbackText},
	}
	for _, tt := range tests {
		if got := Summarize(tt.commands, tt.results, tt.failures); got != tt.want {
			t.Errorf("%s: Summarize() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
