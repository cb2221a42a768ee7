package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Brent1981/AIProject/internal/connwatch"
	"github.com/Brent1981/AIProject/internal/filesorter"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/orchestrator"
)

type echoPrompter struct {
	prompt, model string
}

func (e *echoPrompter) Process(_ context.Context, prompt, model string) string {
	e.prompt, e.model = prompt, model
	return "echo: " + prompt
}

type fakeMemory struct{ stored []string }

func (f *fakeMemory) Remember(_ context.Context, text string) string {
	f.stored = append(f.stored, text)
	return "Okay, I've remembered that: " + text
}

type fakeHA struct {
	configured bool
	states     []homeassistant.State
	history    []homeassistant.State
	err        error
}

func (f *fakeHA) Configured() bool { return f.configured }
func (f *fakeHA) GetStates(context.Context) ([]homeassistant.State, error) {
	return f.states, f.err
}
func (f *fakeHA) GetHistory(context.Context, string, time.Time) ([]homeassistant.State, error) {
	return f.history, f.err
}
func (f *fakeHA) TimeZone(context.Context) *time.Location { return time.UTC }

type fakeFiles struct{ err error }

func (f fakeFiles) Process(_ context.Context, path string) (*filesorter.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &filesorter.Result{Source: path, Destination: "/out/" + path}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestPrompt(t *testing.T) {
	p := &echoPrompter{}
	h := NewServer("", 0, p, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/prompt", `{"prompt":"turn on the lights","model":"mistral"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["response"]; got != "echo: turn on the lights" {
		t.Errorf("response = %v", got)
	}
	if p.model != "mistral" {
		t.Errorf("model = %q", p.model)
	}

	tests := []struct {
		name, body, wantErr string
	}{
		{"not json", "prompt=hi", "Request must be JSON"},
		{"missing prompt", `{"model":"x"}`, "Missing 'prompt' in request body"},
		{"empty prompt", `{"prompt":""}`, "Missing 'prompt' in request body"},
		{"wrong type", `{"prompt":42}`, "Request must be JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/prompt", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decode(t, rec)["error"]; got != tt.wantErr {
				t.Errorf("error = %v, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestPrompt_RateLimit(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	s.SetRateLimit(0.001, 1)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/prompt", `{"prompt":"a"}`); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/prompt", `{"prompt":"b"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	s.SetMetrics(metrics.New())
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/v1/version", ""); rec.Code != http.StatusOK || decode(t, rec)["version"] == nil {
		t.Errorf("version status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/prompt", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/prompt status = %d, want 405", rec.Code)
	}
}

func TestRemember(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	if got := decode(t, do(t, s.Handler(), http.MethodPost, "/api/memory", `{"text":"x"}`))["response"]; got != "Memory is not available." {
		t.Errorf("without store: %v", got)
	}

	mem := &fakeMemory{}
	s.SetMemory(mem)
	h := s.Handler()
	rec := do(t, h, http.MethodPost, "/api/memory", `{"text":"the spare key is under the mat"}`)
	if got := decode(t, rec)["response"]; got != "Okay, I've remembered that: the spare key is under the mat" {
		t.Errorf("response = %v", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/memory", `{"text":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d", rec.Code)
	}
}

func TestConversation(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	sess := orchestrator.NewSession(10)
	sess.Append("user", "hello")
	s.SetSession(sess)

	m := decode(t, do(t, s.Handler(), http.MethodGet, "/api/conversation", ""))
	hist, _ := m["history"].([]any)
	if len(hist) != 1 {
		t.Fatalf("history = %v", m["history"])
	}
	if _, ok := m["last_action"]; ok {
		t.Error("last_action should be omitted before any action")
	}
}

func TestEntityHistory(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	s.SetHomeAssistant(&fakeHA{})
	if got := decode(t, do(t, s.Handler(), http.MethodGet, "/api/history/light.porch", ""))["response"]; got != homeassistant.NotConfiguredText {
		t.Errorf("unconfigured response = %v", got)
	}

	changed := time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)
	s.SetHomeAssistant(&fakeHA{
		configured: true,
		history:    []homeassistant.State{{EntityID: "light.porch", State: "on", LastChanged: changed}},
	})
	h := s.Handler()

	m := decode(t, do(t, h, http.MethodGet, "/api/history/light.porch?hours=6", ""))
	if m["history"] != "- At 03:04 PM on January 02, it was turned on.\n" || m["hours"] != float64(6) {
		t.Errorf("history response = %v", m)
	}
	if rec := do(t, h, http.MethodGet, "/api/history/porch", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/history/light.porch?hours=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad hours status = %d", rec.Code)
	}
}

func TestTemperature(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	s.SetHomeAssistant(&fakeHA{configured: true, states: []homeassistant.State{
		{EntityID: "sensor.a", State: "20", Attributes: map[string]any{"device_class": "temperature"}},
		{EntityID: "sensor.b", State: "21", Attributes: map[string]any{"device_class": "temperature"}},
	}})
	if got := decode(t, do(t, s.Handler(), http.MethodGet, "/api/temperature", ""))["average"]; got != 20.5 {
		t.Errorf("average = %v", got)
	}

	s.SetHomeAssistant(&fakeHA{configured: true})
	if rec := do(t, s.Handler(), http.MethodGet, "/api/temperature", ""); rec.Code != http.StatusNotFound {
		t.Errorf("no sensors status = %d", rec.Code)
	}
}

func TestProcessFile(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	if rec := do(t, s.Handler(), http.MethodPost, "/api/files/process", `{"file_path":"a.jpg"}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d", rec.Code)
	}

	s.SetFileSorter(fakeFiles{})
	m := decode(t, do(t, s.Handler(), http.MethodPost, "/api/files/process", `{"file_path":"a.jpg"}`))
	if m["new_path"] != "/out/a.jpg" {
		t.Errorf("response = %v", m)
	}

	s.SetFileSorter(fakeFiles{err: errors.New("invalid or non-existent file_path")})
	if rec := do(t, s.Handler(), http.MethodPost, "/api/files/process", `{"file_path":"a.jpg"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("failure status = %d", rec.Code)
	}
}

type staticStatus []connwatch.Status

func (s staticStatus) Status() []connwatch.Status { return s }

func TestStatus(t *testing.T) {
	s := NewServer("", 0, &echoPrompter{}, nil)
	m := decode(t, do(t, s.Handler(), http.MethodGet, "/api/status", ""))
	if svc, _ := m["services"].([]any); svc == nil || len(svc) != 0 {
		t.Errorf("services without watcher = %v", m["services"])
	}

	s.SetStatusSource(staticStatus{
		{Name: "homeassistant", Ready: true},
		{Name: "ollama", Ready: false, LastError: "connection refused"},
	})
	var resp StatusResponse
	rec := do(t, s.Handler(), http.MethodGet, "/api/status", "")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Services) != 2 || resp.Services[1].LastError != "connection refused" {
		t.Errorf("services = %+v", resp.Services)
	}
}
