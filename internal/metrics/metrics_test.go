package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Prompt("success")
	m.Command("calculator", true)
	m.ObserveBackend("ollama", "generate", time.Now(), errors.New("boom"))
	m.AreaCacheRefreshed()
	m.MQTTMessage("prompt", "in")
	m.FileProcessed(false)
	m.BreakerState("ollama", 2)
	m.HistoryLength(3)
	m.ServiceUp("ollama", false)
	if m.Registry() != nil {
		t.Error("nil Metrics should have nil registry")
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Command("execute_task", true)
	m.Command("execute_task", true)
	m.Command("execute_task", false)
	m.ObserveBackend("homeassistant", "call_service", time.Now(), errors.New("HTTP 500"))
	m.ServiceUp("homeassistant", true)

	if got := testutil.ToFloat64(m.serviceUp.WithLabelValues("homeassistant")); got != 1 {
		t.Errorf("homeassistant up = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("execute_task", "success")); got != 2 {
		t.Errorf("success commands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("execute_task", "failure")); got != 1 {
		t.Errorf("failed commands = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.backendErrors.WithLabelValues("homeassistant", "call_service")); got != 1 {
		t.Errorf("backend errors = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Prompt("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `axiom_pipeline_prompts_total{outcome="success"} 1`) {
		t.Errorf("metrics output missing prompt counter:\n%s", body)
	}
}
