package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", nil)
}

func TestClient_NotConfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if _, err := c.GetStates(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GetStates() error = %v, want ErrNotConfigured", err)
	}
	if err := c.CallService(context.Background(), "light.turn_on", []string{"light.kitchen"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("CallService() error = %v, want ErrNotConfigured", err)
	}
	if called {
		t.Error("unconfigured client reached the network")
	}
}

func TestClient_GetStates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[
			{"entity_id":"light.kitchen","state":"off","attributes":{"friendly_name":"Kitchen Light"}},
			{"entity_id":"sensor.bare","state":"3","attributes":{}}
		]`))
	})

	states, err := c.GetStates(context.Background())
	if err != nil {
		t.Fatalf("GetStates() error: %v", err)
	}
	names := FriendlyNames(states)
	if names["light.kitchen"] != "Kitchen Light" {
		t.Errorf("friendly name = %q", names["light.kitchen"])
	}
	if names["sensor.bare"] != "sensor.bare" {
		t.Errorf("missing friendly_name should fall back to the id, got %q", names["sensor.bare"])
	}
}

func TestClient_CallService(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		params  map[string]any
		want    map[string]any
	}{
		{
			name:    "single target",
			targets: []string{"light.kitchen"},
			params:  map[string]any{"brightness_pct": 50},
			want:    map[string]any{"entity_id": "light.kitchen", "brightness_pct": float64(50)},
		},
		{
			name:    "expanded group",
			targets: []string{"light.a", "light.b"},
			want:    map[string]any{"entity_id": []any{"light.a", "light.b"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				if r.Method != http.MethodPost || r.URL.Path != "/api/services/light/turn_on" {
					t.Errorf("%s %s", r.Method, r.URL.Path)
				}
				var got map[string]any
				json.NewDecoder(r.Body).Decode(&got)
				gb, _ := json.Marshal(got)
				wb, _ := json.Marshal(tt.want)
				if string(gb) != string(wb) {
					t.Errorf("payload = %s, want %s", gb, wb)
				}
				w.Write([]byte("[]"))
			})
			if err := c.CallService(context.Background(), "light.turn_on", tt.targets, tt.params); err != nil {
				t.Fatalf("CallService() error: %v", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestClient_CallServiceInvalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid service reached the network")
	})
	for _, svc := range []string{"", "turn_on", "light.", ".turn_on", "a.b.c"} {
		err := c.CallService(context.Background(), svc, []string{"light.kitchen"}, nil)
		var ise *InvalidServiceError
		if !errors.As(err, &ise) {
			t.Errorf("CallService(%q) error = %v, want InvalidServiceError", svc, err)
		}
	}
}

func TestClient_CallServiceBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entity not found", http.StatusBadRequest)
	})
	err := c.CallService(context.Background(), "light.turn_on", []string{"light.nope"}, nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 400") {
		t.Errorf("error = %v, want HTTP 400", err)
	}
}

func TestClient_GetAreaMap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/template" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "area_name(entity.entity_id)") {
			t.Errorf("template body = %s", body)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"Kitchen":[{"entity_id":"light.kitchen","friendly_name":"Kitchen Light"}]}`))
	})

	areas, err := c.GetAreaMap(context.Background())
	if err != nil {
		t.Fatalf("GetAreaMap() error: %v", err)
	}
	if len(areas["Kitchen"]) != 1 || areas["Kitchen"][0].EntityID != "light.kitchen" {
		t.Errorf("areas = %+v", areas)
	}
}

func TestClient_GetHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/history/period/") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("filter_entity_id"); got != "light.kitchen" {
			t.Errorf("filter_entity_id = %q", got)
		}
		w.Write([]byte(`[[{"entity_id":"light.kitchen","state":"on","last_changed":"2026-01-02T15:04:00Z"}]]`))
	})

	events, err := c.GetHistory(context.Background(), "light.kitchen", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(events) != 1 || events[0].State != "on" {
		t.Errorf("events = %+v", events)
	}
}

func TestClient_TimeZone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"location_name":"Home","time_zone":"America/Chicago"}`))
	})
	if loc := c.TimeZone(context.Background()); loc.String() != "America/Chicago" {
		t.Errorf("TimeZone() = %v", loc)
	}

	bad := NewClient("http://127.0.0.1:1", "", nil)
	if loc := bad.TimeZone(context.Background()); loc != time.UTC {
		t.Errorf("unconfigured TimeZone() = %v, want UTC", loc)
	}
}
