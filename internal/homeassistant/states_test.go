package homeassistant

import (
	"strings"
	"testing"
	"time"
)

func TestAverageTemperature(t *testing.T) {
	states := []State{
		{EntityID: "sensor.a", State: "20.0", Attributes: map[string]any{"device_class": "temperature"}},
		{EntityID: "sensor.b", State: "21.5", Attributes: map[string]any{"device_class": "temperature"}},
		{EntityID: "sensor.c", State: "unknown", Attributes: map[string]any{"device_class": "temperature"}},
		{EntityID: "sensor.h", State: "40", Attributes: map[string]any{"device_class": "humidity"}},
		{EntityID: "climate.t", State: "99", Attributes: map[string]any{"device_class": "temperature"}},
	}
	avg, ok := AverageTemperature(states)
	if !ok || avg != 20.8 {
		t.Errorf("AverageTemperature() = %v, %v; want 20.8, true", avg, ok)
	}
	if _, ok := AverageTemperature(nil); ok {
		t.Error("AverageTemperature(nil) ok = true")
	}
}

func TestPrettify(t *testing.T) {
	p := Prettify(State{
		EntityID: "light.kitchen",
		State:    "on",
		Attributes: map[string]any{
			"brightness":    float64(128),
			"friendly_name": "Kitchen Light",
			"color_mode":    "hs",
		},
	})
	if p.Attributes["brightness"] != "50%" {
		t.Errorf("brightness = %q, want 50%%", p.Attributes["brightness"])
	}
	if _, ok := p.Attributes["color_mode"]; ok {
		t.Error("unexpected attribute color_mode kept")
	}
}

func TestPrettifyHistory(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
	tests := []struct {
		entity string
		class  string
		state  string
		want   string
	}{
		{"light.kitchen", "", "on", "it was turned on."},
		{"binary_sensor.front", "door", "on", "it was opened."},
		{"binary_sensor.hall", "motion", "off", "it motion cleared."},
		{"lock.front", "", "unlocked", "it was unlocked."},
		{"sensor.power", "", "12", "it changed to '12'."},
	}
	for _, tt := range tests {
		current := &State{EntityID: tt.entity, Attributes: map[string]any{"device_class": tt.class}}
		got := PrettifyHistory(tt.entity, []State{{State: tt.state, LastChanged: at}}, current, time.UTC)
		if !strings.Contains(got, "- At 03:04 PM on January 02, "+tt.want) {
			t.Errorf("PrettifyHistory(%s) = %q, want %q", tt.entity, got, tt.want)
		}
	}
	if got := PrettifyHistory("light.x", nil, nil, nil); got != "No valid history events to display." {
		t.Errorf("empty history = %q", got)
	}
}

func TestSplitEntityID(t *testing.T) {
	tests := []struct {
		in     string
		domain string
		ok     bool
	}{
		{"light.kitchen", "light", true},
		{"kitchen", "", false},
		{".kitchen", "", false},
		{"light.", "", false},
	}
	for _, tt := range tests {
		d, _, ok := SplitEntityID(tt.in)
		if d != tt.domain || ok != tt.ok {
			t.Errorf("SplitEntityID(%q) = %q, %v", tt.in, d, ok)
		}
	}
}
