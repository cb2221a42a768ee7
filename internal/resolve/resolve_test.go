package resolve

import "testing"

var home = []Entity{
	{ID: "light.kitchen", Name: "Kitchen Light"},
	{ID: "switch.fan", Name: "Hallway Fan"},
}

func TestExtract(t *testing.T) {
	r := NewResolver()
	tests := []struct {
		prompt string
		want   string
	}{
		{"turn on the kitchen light", "light.kitchen"},
		{"Turn on the kitchen light.", "light.kitchen"},
		{"turn on the fan", "switch.fan"},
		{"is the hallway fan on?", "switch.fan"},
		{"what is the weather", ""},
		{"the on off", ""},
	}
	for _, tt := range tests {
		got, ok := r.Extract(tt.prompt, home)
		if got != tt.want || ok != (tt.want != "") {
			t.Errorf("Extract(%q) = %q, %v; want %q", tt.prompt, got, ok, tt.want)
		}
	}
}

func TestExtract_TieGoesToFirst(t *testing.T) {
	entities := []Entity{
		{ID: "light.desk_a", Name: "Desk Lamp"},
		{ID: "light.desk_b", Name: "Desk Lamp"},
	}
	got, ok := NewResolver().Extract("desk lamp", entities)
	if !ok || got != "light.desk_a" {
		t.Errorf("Extract() = %q, %v; want light.desk_a", got, ok)
	}
}

func TestCorrect(t *testing.T) {
	r := NewResolver()
	tests := []struct {
		candidate string
		want      string
	}{
		{"light.kichen", "light.kitchen"},
		{"Kitchen Lights", "light.kitchen"},
		{"hallway fan", "switch.fan"},
		{"sensor.garage_door", ""},
	}
	for _, tt := range tests {
		got, ok := r.Correct(tt.candidate, home)
		if got != tt.want || ok != (tt.want != "") {
			t.Errorf("Correct(%q) = %q, %v; want %q", tt.candidate, got, ok, tt.want)
		}
	}
}

func TestCorrect_TieGoesToGreatestText(t *testing.T) {
	r := NewResolver()
	r.Similarity = func(_, _ string) float64 { return 0.8 }

	// "switch.fan" sorts above "light.kitchen", "Kitchen Light" and "Hallway Fan".
	got, ok := r.Correct("anything", home)
	if !ok || got != "switch.fan" {
		t.Errorf("Correct() = %q, %v; want switch.fan", got, ok)
	}

	dupes := []Entity{
		{ID: "light.a", Name: "Lamp"},
		{ID: "light.b", Name: "Lamp"},
	}
	r.Similarity = func(_, b string) float64 {
		if b == "Lamp" {
			return 1
		}
		return 0
	}
	if got, _ := r.Correct("lamp", dupes); got != "light.a" {
		t.Errorf("Correct() = %q, want first entity named Lamp", got)
	}
}

func TestResolve_FallsBackToExtraction(t *testing.T) {
	r := NewResolver()
	got, ok := r.Resolve("turn on the kitchen light", "lamp.nonsense_device", home)
	if !ok || got != "light.kitchen" {
		t.Errorf("Resolve() = %q, %v; want light.kitchen", got, ok)
	}
	if _, ok := r.Resolve("play some music", "media.xyz", home); ok {
		t.Error("expected no match")
	}
}

func TestResolve_CustomSimilarity(t *testing.T) {
	r := NewResolver()
	r.Similarity = func(a, b string) float64 {
		if b == "Hallway Fan" {
			return 1
		}
		return 0
	}
	got, ok := r.Correct("anything", home)
	if !ok || got != "switch.fan" {
		t.Errorf("Correct() = %q, %v; want switch.fan", got, ok)
	}
}

func TestSequenceRatio(t *testing.T) {
	if got := SequenceRatio("abcd", "abcd"); got != 1 {
		t.Errorf("identical ratio = %v", got)
	}
	if got := SequenceRatio("abcd", "wxyz"); got != 0 {
		t.Errorf("disjoint ratio = %v", got)
	}
	if got := SequenceRatio("light.kichen", "light.kitchen"); got < 0.9 {
		t.Errorf("typo ratio = %v, want >= 0.9", got)
	}
}
