package groups

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Brent1981/AIProject/internal/homeassistant"
)

func group(id string, members ...any) homeassistant.State {
	return homeassistant.State{
		EntityID:   id,
		State:      "on",
		Attributes: map[string]any{"entity_id": members},
	}
}

func TestExpand(t *testing.T) {
	states := []homeassistant.State{
		group("group.downstairs", "light.kitchen", "group.living"),
		group("group.living", "light.floor", "light.kitchen"),
		group("group.empty"),
		{EntityID: "group.broken", Attributes: map[string]any{}},
		{EntityID: "group.single", Attributes: map[string]any{"entity_id": "fan.attic"}},
		{EntityID: "light.kitchen"},
		{EntityID: "light.floor"},
	}

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"flat", []string{"light.kitchen", "light.floor"}, []string{"light.kitchen", "light.floor"}},
		{"nested with duplicates", []string{"group.downstairs"}, []string{"light.kitchen", "light.floor"}},
		{"empty group kept", []string{"group.empty"}, []string{"group.empty"}},
		{"memberless group kept", []string{"group.broken"}, []string{"group.broken"}},
		{"unknown group kept", []string{"group.nope"}, []string{"group.nope"}},
		{"string member", []string{"group.single"}, []string{"fan.attic"}},
		{"mixed", []string{"switch.tv", "group.living", "switch.tv"}, []string{"switch.tv", "light.floor", "light.kitchen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.ids, states)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expand(%v) = %v, want %v", tt.ids, got, tt.want)
			}
		})
	}
}

func TestExpand_Idempotent(t *testing.T) {
	states := []homeassistant.State{group("group.all", "light.a", "group.sub"), group("group.sub", "light.b")}
	once, _ := Expand([]string{"group.all"}, states)
	twice, _ := Expand(once, states)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second expansion %v differs from first %v", twice, once)
	}
}

func TestExpand_Cycle(t *testing.T) {
	states := []homeassistant.State{
		group("group.a", "light.one", "group.b"),
		group("group.b", "light.two", "group.a"),
		group("group.self", "group.self", "light.three"),
	}

	got, err := Expand([]string{"group.a", "group.self"}, states)
	want := []string{"light.one", "light.two", "light.three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
	var inc *IncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("err = %v, want *IncompleteError", err)
	}
	if !reflect.DeepEqual(inc.Cycles, []string{"group.a", "group.self"}) {
		t.Errorf("Cycles = %v", inc.Cycles)
	}
}
