package homeassistant

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FriendlyNames maps every entity ID in the snapshot to its display name.
func FriendlyNames(states []State) map[string]string {
	names := make(map[string]string, len(states))
	for _, s := range states {
		names[s.EntityID] = s.FriendlyName()
	}
	return names
}

// FindState returns the state for entityID, or nil.
func FindState(states []State, entityID string) *State {
	for i := range states {
		if states[i].EntityID == entityID {
			return &states[i]
		}
	}
	return nil
}

// AverageTemperature averages every temperature sensor with a numeric
// state, rounded to one decimal. ok is false when there are none.
func AverageTemperature(states []State) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, s := range states {
		if s.Domain() != "sensor" {
			continue
		}
		if dc, _ := s.Attributes["device_class"].(string); dc != "temperature" {
			continue
		}
		v, err := strconv.ParseFloat(s.State, 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return math.Round(sum/float64(n)*10) / 10, true
}

// PrettyState is a trimmed state for prompt context.
type PrettyState struct {
	EntityID   string            `json:"entity_id"`
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes"`
}

// Prettify keeps the attributes a model can reason about and renders
// brightness as a percentage and temperatures with a degree sign.
func Prettify(s State) PrettyState {
	attrs := map[string]string{}
	if b, ok := toFloat(s.Attributes["brightness"]); ok {
		attrs["brightness"] = fmt.Sprintf("%d%%", int(math.Round(b/255*100)))
	}
	for _, key := range []string{"temperature", "current_temperature"} {
		if v, ok := s.Attributes[key]; ok && v != nil {
			attrs[key] = fmt.Sprintf("%v°", v)
		}
	}
	if fn, ok := s.Attributes["friendly_name"].(string); ok {
		attrs["friendly_name"] = fn
	}
	return PrettyState{EntityID: s.EntityID, State: s.State, Attributes: attrs}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// PrettifyHistory renders history events as one line per change in the
// home's time zone, phrased according to the entity's domain and
// device class. current supplies the device class and may be nil.
func PrettifyHistory(entityID string, events []State, current *State, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var deviceClass string
	if current != nil {
		deviceClass, _ = current.Attributes["device_class"].(string)
	}
	domain, _, _ := SplitEntityID(entityID)

	var b strings.Builder
	for _, ev := range events {
		if ev.LastChanged.IsZero() {
			continue
		}
		ts := ev.LastChanged.In(loc).Format("03:04 PM on January 02")
		fmt.Fprintf(&b, "- At %s, it %s.\n", ts, describeChange(domain, deviceClass, ev.State))
	}
	if b.Len() == 0 {
		return "No valid history events to display."
	}
	return b.String()
}

func describeChange(domain, deviceClass, state string) string {
	on := state == "on"
	switch domain {
	case "light", "switch", "fan", "input_boolean":
		return "was turned " + state
	case "binary_sensor":
		switch deviceClass {
		case "door", "window", "garage_door":
			return "was " + pick(on, "opened", "closed")
		case "motion", "occupancy":
			return pick(on, "motion was detected", "motion cleared")
		case "lock":
			return "was " + pick(on, "unlocked", "locked")
		}
		return "turned " + state
	case "lock":
		return "was " + pick(state == "unlocked", "unlocked", "locked")
	case "cover":
		return "was " + state
	}
	return fmt.Sprintf("changed to '%s'", state)
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
