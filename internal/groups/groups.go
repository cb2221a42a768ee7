// Package groups flattens Home Assistant group references into the
// concrete entities they contain.
package groups

import (
	"fmt"
	"strings"

	"github.com/Brent1981/AIProject/internal/homeassistant"
)

const groupDomain = "group"

// IncompleteError reports groups that were skipped because they were
// reached again through their own membership.
type IncompleteError struct {
	Cycles []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("could not fully expand groups: cyclic membership via %s", strings.Join(e.Cycles, ", "))
}

// Expand returns the concrete entity IDs behind ids, deduplicated in
// first-seen order. Groups without a usable member list are kept as they
// are. When a cycle is found the result is still usable and err is an
// *IncompleteError.
func Expand(ids []string, states []homeassistant.State) ([]string, error) {
	index := make(map[string]*homeassistant.State, len(states))
	for i := range states {
		index[states[i].EntityID] = &states[i]
	}

	e := expander{
		index:    index,
		seen:     make(map[string]bool),
		visiting: make(map[string]bool),
	}
	for _, id := range ids {
		e.visit(id)
	}
	if len(e.cycles) > 0 {
		return e.out, &IncompleteError{Cycles: e.cycles}
	}
	return e.out, nil
}

type expander struct {
	index    map[string]*homeassistant.State
	seen     map[string]bool
	visiting map[string]bool
	out      []string
	cycles   []string
}

func (e *expander) visit(id string) {
	if !strings.HasPrefix(id, groupDomain+".") {
		e.emit(id)
		return
	}
	if e.visiting[id] {
		e.cycles = append(e.cycles, id)
		return
	}

	members := memberIDs(e.index[id])
	if len(members) == 0 {
		e.emit(id)
		return
	}

	e.visiting[id] = true
	for _, m := range members {
		e.visit(m)
	}
	delete(e.visiting, id)
}

func (e *expander) emit(id string) {
	if !e.seen[id] {
		e.seen[id] = true
		e.out = append(e.out, id)
	}
}

// memberIDs reads the group's entity_id attribute, which Home Assistant
// sends as a list but may also be a single string.
func memberIDs(s *homeassistant.State) []string {
	if s == nil {
		return nil
	}
	switch v := s.Attributes["entity_id"].(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []string:
		return v
	case []any:
		ids := make([]string, 0, len(v))
		for _, m := range v {
			if id, ok := m.(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}
