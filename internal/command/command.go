// Package command parses the language model's planning reply into
// structured commands.
//
// Model output is unreliable, so extraction runs an ordered chain of
// parsers, each total: a fenced code block, the whole reply, and finally
// the text from the first brace or bracket onward. The first tier that
// applies decides the result.
package command

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

// Action tags understood by the dispatcher.
const (
	ActionExecuteTask = "execute_task"
	ActionWebSearch   = "web_search"
	ActionCalculator  = "calculator"
)

// Command is one intent object as the model produced it. A nil Command
// stands for an array element that was not a JSON object.
type Command map[string]any

// Action returns the "action" tag, or "" when absent.
func (c Command) Action() string { return c.String("action") }

// String returns the string value of key, or "" when it is absent or not
// a string.
func (c Command) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Parameters returns the optional "parameters" object.
func (c Command) Parameters() map[string]any {
	p, _ := c["parameters"].(map[string]any)
	return p
}

var fencePattern = regexp.MustCompile("```(json)?\\s*([\\s\\S]*?)\\s*```")

// Extract returns the commands found in text, in order. It never fails;
// unusable input yields an empty slice.
func Extract(text string) []Command {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		// A fenced block is authoritative even when it does not parse.
		cmds, _ := decode(m[2])
		return cmds
	}
	if cmds, ok := decode(text); ok {
		return cmds
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil
	}
	cmds, _ := decode(text[start:])
	return cmds
}

// decode parses s as a single JSON value. ok is false when s is not valid
// JSON; a valid value that is neither an object nor an array yields
// (nil, true).
func decode(s string) (cmds []Command, ok bool) {
	var raw any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	// Trailing data makes the whole input invalid.
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, false
	}

	switch v := raw.(type) {
	case map[string]any:
		return []Command{v}, true
	case []any:
		cmds = make([]Command, len(v))
		for i, elem := range v {
			if obj, isObj := elem.(map[string]any); isObj {
				cmds[i] = obj
			}
		}
		return cmds, true
	}
	return nil, true
}
