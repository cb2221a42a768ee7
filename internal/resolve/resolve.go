// Package resolve maps loose device references to canonical entity IDs.
//
// Correction mode repairs a reference the model got slightly wrong using
// sequence-similarity matching. Extraction mode infers the device from
// the user's own words by keyword scoring.
package resolve

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Entity is one candidate device.
type Entity struct {
	ID   string
	Name string
}

// Defaults for NewResolver.
const (
	DefaultCutoff    = 0.6
	DefaultThreshold = 5
)

// Scoring weights for extraction mode.
const (
	nameWordScore = 3
	idWordScore   = 1
	fullNameBonus = 10
	domainBonus   = 15
)

var stopWords = map[string]bool{
	"what": true, "is": true, "the": true, "tell": true, "me": true,
	"about": true, "when": true, "was": true, "how": true, "long": true,
	"history": true, "of": true, "a": true, "an": true, "last": true,
	"on": true, "off": true, "open": true, "closed": true, "set": true,
	"to": true, "in": true, "were": true, "status": true, "current": true,
}

// domainKeywords is checked in order; the first keyword present in the
// prompt selects the domain.
var domainKeywords = []struct{ word, domain string }{
	{"light", "light"},
	{"lights", "light"},
	{"switch", "switch"},
	{"fan", "fan"},
	{"sensor", "sensor"},
	{"lock", "lock"},
	{"cover", "cover"},
	{"climate", "climate"},
}

// SimilarityFunc scores two strings between 0 and 1.
type SimilarityFunc func(a, b string) float64

// Resolver resolves references against an ordered entity list. Ties are
// won by the entity that appears first.
type Resolver struct {
	Similarity SimilarityFunc
	Cutoff     float64
	Threshold  int
}

// NewResolver returns a resolver using difflib ratios.
func NewResolver() *Resolver {
	return &Resolver{
		Similarity: SequenceRatio,
		Cutoff:     DefaultCutoff,
		Threshold:  DefaultThreshold,
	}
}

// Resolve returns the entity ID that candidate most likely refers to.
// With a non-empty candidate it tries correction first and falls back to
// extracting from prompt.
func (r *Resolver) Resolve(prompt, candidate string, entities []Entity) (string, bool) {
	if candidate != "" {
		if id, ok := r.Correct(candidate, entities); ok {
			return id, true
		}
	}
	return r.Extract(prompt, entities)
}

// Correct finds the ID or friendly name closest to candidate. A matched
// name is mapped back to the first entity carrying it. Equal scores go to
// the lexicographically greater text, as difflib.get_close_matches does.
func (r *Resolver) Correct(candidate string, entities []Entity) (string, bool) {
	best, bestText, bestScore := "", "", 0.0
	consider := func(text, id string) {
		score := r.Similarity(candidate, text)
		if score < r.Cutoff {
			return
		}
		if best == "" || score > bestScore || (score == bestScore && text > bestText) {
			best, bestText, bestScore = id, text, score
		}
	}
	for _, e := range entities {
		consider(e.ID, e.ID)
	}
	for _, e := range entities {
		consider(e.Name, e.ID)
	}
	return best, best != ""
}

// Extract scores every entity against the words of prompt and returns the
// best one if it beats the threshold.
func (r *Resolver) Extract(prompt string, entities []Entity) (string, bool) {
	words := promptWords(prompt)
	if len(words) == 0 {
		return "", false
	}

	detected := ""
	for _, k := range domainKeywords {
		if words[k.word] {
			detected = k.domain
			break
		}
	}

	best, highest := "", 0
	for _, e := range entities {
		if score := scoreEntity(words, detected, e); score > highest {
			best, highest = e.ID, score
		}
	}
	if highest > r.Threshold {
		return best, true
	}
	return "", false
}

func scoreEntity(words map[string]bool, detected string, e Entity) int {
	nameWords := wordSet(strings.Fields(strings.ToLower(e.Name)))
	domain, objectID, _ := strings.Cut(strings.ToLower(e.ID), ".")
	idWords := wordSet(splitID(domain + "." + objectID))

	score := 0
	allName := len(nameWords) > 0
	for w := range nameWords {
		if words[w] {
			score += nameWordScore
		} else {
			allName = false
		}
	}
	for w := range idWords {
		if words[w] {
			score += idWordScore
		}
	}
	if allName {
		score += fullNameBonus
	}

	// A switch named "fan" is as much a fan as fan.* is.
	if detected != "" && (domain == detected || wordSet(splitID(objectID))[detected]) {
		score += domainBonus
	}
	return score
}

func promptWords(prompt string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		w = strings.Trim(w, "?!.,;:\"'")
		if w != "" && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func splitID(id string) []string {
	return strings.FieldsFunc(id, func(r rune) bool { return r == '.' || r == '_' })
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// SequenceRatio is difflib's SequenceMatcher ratio over characters.
func SequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return difflib.NewMatcher(splitChars(b), splitChars(a)).Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
