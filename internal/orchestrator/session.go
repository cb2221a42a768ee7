package orchestrator

import (
	"sync"
	"time"

	"github.com/Brent1981/AIProject/internal/homeassistant"
)

// Turn is one message in the conversation history.
type Turn struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// ActionContext records the devices most recently acted upon.
type ActionContext struct {
	EntityIDs []string  `json:"entity_ids"`
	At        time.Time `json:"at"`
}

// Session is the state carried between cycles: bounded history, the
// area cache and the last action context. All access goes through its
// mutex; a cycle holds the lock only while reading or writing state,
// never across backend calls, so concurrent prompts interleave turns.
type Session struct {
	mu          sync.Mutex
	maxHistory  int
	history     []Turn
	areas       homeassistant.AreaMap
	areasLoaded time.Time
	lastAction  ActionContext
}

// NewSession creates a session keeping at most maxHistory turns.
func NewSession(maxHistory int) *Session {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &Session{maxHistory: maxHistory}
}

// Append adds a turn, evicting the oldest beyond capacity, and returns
// the resulting length.
func (s *Session) Append(role, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Role: role, Content: content})
	if over := len(s.history) - s.maxHistory; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	return len(s.history)
}

// History returns a copy of the turns, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// LastAction returns the most recent action context.
func (s *Session) LastAction() ActionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ActionContext{
		EntityIDs: append([]string(nil), s.lastAction.EntityIDs...),
		At:        s.lastAction.At,
	}
}

func (s *Session) setLastAction(ids []string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAction = ActionContext{EntityIDs: ids, At: at}
}

// cachedAreas returns the area map and whether it is still fresh at now.
func (s *Session) cachedAreas(now time.Time, ttl time.Duration) (homeassistant.AreaMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := len(s.areas) > 0 && now.Sub(s.areasLoaded) <= ttl
	return s.areas, fresh
}

func (s *Session) storeAreas(areas homeassistant.AreaMap, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areas = areas
	s.areasLoaded = at
}
