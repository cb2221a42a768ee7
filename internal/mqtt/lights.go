package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Brent1981/AIProject/internal/config"
	"github.com/Brent1981/AIProject/internal/homeassistant"
)

const lightSuffix = "_light"

// SwitchService is the Home Assistant surface the light bridge needs.
type SwitchService interface {
	GetStates(ctx context.Context) ([]homeassistant.State, error)
	CallService(ctx context.Context, service string, targets []string, params map[string]any) error
}

// StateWatcher streams state_changed events until ctx is cancelled.
type StateWatcher interface {
	WatchStates(ctx context.Context, handle func(homeassistant.StateChange)) error
}

// SwitchLights presents every switch.* entity as an MQTT light.
type SwitchLights struct {
	prefix       string
	availability string
	resync       time.Duration
	exclude      map[string]bool
	ha           SwitchService
	watcher      StateWatcher
	logger       *slog.Logger

	mu        sync.Mutex
	announced map[string]bool
}

// NewSwitchLights creates the bridge. watcher may be nil, in which case
// state is mirrored by the periodic resync alone.
func NewSwitchLights(cfg config.SwitchLightsConfig, discoveryPrefix, availabilityTopic string, ha SwitchService, watcher StateWatcher, logger *slog.Logger) *SwitchLights {
	if logger == nil {
		logger = slog.Default()
	}
	resync := time.Duration(cfg.ResyncSec) * time.Second
	if resync <= 0 {
		resync = 10 * time.Second
	}
	exclude := make(map[string]bool, len(cfg.Exclude))
	for _, id := range cfg.Exclude {
		exclude[id] = true
	}
	return &SwitchLights{
		prefix:       discoveryPrefix,
		availability: availabilityTopic,
		resync:       resync,
		exclude:      exclude,
		ha:           ha,
		watcher:      watcher,
		logger:       logger.With("bridge", "switch_lights"),
		announced:    make(map[string]bool),
	}
}

// Name implements Bridge.
func (s *SwitchLights) Name() string { return "switch_lights" }

// Subscriptions implements Bridge.
func (s *SwitchLights) Subscriptions() []string {
	return []string{s.prefix + "/light/+/set"}
}

func (s *SwitchLights) nodeTopic(objectID, leaf string) string {
	return s.prefix + "/light/" + objectID + lightSuffix + "/" + leaf
}

// objectIDFromTopic extracts the switch object id from a command topic
// of the form <prefix>/light/<object_id>_light/set.
func (s *SwitchLights) objectIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/light/")
	if !ok {
		return "", false
	}
	node, ok := strings.CutSuffix(rest, "/set")
	if !ok || strings.Contains(node, "/") {
		return "", false
	}
	objectID, ok := strings.CutSuffix(node, lightSuffix)
	if !ok || objectID == "" {
		return "", false
	}
	return objectID, true
}

// switchObjectID returns the object id for a mirrored switch entity.
func (s *SwitchLights) switchObjectID(entityID string) (string, bool) {
	domain, objectID, ok := homeassistant.SplitEntityID(entityID)
	if !ok || domain != "switch" || s.exclude[entityID] {
		return "", false
	}
	return objectID, true
}

// OnConnect re-announces every switch and publishes its current state.
func (s *SwitchLights) OnConnect(ctx context.Context, pub Publisher) {
	s.mu.Lock()
	clear(s.announced)
	s.mu.Unlock()
	s.sync(ctx, pub)
}

// Run mirrors state changes until ctx is cancelled.
func (s *SwitchLights) Run(ctx context.Context, pub Publisher) {
	if s.watcher != nil {
		go func() {
			err := s.watcher.WatchStates(ctx, func(ch homeassistant.StateChange) {
				if ch.NewState == nil {
					return
				}
				if objectID, ok := s.switchObjectID(ch.EntityID); ok {
					s.publishState(ctx, pub, objectID, ch.NewState.State)
				}
			})
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("switch state watch stopped", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(s.resync)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync(ctx, pub)
		}
	}
}

// sync announces newly seen switches and republishes every state.
func (s *SwitchLights) sync(ctx context.Context, pub Publisher) {
	states, err := s.ha.GetStates(ctx)
	if err != nil {
		s.logger.Warn("switch resync failed", "error", err)
		return
	}
	var mirrored int
	for _, st := range states {
		objectID, ok := s.switchObjectID(st.EntityID)
		if !ok {
			continue
		}
		if s.markAnnounced(objectID) {
			s.announce(ctx, pub, objectID, st.FriendlyName())
		}
		s.publishState(ctx, pub, objectID, st.State)
		mirrored++
	}
	s.logger.Log(ctx, config.LevelTrace, "switch states mirrored", "count", mirrored)
}

// markAnnounced records objectID and reports whether it was new.
func (s *SwitchLights) markAnnounced(objectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announced[objectID] {
		return false
	}
	s.announced[objectID] = true
	return true
}

func (s *SwitchLights) announce(ctx context.Context, pub Publisher, objectID, name string) {
	payload, err := json.Marshal(LightConfig{
		Name:              name,
		UniqueID:          "switch_as_light_" + objectID,
		CommandTopic:      s.nodeTopic(objectID, "set"),
		StateTopic:        s.nodeTopic(objectID, "state"),
		AvailabilityTopic: s.availability,
		Schema:            "basic",
	})
	if err != nil {
		s.logger.Error("mqtt marshal light discovery", "object_id", objectID, "error", err)
		return
	}
	topic := s.nodeTopic(objectID, "config")
	if err := pub.Publish(ctx, topic, payload, true); err != nil {
		s.logger.Warn("mqtt discovery publish failed", "topic", topic, "error", err)
		return
	}
	s.logger.Info("switch exposed as light", "entity_id", "switch."+objectID)
}

// publishState mirrors an HA state. Only on and off have a light
// equivalent; unavailable and unknown are skipped.
func (s *SwitchLights) publishState(ctx context.Context, pub Publisher, objectID, state string) {
	var payload string
	switch state {
	case "on":
		payload = "ON"
	case "off":
		payload = "OFF"
	default:
		return
	}
	if err := pub.Publish(ctx, s.nodeTopic(objectID, "state"), []byte(payload), true); err != nil {
		s.logger.Debug("mqtt state publish failed", "object_id", objectID, "error", err)
	}
}

// HandleMessage turns an ON/OFF light command into a switch service call.
func (s *SwitchLights) HandleMessage(ctx context.Context, pub Publisher, topic string, payload []byte) {
	objectID, ok := s.objectIDFromTopic(topic)
	if !ok {
		s.logger.Debug("ignoring unrecognised light topic", "topic", topic)
		return
	}
	entityID := "switch." + objectID
	if s.exclude[entityID] {
		return
	}

	var service, state string
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON":
		service, state = "switch.turn_on", "on"
	case "OFF":
		service, state = "switch.turn_off", "off"
	default:
		s.logger.Warn("unsupported light command", "topic", topic, "payload", string(payload))
		return
	}

	if err := s.ha.CallService(ctx, service, []string{entityID}, nil); err != nil {
		s.logger.Error("switch service call failed", "entity_id", entityID, "service", service, "error", err)
		return
	}
	s.logger.Info("switch toggled via light", "entity_id", entityID, "service", service)
	s.publishState(ctx, pub, objectID, state)
}
