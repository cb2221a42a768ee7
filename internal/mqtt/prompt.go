package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Brent1981/AIProject/internal/config"
)

// Prompter runs one prompt through the pipeline.
type Prompter interface {
	Process(ctx context.Context, prompt, model string) string
}

// PromptRequest is the payload accepted on the request topic.
type PromptRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// PromptResponse is published to the response topic. State is what
// the sensor shows; FullResponse is exposed as an attribute.
type PromptResponse struct {
	State        string `json:"state"`
	FullResponse string `json:"full_response"`
}

// PromptBridge exposes the prompt pipeline as sensor.central_ai_response.
type PromptBridge struct {
	cfg             config.PromptBridgeConfig
	discoveryPrefix string
	instanceID      string
	device          DeviceInfo
	prompter        Prompter
	logger          *slog.Logger
}

// NewPromptBridge creates the bridge. Topics come from cfg.
func NewPromptBridge(cfg config.PromptBridgeConfig, discoveryPrefix, instanceID string, prompter Prompter, logger *slog.Logger) *PromptBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptBridge{
		cfg:             cfg,
		discoveryPrefix: discoveryPrefix,
		instanceID:      instanceID,
		device:          NewDeviceInfo(instanceID, "Central AI Brain"),
		prompter:        prompter,
		logger:          logger.With("bridge", "prompt"),
	}
}

// Name implements Bridge.
func (b *PromptBridge) Name() string { return "prompt" }

// Subscriptions implements Bridge.
func (b *PromptBridge) Subscriptions() []string { return []string{b.cfg.RequestTopic} }

func (b *PromptBridge) discoveryTopic() string {
	return b.discoveryPrefix + "/sensor/central_ai/response/config"
}

func (b *PromptBridge) sensorConfig() SensorConfig {
	return SensorConfig{
		Name:                "Central AI Response",
		ObjectID:            "central_ai_response",
		UniqueID:            b.instanceID + "_response",
		StateTopic:          b.cfg.ResponseTopic,
		AvailabilityTopic:   b.cfg.AvailabilityTopic,
		JSONAttributesTopic: b.cfg.ResponseTopic,
		ValueTemplate:       "{{ value_json.state }}",
		Icon:                "mdi:brain",
		Device:              b.device,
	}
}

// OnConnect announces the response sensor.
func (b *PromptBridge) OnConnect(ctx context.Context, pub Publisher) {
	payload, err := json.Marshal(b.sensorConfig())
	if err != nil {
		b.logger.Error("mqtt marshal discovery payload", "error", err)
		return
	}
	topic := b.discoveryTopic()
	if err := pub.Publish(ctx, topic, payload, true); err != nil {
		b.logger.Warn("mqtt discovery publish failed", "topic", topic, "error", err)
		return
	}
	b.logger.Debug("mqtt discovery published", "topic", topic)
}

// HandleMessage runs the prompt and publishes the reply.
func (b *PromptBridge) HandleMessage(ctx context.Context, pub Publisher, topic string, payload []byte) {
	var req PromptRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("invalid prompt request", "topic", topic, "error", err)
		b.respond(ctx, pub, PromptResponse{
			State:        "Error",
			FullResponse: "Invalid prompt request: payload must be JSON with a 'text' field.",
		})
		return
	}

	b.logger.Info("prompt received over mqtt", "length", len(req.Text), "model", req.Model)
	reply := b.prompter.Process(ctx, req.Text, req.Model)
	b.respond(ctx, pub, PromptResponse{State: StateText(reply), FullResponse: reply})
}

func (b *PromptBridge) respond(ctx context.Context, pub Publisher, resp PromptResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("mqtt marshal response", "error", err)
		return
	}
	if err := pub.Publish(ctx, b.cfg.ResponseTopic, payload, false); err != nil {
		b.logger.Warn("mqtt response publish failed", "topic", b.cfg.ResponseTopic, "error", err)
	}
}
