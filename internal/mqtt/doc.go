// Package mqtt bridges AXIOM to Home Assistant over an MQTT broker.
//
// A single [Client] owns the broker connection. It uses Eclipse Paho
// v2's [autopaho] package for reconnection, and on every (re-)connect
// it re-subscribes each registered [Bridge], publishes a retained
// "online" birth message, and lets the bridge re-announce its
// discovery payloads. A will message flips the availability topic to
// "offline" on unexpected disconnects.
//
// Two bridges are provided:
//
//   - [PromptBridge] accepts prompts on a request topic, runs them
//     through the pipeline, and publishes the reply for the
//     sensor.central_ai_response entity.
//   - [SwitchLights] mirrors every switch entity as an MQTT light so
//     it can be placed in light groups and scenes.
//
// Inbound messages are queued per bridge and handled in arrival order
// off the network goroutine, so a slow prompt never stalls keepalives.
package mqtt
