package mqtt

import "github.com/Brent1981/AIProject/internal/buildinfo"

// DeviceInfo holds the Home Assistant device registry fields shared by
// every discovery payload, so HA groups the entities under one device.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// SensorConfig is the discovery payload for an MQTT sensor.
type SensorConfig struct {
	Name                string     `json:"name"`
	ObjectID            string     `json:"object_id,omitempty"`
	UniqueID            string     `json:"unique_id"`
	StateTopic          string     `json:"state_topic"`
	AvailabilityTopic   string     `json:"availability_topic"`
	JSONAttributesTopic string     `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string     `json:"value_template,omitempty"`
	Icon                string     `json:"icon,omitempty"`
	Device              DeviceInfo `json:"device"`
}

// LightConfig is the discovery payload for an MQTT light using the
// basic schema (ON/OFF payloads).
type LightConfig struct {
	Name              string      `json:"name"`
	UniqueID          string      `json:"unique_id"`
	CommandTopic      string      `json:"command_topic"`
	StateTopic        string      `json:"state_topic"`
	AvailabilityTopic string      `json:"availability_topic,omitempty"`
	Schema            string      `json:"schema"`
	Device            *DeviceInfo `json:"device,omitempty"`
}

// NewDeviceInfo builds the device block from the persistent instance ID
// and the display name shown in the HA UI.
func NewDeviceInfo(instanceID, deviceName string) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{instanceID},
		Name:         deviceName,
		Manufacturer: "AI Project",
		Model:        "AXIOM",
		SWVersion:    buildinfo.Version,
	}
}
