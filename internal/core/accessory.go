package core

import "github.com/google/uuid"

// accessoryNamespace seeds name-based accessory UUIDs.
var accessoryNamespace = uuid.MustParse("6b9f3c2e-5d1a-4f7e-9a0b-2c4d6e8f1a3b")

// Accessory is the host representation of a controllable physical device.
type Accessory struct {
	UUID        string         `json:"uuid"`
	DisplayName string         `json:"display_name"`
	PluginID    string         `json:"plugin_id,omitempty"`
	PlatformID  string         `json:"platform_id,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// GenerateUUID derives a stable accessory identifier from a vendor device id.
// The same input always yields the same UUID.
func GenerateUUID(id string) string {
	return uuid.NewSHA1(accessoryNamespace, []byte(id)).String()
}

// NewAccessory builds an unregistered accessory handle.
func NewAccessory(displayName, id string) Accessory {
	return Accessory{UUID: id, DisplayName: displayName, Context: map[string]any{}}
}
