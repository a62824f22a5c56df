package smartthings

import "time"

// Location is one SmartThings location on the account.
type Location struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	TimeZoneID string `json:"timeZoneId,omitempty"`
}

// Room is a room within a location. Devices reference rooms by id.
type Room struct {
	RoomID     string `json:"roomId"`
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
}

// DeviceInfo is one entry from the device list: identity plus shape.
// Attribute values come separately from GetDeviceStatus.
type DeviceInfo struct {
	DeviceID         string      `json:"deviceId"`
	Name             string      `json:"name"`
	Label            string      `json:"label,omitempty"`
	ManufacturerName string      `json:"manufacturerName,omitempty"`
	DeviceTypeName   string      `json:"deviceTypeName,omitempty"`
	LocationID       string      `json:"locationId,omitempty"`
	RoomID           string      `json:"roomId,omitempty"`
	Components       []Component `json:"components,omitempty"`
}

// DisplayName returns the user-facing label, falling back to the device
// name when no label is set.
func (d DeviceInfo) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

// Component is one device component with its capability references.
type Component struct {
	ID           string                `json:"id"`
	Capabilities []CapabilityReference `json:"capabilities,omitempty"`
}

// CapabilityReference names a capability a component advertises.
type CapabilityReference struct {
	ID      string `json:"id"`
	Version int    `json:"version,omitempty"`
}

// DeviceStatus is the full status document for a device, keyed
// component id -> capability id -> attribute name.
type DeviceStatus struct {
	Components map[string]ComponentStatus `json:"components"`
}

// ComponentStatus maps capability id to its attribute states.
type ComponentStatus map[string]CapabilityStatus

// CapabilityStatus maps attribute name to its current state.
type CapabilityStatus map[string]AttributeState

// AttributeState is one attribute's reported value. Timestamp is the
// cloud-side observation time and may be absent on older records.
type AttributeState struct {
	Value     any       `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// DeviceHealth is the reachability verdict from the health endpoint.
// State is "ONLINE" or "OFFLINE".
type DeviceHealth struct {
	DeviceID    string    `json:"deviceId"`
	State       string    `json:"state"`
	LastUpdated time.Time `json:"lastUpdatedDate,omitempty"`
}

// Online reports whether the cloud considers the device reachable.
func (h DeviceHealth) Online() bool {
	return h.State == "ONLINE"
}

// Command is one entry of a device command envelope. Arguments are
// passed through as-is; the cloud validates them against the capability
// definition.
type Command struct {
	Component  string `json:"component"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments"`
}

// Scene is one cloud scene the account can execute.
type Scene struct {
	SceneID string `json:"sceneId"`
	Name    string `json:"sceneName"`
}

// SubscriptionRequest describes one event subscription to create. An
// empty DeviceID subscribes to the whole location (the catch-all the
// bridge registers alongside per-device subscriptions).
type SubscriptionRequest struct {
	DeviceID   string
	LocationID string
	Capability string
	Attribute  string
}

// Subscription is a cloud-side event registration as returned by the
// subscription API.
type Subscription struct {
	ID         string `json:"id"`
	SourceType string `json:"sourceType"`
}

// itemsEnvelope is the common {"items": [...]} list wrapper.
type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}
