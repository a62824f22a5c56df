package device

import (
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
)

// Device is the bridge's view of one SmartThings device: its cloud identity,
// shape (capabilities and room placement) and the current value of every
// attribute the cloud has reported. Owned exclusively by the Directory;
// mutated only through its update API.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Shape
	TypeHint     string                  `json:"type_hint,omitempty"`
	Manufacturer string                  `json:"manufacturer,omitempty"`
	RoomID       string                  `json:"room_id,omitempty"`
	RoomName     string                  `json:"room_name,omitempty"`
	Domain       capability.Domain       `json:"domain"`
	Components   []string                `json:"components"`
	Capabilities []capability.Capability `json:"capabilities"`

	// Current state, keyed by component/capability/attribute.
	Attributes map[AttributeKey]AttributeValue `json:"-"`

	// Health
	Health   HealthState `json:"health"`
	LastSeen time.Time   `json:"last_seen,omitempty"`

	// UpdatedAt is the last shape refresh, not the last attribute change.
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Components != nil {
		cpy.Components = make([]string, len(d.Components))
		copy(cpy.Components, d.Components)
	}

	if d.Capabilities != nil {
		cpy.Capabilities = make([]capability.Capability, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}

	if d.Attributes != nil {
		cpy.Attributes = make(map[AttributeKey]AttributeValue, len(d.Attributes))
		for k, v := range d.Attributes {
			v.Value = deepCopyValue(v.Value)
			cpy.Attributes[k] = v
		}
	}

	return &cpy
}

// AttributeRecords flattens the attribute map into a sorted-friendly slice
// for JSON responses and logging.
func (d *Device) AttributeRecords() []AttributeRecord {
	if len(d.Attributes) == 0 {
		return nil
	}
	records := make([]AttributeRecord, 0, len(d.Attributes))
	for k, v := range d.Attributes {
		records = append(records, AttributeRecord{
			Component:  k.Component,
			Capability: k.Capability,
			Attribute:  k.Attribute,
			Value:      v.Value,
			Unit:       v.Unit,
			Timestamp:  v.Timestamp,
			Source:     v.Source,
		})
	}
	return records
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		cpy := make(map[string]any, len(val))
		for k, elem := range val {
			cpy[k] = deepCopyValue(elem)
		}
		return cpy
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, float64, etc.) are safe to copy by value
		return v
	}
}

// AttributeKey addresses one attribute within a device. SmartThings scopes
// attributes by component and capability; most devices only have a "main"
// component.
type AttributeKey struct {
	Component  string                `json:"component"`
	Capability capability.Capability `json:"capability"`
	Attribute  string                `json:"attribute"`
}

// String renders the key as component/capability/attribute.
func (k AttributeKey) String() string {
	return k.Component + "/" + string(k.Capability) + "/" + k.Attribute
}

// AttributeValue is the current value of one attribute together with the
// timestamp and source that produced it. Value holds whatever JSON shape
// the cloud reported: float64, string, bool, or a structured map.
type AttributeValue struct {
	Value     any       `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}

// AttributeRecord is an AttributeValue with its key flattened in, used for
// API responses where a struct-keyed map does not serialise.
type AttributeRecord struct {
	Component  string                `json:"component"`
	Capability capability.Capability `json:"capability"`
	Attribute  string                `json:"attribute"`
	Value      any                   `json:"value"`
	Unit       string                `json:"unit,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
	Source     Source                `json:"source"`
}

// Source identifies what produced an attribute value.
type Source string

// Source constants.
const (
	// SourceEvent marks values delivered by a webhook event.
	SourceEvent Source = "event"

	// SourcePoll marks values fetched by the reconciliation loop.
	SourcePoll Source = "poll"

	// SourceCommand marks optimistic values applied after a successful
	// local command, pending cloud confirmation.
	SourceCommand Source = "command"
)

// Confirmed reports whether the source is cloud-confirmed (event or poll)
// as opposed to a locally assumed command result.
func (s Source) Confirmed() bool {
	return s == SourceEvent || s == SourcePoll
}

// HealthState represents device reachability as known to the bridge.
type HealthState string

// HealthState constants.
const (
	HealthOnline  HealthState = "online"
	HealthOffline HealthState = "offline"
	HealthStale   HealthState = "stale"
	HealthUnknown HealthState = "unknown"
)

// Shape is the capability and placement half of a device, as returned by
// the cloud device list. Bootstrap merges shapes into the Directory
// without touching attribute values.
type Shape struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	TypeHint     string                  `json:"type_hint,omitempty"`
	Manufacturer string                  `json:"manufacturer,omitempty"`
	RoomID       string                  `json:"room_id,omitempty"`
	RoomName     string                  `json:"room_name,omitempty"`
	Components   []string                `json:"components"`
	Capabilities []capability.Capability `json:"capabilities"`
}

// Update is one normalised attribute change heading into the Directory,
// carrying the source and timestamp that drive the newer-wins rule.
type Update struct {
	DeviceID   string
	Component  string
	Capability capability.Capability
	Attribute  string
	Value      any
	Unit       string
	Timestamp  time.Time
	Source     Source
}

// Key returns the attribute key the update addresses, defaulting the
// component to "main" when unset.
func (u Update) Key() AttributeKey {
	component := u.Component
	if component == "" {
		component = ComponentMain
	}
	return AttributeKey{Component: component, Capability: u.Capability, Attribute: u.Attribute}
}

// ComponentMain is the default SmartThings component id.
const ComponentMain = "main"

// Change describes one visible attribute change, delivered to Directory
// subscribers after the update has been applied.
type Change struct {
	DeviceID   string                `json:"device_id"`
	DeviceName string                `json:"device_name"`
	Domain     capability.Domain     `json:"domain"`
	Component  string                `json:"component"`
	Capability capability.Capability `json:"capability"`
	Attribute  string                `json:"attribute"`
	Value      AttributeValue        `json:"value"`
}
