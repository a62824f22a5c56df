package webhook

import (
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
)

// SmartApp lifecycle phases the ingestor understands.
const (
	LifecyclePing          = "PING"
	LifecycleConfirmation  = "CONFIRMATION"
	LifecycleConfiguration = "CONFIGURATION"
	LifecycleEvent         = "EVENT"
)

// envelope is the outer SmartApp lifecycle payload. Only the section
// matching the lifecycle is populated.
type envelope struct {
	Lifecycle        string            `json:"lifecycle"`
	PingData         *pingData         `json:"pingData,omitempty"`
	ConfirmationData *confirmationData `json:"confirmationData,omitempty"`
	ConfigData       *configData       `json:"configurationData,omitempty"`
	EventData        *eventData        `json:"eventData,omitempty"`
}

type pingData struct {
	Challenge string `json:"challenge"`
}

type confirmationData struct {
	AppID           string `json:"appId"`
	ConfirmationURL string `json:"confirmationUrl"`
}

type configData struct {
	Phase string `json:"phase"`
}

type eventData struct {
	Events []eventRecord `json:"events"`
}

// eventRecord carries one event within an EVENT envelope. The full
// SmartApp shape nests device events under deviceEvent; the simplified
// shape some senders use puts the fields at the top level. Both are
// accepted.
type eventRecord struct {
	EventType   string       `json:"eventType,omitempty"`
	DeviceEvent *deviceEvent `json:"deviceEvent,omitempty"`

	deviceEvent // flat variant
}

type deviceEvent struct {
	DeviceID    string    `json:"deviceId"`
	ComponentID string    `json:"componentId"`
	Capability  string    `json:"capability"`
	Attribute   string    `json:"attribute"`
	Value       any       `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	StateChange bool      `json:"stateChange,omitempty"`
	EventTime   time.Time `json:"eventTime,omitempty"`
}

// normalise resolves the nested/flat duality and converts the record
// into a directory update. ok is false for non-device events and
// records missing the fields an update needs. Timestamp is left zero
// when the cloud sent no event time; the caller fills it in after
// fingerprinting so redeliveries still collide.
func (r eventRecord) normalise() (device.Update, bool) {
	ev := r.deviceEvent
	if r.DeviceEvent != nil {
		ev = *r.DeviceEvent
	}
	if ev.DeviceID == "" || ev.Capability == "" || ev.Attribute == "" {
		return device.Update{}, false
	}

	return device.Update{
		DeviceID:   ev.DeviceID,
		Component:  ev.ComponentID,
		Capability: capability.Capability(ev.Capability),
		Attribute:  ev.Attribute,
		Value:      ev.Value,
		Unit:       ev.Unit,
		Timestamp:  ev.EventTime,
		Source:     device.SourceEvent,
	}, true
}

// Stats are the ingestor's running counters.
type Stats struct {
	Received  int64 `json:"received"`
	Events    int64 `json:"events"`
	Applied   int64 `json:"applied"`
	Deduped   int64 `json:"deduped"`
	Malformed int64 `json:"malformed"`
}
