package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/dispatch"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/mqtt"
)

// protocolName is this bridge's protocol segment in the topic grammar:
// graylogic/{category}/smartthings/{device_id}.
const protocolName = "smartthings"

// BusClient is the slice of the MQTT client the bridge uses. Satisfied
// by *mqtt.Client.
type BusClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// CommandSender dispatches one device command. Satisfied by
// *dispatch.Dispatcher.
type CommandSender interface {
	Send(ctx context.Context, req dispatch.Request) error
}

// CommandMessage is the payload accepted on the command topic.
type CommandMessage struct {
	Component  string `json:"component,omitempty"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// StateMessage is the payload published on the state topic for each
// visible attribute change.
type StateMessage struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Domain     string    `json:"domain"`
	Component  string    `json:"component"`
	Capability string    `json:"capability"`
	Attribute  string    `json:"attribute"`
	Value      any       `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
}

// healthMessage is the retained bridge health payload.
type healthMessage struct {
	Status    string    `json:"status"`
	Tunnel    string    `json:"tunnel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// busLink connects the bridge to the MQTT bus: inbound commands,
// outbound state changes and retained health.
type busLink struct {
	client     BusClient
	dispatcher CommandSender
	topics     mqtt.Topics
	qos        byte
	logger     Logger
}

func newBusLink(client BusClient, dispatcher CommandSender, qos byte, logger Logger) *busLink {
	return &busLink{
		client:     client,
		dispatcher: dispatcher,
		qos:        qos,
		logger:     logger,
	}
}

// start subscribes to the command topic for every device of this
// protocol.
func (b *busLink) start(ctx context.Context) error {
	topic := b.topics.BridgeCommand(protocolName, "+")
	err := b.client.Subscribe(topic, b.qos, func(topic string, payload []byte) error {
		b.handleCommand(ctx, topic, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("command topic subscribed", "topic", topic)
	return nil
}

// handleCommand parses one inbound command and hands it to the
// dispatcher. Errors are logged, never published back: MQTT commands
// are fire-and-forget, the state topic carries the outcome.
func (b *busLink) handleCommand(ctx context.Context, topic string, payload []byte) {
	deviceID := topic[strings.LastIndex(topic, "/")+1:]
	if deviceID == "" || deviceID == "+" {
		b.logger.Warn("command topic missing device id", "topic", topic)
		return
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("discarding malformed command payload", "topic", topic, "error", err)
		return
	}

	err := b.dispatcher.Send(ctx, dispatch.Request{
		DeviceID:   deviceID,
		Component:  msg.Component,
		Capability: capability.Capability(msg.Capability),
		Command:    msg.Command,
		Arguments:  msg.Arguments,
	})
	if err != nil {
		b.logger.Warn("bus command failed",
			"device_id", deviceID, "command", msg.Command, "error", err)
	}
}

// publishChange publishes one directory change on the device's state
// topic, retained so late subscribers see the last value.
func (b *busLink) publishChange(change device.Change) {
	msg := StateMessage{
		DeviceID:   change.DeviceID,
		DeviceName: change.DeviceName,
		Domain:     string(change.Domain),
		Component:  change.Component,
		Capability: string(change.Capability),
		Attribute:  change.Attribute,
		Value:      change.Value.Value,
		Unit:       change.Value.Unit,
		Timestamp:  change.Value.Timestamp,
		Source:     string(change.Value.Source),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("encoding state message", "device_id", change.DeviceID, "error", err)
		return
	}

	topic := b.topics.BridgeState(protocolName, change.DeviceID)
	if err := b.client.Publish(topic, payload, b.qos, true); err != nil {
		b.logger.Warn("publishing state", "topic", topic, "error", err)
	}
}

// publishHealth publishes the retained bridge health payload.
func (b *busLink) publishHealth(status, tunnelState string) {
	payload, err := json.Marshal(healthMessage{
		Status:    status,
		Tunnel:    tunnelState,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	topic := b.topics.BridgeHealth(protocolName)
	if err := b.client.Publish(topic, payload, b.qos, true); err != nil {
		b.logger.Debug("publishing health", "topic", topic, "error", err)
	}
}
