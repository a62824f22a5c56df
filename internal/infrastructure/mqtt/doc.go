// Package mqtt connects the bridge to the Gray Logic message bus.
//
// The bridge publishes confirmed SmartThings device state onto the
// broker and consumes device commands from it, so dashboards and the
// core never have to know cloud specifics:
//
//	Gray Logic Core ↔ MQTT Broker ↔ SmartThings Bridge ↔ Cloud
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// replay after a reconnect, and a Last Will on the shared health topic
// so consumers see the bridge drop offline even on an unclean exit.
// Topic layout lives in Topics; build topic strings through it rather
// than by hand.
//
// TLS and broker credentials come from config.yaml. Anonymous
// plaintext connections are for local development only; payloads carry
// no encryption beyond the transport.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil { ... }
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommand("smartthings", "+"), 1,
//	    func(topic string, payload []byte) error { ... })
//
//	// Retained so late subscribers see current state immediately.
//	client.Publish(mqtt.Topics{}.BridgeState("smartthings", deviceID), payload, 1, true)
package mqtt
