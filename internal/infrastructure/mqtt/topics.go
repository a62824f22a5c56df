package mqtt

import "fmt"

// Topic prefix per the Gray Logic MQTT topic grammar.
//
// All bridge topics use the flat scheme: graylogic/{category}/{protocol}/{address}
// This matches what the core and every other bridge on the bus expect.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	// Flat scheme: graylogic/{category}/{protocol}/{address_or_id}
	TopicPrefixBridge = "graylogic"
)

// Topics provides builders for Gray Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("smartthings", "3f8c2a10-...")
//	// Returns: "graylogic/state/smartthings/3f8c2a10-..."
type Topics struct{}

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: graylogic/state/smartthings/3f8c2a10-aaaa-bbbb-cccc-1234567890ab
func (Topics) BridgeState(protocol, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/smartthings/3f8c2a10-aaaa-bbbb-cccc-1234567890ab
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/smartthings
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// AllBridgeCommands returns a pattern matching all commands to bridges.
//
// Pattern: graylogic/command/+/+
func (Topics) AllBridgeCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefixBridge)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: graylogic/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}

// AllTopics returns a pattern matching all Gray Logic topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: graylogic/#
func (Topics) AllTopics() string {
	return "graylogic/#"
}
