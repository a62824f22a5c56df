package dispatch

import (
	"time"

	"github.com/nerrad567/gray-logic-smartthings/internal/capability"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
)

// prediction maps a command to the attribute and value it will settle
// at, for commands whose outcome is knowable without asking the cloud.
type prediction struct {
	attribute string
	value     any
}

// predict returns the expected attribute outcome of a command, or ok
// false when the outcome is not locally predictable (toggles, relative
// steps, colour maps). Unpredictable commands simply wait for the
// confirming event.
func predict(c capability.Capability, command string, args []any) (prediction, bool) {
	firstArg := func() (any, bool) {
		if len(args) == 0 {
			return nil, false
		}
		return args[0], true
	}

	switch c {
	case capability.Switch:
		return prediction{"switch", command}, command == "on" || command == "off"

	case capability.SwitchLevel:
		if v, ok := firstArg(); ok && command == "setLevel" {
			return prediction{"level", v}, true
		}

	case capability.Lock:
		switch command {
		case "lock":
			return prediction{"lock", "locked"}, true
		case "unlock":
			return prediction{"lock", "unlocked"}, true
		}

	case capability.DoorControl, capability.GarageDoorControl:
		switch command {
		case "open":
			return prediction{"door", "open"}, true
		case "close":
			return prediction{"door", "closed"}, true
		}

	case capability.WindowShade:
		switch command {
		case "open":
			return prediction{"windowShade", "open"}, true
		case "close":
			return prediction{"windowShade", "closed"}, true
		}

	case capability.WindowShadeLevel:
		if v, ok := firstArg(); ok && command == "setShadeLevel" {
			return prediction{"shadeLevel", v}, true
		}

	case capability.Valve:
		switch command {
		case "open":
			return prediction{"valve", "open"}, true
		case "close":
			return prediction{"valve", "closed"}, true
		}

	case capability.FanSpeed:
		if v, ok := firstArg(); ok && command == "setFanSpeed" {
			return prediction{"fanSpeed", v}, true
		}

	case capability.ColorTemperature:
		if v, ok := firstArg(); ok && command == "setColorTemperature" {
			return prediction{"colorTemperature", v}, true
		}

	case capability.ThermostatMode:
		if v, ok := firstArg(); ok && command == "setThermostatMode" {
			return prediction{"thermostatMode", v}, true
		}

	case capability.ThermostatCoolingSetpoint:
		if v, ok := firstArg(); ok && command == "setCoolingSetpoint" {
			return prediction{"coolingSetpoint", v}, true
		}

	case capability.ThermostatHeatingSetpoint:
		if v, ok := firstArg(); ok && command == "setHeatingSetpoint" {
			return prediction{"heatingSetpoint", v}, true
		}

	case capability.AudioVolume:
		if v, ok := firstArg(); ok && command == "setVolume" {
			return prediction{"volume", v}, true
		}

	case capability.AudioMute:
		switch command {
		case "mute":
			return prediction{"mute", "muted"}, true
		case "unmute":
			return prediction{"mute", "unmuted"}, true
		}

	case capability.MediaPlayback:
		switch command {
		case "play":
			return prediction{"playbackStatus", "playing"}, true
		case "pause":
			return prediction{"playbackStatus", "paused"}, true
		case "stop":
			return prediction{"playbackStatus", "stopped"}, true
		}
	}

	return prediction{}, false
}

// optimisticUpdate turns a prediction into a command-sourced directory
// update, which the conflict rule lets the next confirmed value replace
// regardless of timestamps.
func optimisticUpdate(req Request, p prediction, now time.Time) device.Update {
	return device.Update{
		DeviceID:   req.DeviceID,
		Component:  req.Component,
		Capability: req.Capability,
		Attribute:  p.attribute,
		Value:      p.value,
		Timestamp:  now,
		Source:     device.SourceCommand,
	}
}
