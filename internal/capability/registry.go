package capability

import "fmt"

// domainTable maps each known capability to the domain it implies. Derived
// from the capabilities the SmartThings catalogue documents per device
// category, including the vendor namespaces seen on Samsung appliances.
var domainTable = map[Capability]Domain{
	Switch:           DomainSwitch,
	SwitchLevel:      DomainLight,
	ColorControl:     DomainLight,
	ColorTemperature: DomainLight,

	Thermostat:                DomainClimate,
	ThermostatCoolingSetpoint: DomainClimate,
	ThermostatHeatingSetpoint: DomainClimate,
	ThermostatFanMode:         DomainClimate,
	ThermostatMode:            DomainClimate,

	Lock:              DomainLock,
	DoorControl:       DomainCover,
	WindowShade:       DomainCover,
	WindowShadeLevel:  DomainCover,
	GarageDoorControl: DomainCover,
	FanSpeed:          DomainFan,
	Valve:             DomainValve,

	MediaPlayback:    DomainMediaPlayer,
	AudioVolume:      DomainMediaPlayer,
	TVChannel:        DomainMediaPlayer,
	MediaInputSource: DomainMediaPlayer,
	AudioMute:        DomainMediaPlayer,

	Alarm: DomainSiren,
	Tone:  DomainSiren,
	Chime: DomainSiren,

	Button:         DomainButton,
	HoldableButton: DomainButton,

	VideoStream:  DomainCamera,
	ImageCapture: DomainCamera,
	VideoCapture: DomainCamera,

	ContactSensor:          DomainBinarySensor,
	MotionSensor:           DomainBinarySensor,
	PresenceSensor:         DomainBinarySensor,
	WaterSensor:            DomainBinarySensor,
	SmokeDetector:          DomainBinarySensor,
	CarbonMonoxideDetector: DomainBinarySensor,

	TemperatureMeasurement:      DomainSensor,
	RelativeHumidityMeasurement: DomainSensor,
	IlluminanceMeasurement:      DomainSensor,
	PowerMeter:                  DomainSensor,
	EnergyMeter:                 DomainSensor,
	Battery:                     DomainSensor,
	VoltageMeasurement:          DomainSensor,
	CurrentMeasurement:          DomainSensor,
	"voltage":                   DomainSensor,

	"airQualityDetector":      DomainSensor,
	"dustSensor":              DomainSensor,
	"tvocMeasurement":         DomainSensor,
	"formaldehydeMeasurement": DomainSensor,
	"airQualityHealthConcern": DomainSensor,

	"refrigeration":            DomainSensor,
	"refrigerationSetpoint":    DomainSensor,
	"washerMode":               DomainSensor,
	"washerOperatingState":     DomainSensor,
	"dryerMode":                DomainSensor,
	"dryerOperatingState":      DomainSensor,
	"ovenMode":                 DomainSensor,
	"ovenOperatingState":       DomainSensor,
	"ovenSetpoint":             DomainSensor,
	"dishwasherMode":           DomainSensor,
	"dishwasherOperatingState": DomainSensor,

	RobotCleanerMovement:                 DomainVacuum,
	RobotCleanerCleaningMode:             DomainVacuum,
	RobotCleanerTurboMode:                DomainVacuum,
	"samsungce.robotCleanerCleaningArea": DomainVacuum,

	"custom.completionTime": DomainSensor,
	"custom.runningTime":    DomainSensor,
	"custom.runningCourse":  DomainSensor,
	"custom.error":          DomainSensor,
	"samsungce.kidsLock":    DomainBinarySensor,
	"samsungce.powerCool":   DomainSwitch,
	"samsungce.powerFreeze": DomainSwitch,

	"petFeederOperatingState": DomainSensor,
	"petFeederFoodLevel":      DomainSensor,
	"petFeederSchedule":       DomainSensor,
	"petFeederFeed":           DomainSwitch,

	"soilMoisture":  DomainSensor,
	"plantMoisture": DomainSensor,
	"plantHealth":   DomainSensor,
	"plantNutrient": DomainSensor,

	"powerSource":           DomainSensor,
	"solarPanel":            DomainSensor,
	"solarPanelPower":       DomainSensor,
	"solarPanelEnergy":      DomainSensor,
	"inverter":              DomainSensor,
	"inverterStatus":        DomainSensor,
	"inverterEfficiency":    DomainSensor,
	"solarBatteryLevel":     DomainSensor,
	"solarEnergyProduction": DomainSensor,

	"poolController": DomainSensor,
	"poolHeater":     DomainClimate,
	"poolPump":       DomainSwitch,
	"poolChlorine":   DomainSensor,
	"poolPH":         DomainSensor,
}

// domainPrecedence orders domains from most to least specific. A device
// advertising both "switch" and "switchLevel" is a light, not a switch; a
// robot cleaner also advertises "switch" but is a vacuum.
var domainPrecedence = []Domain{
	DomainVacuum,
	DomainCamera,
	DomainMediaPlayer,
	DomainClimate,
	DomainLock,
	DomainCover,
	DomainValve,
	DomainSiren,
	DomainFan,
	DomainLight,
	DomainButton,
	DomainSwitch,
	DomainBinarySensor,
	DomainSensor,
}

// DomainFor returns the domain implied by a single capability, or
// DomainUnknown if the capability is not in the table.
func DomainFor(c Capability) Domain {
	if d, ok := domainTable[c]; ok {
		return d
	}
	return DomainUnknown
}

// PrimaryDomain classifies a device by its full capability set, applying
// the precedence order so composite devices land in their most specific
// domain. Returns DomainUnknown when no capability is recognised.
func PrimaryDomain(caps []Capability) Domain {
	present := make(map[Domain]bool, len(caps))
	for _, c := range caps {
		if d, ok := domainTable[c]; ok {
			present[d] = true
		}
	}

	for _, d := range domainPrecedence {
		if present[d] {
			return d
		}
	}
	return DomainUnknown
}

// commandTable lists the commands each controllable capability accepts.
// Capabilities absent from the table are report-only (sensors) or unknown;
// commands for them pass through unvalidated.
var commandTable = map[Capability][]Command{
	Switch: {
		{Name: "on"},
		{Name: "off"},
	},
	SwitchLevel: {
		{Name: "setLevel", MinArgs: 1, MaxArgs: 2},
	},
	ColorControl: {
		{Name: "setColor", MinArgs: 1, MaxArgs: 1},
		{Name: "setHue", MinArgs: 1, MaxArgs: 1},
		{Name: "setSaturation", MinArgs: 1, MaxArgs: 1},
	},
	ColorTemperature: {
		{Name: "setColorTemperature", MinArgs: 1, MaxArgs: 1},
	},
	FanSpeed: {
		{Name: "setFanSpeed", MinArgs: 1, MaxArgs: 1},
	},
	Lock: {
		{Name: "lock"},
		{Name: "unlock"},
	},
	DoorControl: {
		{Name: "open"},
		{Name: "close"},
	},
	GarageDoorControl: {
		{Name: "open"},
		{Name: "close"},
	},
	WindowShade: {
		{Name: "open"},
		{Name: "close"},
		{Name: "pause"},
	},
	WindowShadeLevel: {
		{Name: "setShadeLevel", MinArgs: 1, MaxArgs: 1},
	},
	Valve: {
		{Name: "open"},
		{Name: "close"},
	},
	ThermostatMode: {
		{Name: "setThermostatMode", MinArgs: 1, MaxArgs: 1},
	},
	ThermostatFanMode: {
		{Name: "setThermostatFanMode", MinArgs: 1, MaxArgs: 1},
	},
	ThermostatCoolingSetpoint: {
		{Name: "setCoolingSetpoint", MinArgs: 1, MaxArgs: 1},
	},
	ThermostatHeatingSetpoint: {
		{Name: "setHeatingSetpoint", MinArgs: 1, MaxArgs: 1},
	},
	MediaPlayback: {
		{Name: "play"},
		{Name: "pause"},
		{Name: "stop"},
		{Name: "rewind"},
		{Name: "fastForward"},
	},
	MediaInputSource: {
		{Name: "setInputSource", MinArgs: 1, MaxArgs: 1},
	},
	AudioVolume: {
		{Name: "setVolume", MinArgs: 1, MaxArgs: 1},
		{Name: "volumeUp"},
		{Name: "volumeDown"},
	},
	AudioMute: {
		{Name: "mute"},
		{Name: "unmute"},
		{Name: "setMute", MinArgs: 1, MaxArgs: 1},
	},
	TVChannel: {
		{Name: "channelUp"},
		{Name: "channelDown"},
		{Name: "setTvChannel", MinArgs: 1, MaxArgs: 1},
	},
	Alarm: {
		{Name: "both"},
		{Name: "siren"},
		{Name: "strobe"},
		{Name: "off"},
	},
	Tone: {
		{Name: "beep"},
	},
	Chime: {
		{Name: "chime"},
		{Name: "off"},
	},
	ImageCapture: {
		{Name: "take"},
	},
	RobotCleanerMovement: {
		{Name: "setRobotCleanerMovement", MinArgs: 1, MaxArgs: 1},
	},
	RobotCleanerCleaningMode: {
		{Name: "setRobotCleanerCleaningMode", MinArgs: 1, MaxArgs: 1},
	},
	RobotCleanerTurboMode: {
		{Name: "setRobotCleanerTurboMode", MinArgs: 1, MaxArgs: 1},
	},
	Refresh: {
		{Name: "refresh"},
	},
	"petFeederFeed": {
		{Name: "feed"},
	},
	"samsungce.powerCool": {
		{Name: "activate"},
		{Name: "deactivate"},
		{Name: "setActivate", MinArgs: 1, MaxArgs: 1},
	},
	"samsungce.powerFreeze": {
		{Name: "activate"},
		{Name: "deactivate"},
		{Name: "setActivate", MinArgs: 1, MaxArgs: 1},
	},
}

// Commands returns the command schemas for a capability, or nil if none
// are known.
func Commands(c Capability) []Command {
	return commandTable[c]
}

// Known reports whether the capability appears in the domain table.
func Known(c Capability) bool {
	_, ok := domainTable[c]
	return ok
}

// ValidateCommand checks a command name and argument count against the
// capability's schema. Unknown capabilities pass validation so that vendor
// capabilities with undocumented commands remain usable.
func ValidateCommand(c Capability, command string, argc int) error {
	schemas, ok := commandTable[c]
	if !ok {
		return nil
	}

	for _, s := range schemas {
		if s.Name != command {
			continue
		}
		if argc < s.MinArgs || argc > s.MaxArgs {
			return fmt.Errorf("%w: %s.%s takes %d to %d arguments, got %d",
				ErrArgumentCount, c, command, s.MinArgs, s.MaxArgs, argc)
		}
		return nil
	}

	return fmt.Errorf("%w: %q is not a command of %s", ErrUnknownCommand, command, c)
}
