package capability

import (
	"errors"
	"testing"
)

func TestDomainFor(t *testing.T) {
	tests := []struct {
		name string
		cap  Capability
		want Domain
	}{
		{"switch maps to switch domain", Switch, DomainSwitch},
		{"switchLevel maps to light", SwitchLevel, DomainLight},
		{"colorControl maps to light", ColorControl, DomainLight},
		{"thermostatMode maps to climate", ThermostatMode, DomainClimate},
		{"lock maps to lock", Lock, DomainLock},
		{"windowShade maps to cover", WindowShade, DomainCover},
		{"fanSpeed maps to fan", FanSpeed, DomainFan},
		{"contactSensor maps to binary_sensor", ContactSensor, DomainBinarySensor},
		{"temperatureMeasurement maps to sensor", TemperatureMeasurement, DomainSensor},
		{"vendor capability maps to switch", "samsungce.powerCool", DomainSwitch},
		{"unrecognised capability maps to unknown", "frobnicator", DomainUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DomainFor(tt.cap); got != tt.want {
				t.Errorf("DomainFor(%q) = %q, want %q", tt.cap, got, tt.want)
			}
		})
	}
}

func TestPrimaryDomain(t *testing.T) {
	tests := []struct {
		name string
		caps []Capability
		want Domain
	}{
		{
			name: "dimmer is a light not a switch",
			caps: []Capability{Switch, SwitchLevel, Refresh},
			want: DomainLight,
		},
		{
			name: "plain switch stays a switch",
			caps: []Capability{Switch, Refresh},
			want: DomainSwitch,
		},
		{
			name: "robot cleaner with switch is a vacuum",
			caps: []Capability{Switch, Battery, RobotCleanerMovement, RobotCleanerCleaningMode},
			want: DomainVacuum,
		},
		{
			name: "thermostat with humidity sensor is climate",
			caps: []Capability{ThermostatMode, ThermostatHeatingSetpoint, TemperatureMeasurement, RelativeHumidityMeasurement},
			want: DomainClimate,
		},
		{
			name: "multi sensor falls to binary_sensor before sensor",
			caps: []Capability{MotionSensor, TemperatureMeasurement, IlluminanceMeasurement, Battery},
			want: DomainBinarySensor,
		},
		{
			name: "pure measurement device is a sensor",
			caps: []Capability{PowerMeter, EnergyMeter},
			want: DomainSensor,
		},
		{
			name: "tv is a media player despite switch",
			caps: []Capability{Switch, MediaPlayback, AudioVolume, TVChannel},
			want: DomainMediaPlayer,
		},
		{
			name: "no recognised capabilities",
			caps: []Capability{"weirdVendorThing"},
			want: DomainUnknown,
		},
		{
			name: "empty capability set",
			caps: nil,
			want: DomainUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryDomain(tt.caps); got != tt.want {
				t.Errorf("PrimaryDomain(%v) = %q, want %q", tt.caps, got, tt.want)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		cap     Capability
		command string
		argc    int
		wantErr error
	}{
		{"switch on", Switch, "on", 0, nil},
		{"switch off", Switch, "off", 0, nil},
		{"setLevel with level", SwitchLevel, "setLevel", 1, nil},
		{"setLevel with level and rate", SwitchLevel, "setLevel", 2, nil},
		{"setLevel without arguments", SwitchLevel, "setLevel", 0, ErrArgumentCount},
		{"setColorTemperature with kelvin", ColorTemperature, "setColorTemperature", 1, nil},
		{"setColorTemperature with extra arguments", ColorTemperature, "setColorTemperature", 3, ErrArgumentCount},
		{"switch does not dim", Switch, "setLevel", 1, ErrUnknownCommand},
		{"lock accepts unlock", Lock, "unlock", 0, nil},
		{"alarm accepts both", Alarm, "both", 0, nil},
		{"unknown capability passes through", "samsungce.airConditionerBeep", "beep", 0, nil},
		{"sensor capability passes through", TemperatureMeasurement, "anything", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.cap, tt.command, tt.argc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateCommand() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCommand() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	cmds := Commands(Switch)
	if len(cmds) != 2 {
		t.Fatalf("Commands(Switch) returned %d commands, want 2", len(cmds))
	}

	if Commands("noSuchCapability") != nil {
		t.Error("Commands() for unknown capability should be nil")
	}
}

func TestKnown(t *testing.T) {
	if !Known(Switch) {
		t.Error("Known(Switch) = false, want true")
	}
	if Known("madeUpCapability") {
		t.Error("Known(madeUpCapability) = true, want false")
	}
}
