package capability

// Capability identifies a SmartThings capability, such as "switch" or
// "temperatureMeasurement". Vendor capabilities are namespaced with a dot
// prefix ("samsungce.powerCool", "custom.error").
type Capability string

// Control capabilities.
const (
	Switch            Capability = "switch"
	SwitchLevel       Capability = "switchLevel"
	ColorControl      Capability = "colorControl"     //nolint:misspell // SmartThings uses American spelling
	ColorTemperature  Capability = "colorTemperature" //nolint:misspell // SmartThings uses American spelling
	FanSpeed          Capability = "fanSpeed"
	Lock              Capability = "lock"
	DoorControl       Capability = "doorControl"
	GarageDoorControl Capability = "garageDoorControl"
	WindowShade       Capability = "windowShade"
	WindowShadeLevel  Capability = "windowShadeLevel"
	Valve             Capability = "valve"
)

// Climate capabilities.
const (
	Thermostat                Capability = "thermostat"
	ThermostatMode            Capability = "thermostatMode"
	ThermostatFanMode         Capability = "thermostatFanMode"
	ThermostatCoolingSetpoint Capability = "thermostatCoolingSetpoint"
	ThermostatHeatingSetpoint Capability = "thermostatHeatingSetpoint"
)

// Media capabilities.
const (
	MediaPlayback    Capability = "mediaPlayback"
	MediaInputSource Capability = "mediaInputSource"
	AudioVolume      Capability = "audioVolume"
	AudioMute        Capability = "audioMute"
	TVChannel        Capability = "tvChannel"
)

// Notification capabilities.
const (
	Alarm Capability = "alarm"
	Tone  Capability = "tone"
	Chime Capability = "chime"
)

// Button capabilities.
const (
	Button         Capability = "button"
	HoldableButton Capability = "holdableButton"
)

// Sensor capabilities.
const (
	ContactSensor               Capability = "contactSensor"
	MotionSensor                Capability = "motionSensor"
	PresenceSensor              Capability = "presenceSensor"
	WaterSensor                 Capability = "waterSensor"
	SmokeDetector               Capability = "smokeDetector"
	CarbonMonoxideDetector      Capability = "carbonMonoxideDetector"
	TemperatureMeasurement      Capability = "temperatureMeasurement"
	RelativeHumidityMeasurement Capability = "relativeHumidityMeasurement"
	IlluminanceMeasurement      Capability = "illuminanceMeasurement"
	PowerMeter                  Capability = "powerMeter"
	EnergyMeter                 Capability = "energyMeter"
	VoltageMeasurement          Capability = "voltageMeasurement"
	CurrentMeasurement          Capability = "currentMeasurement"
	Battery                     Capability = "battery"
)

// Camera capabilities.
const (
	VideoStream  Capability = "videoStream"
	ImageCapture Capability = "imageCapture"
	VideoCapture Capability = "videoCapture"
)

// Robot cleaner capabilities.
const (
	RobotCleanerMovement     Capability = "robotCleanerMovement"
	RobotCleanerCleaningMode Capability = "robotCleanerCleaningMode"
	RobotCleanerTurboMode    Capability = "robotCleanerTurboMode"
)

// Refresh requests an on-demand status report. Nearly every SmartThings
// device advertises it.
const Refresh Capability = "refresh"

// Domain classifies a device by its primary function. The bridge derives a
// device's domain from its capability set and uses it for MQTT topic
// categorisation and API filtering.
type Domain string

// Domain constants, ordered roughly from most to least specific.
const (
	DomainVacuum       Domain = "vacuum"
	DomainCamera       Domain = "camera"
	DomainMediaPlayer  Domain = "media_player"
	DomainClimate      Domain = "climate"
	DomainLock         Domain = "lock"
	DomainCover        Domain = "cover"
	DomainValve        Domain = "valve"
	DomainSiren        Domain = "siren"
	DomainFan          Domain = "fan"
	DomainLight        Domain = "light"
	DomainButton       Domain = "button"
	DomainSwitch       Domain = "switch"
	DomainBinarySensor Domain = "binary_sensor"
	DomainSensor       Domain = "sensor"
	DomainUnknown      Domain = "unknown"
)

// AllDomains returns all valid domain values.
func AllDomains() []Domain {
	return []Domain{
		DomainVacuum, DomainCamera, DomainMediaPlayer, DomainClimate,
		DomainLock, DomainCover, DomainValve, DomainSiren, DomainFan,
		DomainLight, DomainButton, DomainSwitch, DomainBinarySensor,
		DomainSensor, DomainUnknown,
	}
}

// Command describes one command a capability accepts, with the number of
// arguments the cloud expects.
type Command struct {
	Name    string
	MinArgs int
	MaxArgs int
}
